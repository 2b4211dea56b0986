// Package certvalidator provides X.509 certificate path validation.
// This file contains name constraint processing for RFC 5280 path validation.
package certvalidator

import (
	"crypto/x509/pkix"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// constrainedForms lists the name forms tracked by NameConstraintValidator.
var constrainedForms = []GeneralNameTag{
	GeneralNameDirectory,
	GeneralNameDNS,
	GeneralNameRFC822,
	GeneralNameURI,
	GeneralNameIP,
}

func isConstrainedForm(tag GeneralNameTag) bool {
	for _, f := range constrainedForms {
		if f == tag {
			return true
		}
	}
	return false
}

// NameConstraintValidator tracks permitted and excluded subtrees per name form.
//
// A permitted set that has never been constrained is nil and accepts every
// name. Once intersected it only shrinks, possibly to an empty set that
// accepts nothing. Excluded sets start empty and only grow.
type NameConstraintValidator struct {
	permitted map[GeneralNameTag][]GeneralName
	excluded  map[GeneralNameTag][]GeneralName
}

// NewNameConstraintValidator returns a validator with no constraints.
func NewNameConstraintValidator() *NameConstraintValidator {
	return &NameConstraintValidator{
		permitted: make(map[GeneralNameTag][]GeneralName),
		excluded:  make(map[GeneralNameTag][]GeneralName),
	}
}

// Permitted returns the permitted subtrees of a form. The boolean is false
// while the form is unconstrained.
func (v *NameConstraintValidator) Permitted(tag GeneralNameTag) ([]GeneralName, bool) {
	set, ok := v.permitted[tag]
	if !ok {
		return nil, false
	}
	return append([]GeneralName{}, set...), true
}

// Excluded returns the excluded subtrees of a form.
func (v *NameConstraintValidator) Excluded(tag GeneralNameTag) []GeneralName {
	return append([]GeneralName{}, v.excluded[tag]...)
}

// CheckPermitted fails with NameConstraintViolation if the name lies outside
// the permitted subtrees of its form.
func (v *NameConstraintValidator) CheckPermitted(name GeneralName) error {
	set, constrained := v.permitted[name.Tag]
	if !constrained {
		return nil
	}
	// An empty name against an empty permitted set passes, which tolerates
	// certificates with an empty subject.
	if len(set) == 0 && isEmptyName(name) {
		return nil
	}
	for _, subtree := range set {
		within, err := nameWithin(name, subtree)
		if err != nil {
			return nameViolation(fmt.Sprintf("%s could not be checked", name), err)
		}
		if within {
			return nil
		}
	}
	return nameViolation(fmt.Sprintf("subject name %s is not from permitted subtree", name), nil)
}

// CheckExcluded fails with NameConstraintViolation if the name lies inside an
// excluded subtree of its form.
func (v *NameConstraintValidator) CheckExcluded(name GeneralName) error {
	for _, subtree := range v.excluded[name.Tag] {
		within, err := nameWithin(name, subtree)
		if err != nil {
			return nameViolation(fmt.Sprintf("%s could not be checked", name), err)
		}
		if within {
			return nameViolation(fmt.Sprintf("subject name %s is from an excluded subtree", name), nil)
		}
	}
	return nil
}

// CheckName runs both the permitted and the excluded check.
func (v *NameConstraintValidator) CheckName(name GeneralName) error {
	if err := v.CheckPermitted(name); err != nil {
		return err
	}
	return v.CheckExcluded(name)
}

// IntersectPermitted narrows the permitted sets by the given subtrees. Forms
// that do not occur among the subtrees are left untouched.
func (v *NameConstraintValidator) IntersectPermitted(subtrees []GeneralSubtree) {
	byForm := make(map[GeneralNameTag][]GeneralName)
	for _, st := range subtrees {
		if !isConstrainedForm(st.Base.Tag) {
			continue
		}
		byForm[st.Base.Tag] = append(byForm[st.Base.Tag], st.Base)
	}
	for tag, incoming := range byForm {
		existing, constrained := v.permitted[tag]
		result := make([]GeneralName, 0)
		for _, in := range incoming {
			if !constrained {
				result = appendUnique(result, in)
				continue
			}
			for _, ex := range existing {
				if inter, ok := intersectSubtrees(in, ex); ok {
					result = appendUnique(result, inter)
				}
			}
		}
		v.permitted[tag] = result
	}
}

// UnionExcludedSubtree widens the excluded set of the subtree's form.
func (v *NameConstraintValidator) UnionExcludedSubtree(subtree GeneralSubtree) {
	base := subtree.Base
	if !isConstrainedForm(base.Tag) {
		return
	}
	existing := v.excluded[base.Tag]
	result := make([]GeneralName, 0, len(existing)+1)
	redundant := false
	for _, ex := range existing {
		switch {
		case subtreeWithin(base, ex):
			redundant = true
			result = appendUnique(result, ex)
		case subtreeWithin(ex, base):
			// the broader new subtree replaces this entry
		default:
			result = appendUnique(result, ex)
		}
	}
	if !redundant {
		result = appendUnique(result, base)
	}
	v.excluded[base.Tag] = result
}

// AddNameConstraints merges a nameConstraints extension into the validator.
func (v *NameConstraintValidator) AddNameConstraints(nc *NameConstraints) {
	if nc == nil {
		return
	}
	if nc.PermittedPresent {
		v.IntersectPermitted(nc.Permitted)
	}
	for _, st := range nc.Excluded {
		v.UnionExcludedSubtree(st)
	}
}

// Clone returns an independent copy of the validator state.
func (v *NameConstraintValidator) Clone() *NameConstraintValidator {
	out := NewNameConstraintValidator()
	for tag, set := range v.permitted {
		out.permitted[tag] = append(make([]GeneralName, 0, len(set)), set...)
	}
	for tag, set := range v.excluded {
		out.excluded[tag] = append([]GeneralName{}, set...)
	}
	return out
}

func nameViolation(msg string, cause error) error {
	return NewValidationError(KindNameConstraintViolation, -1, msg, cause)
}

func appendUnique(list []GeneralName, name GeneralName) []GeneralName {
	for _, existing := range list {
		if existing.Equal(name) {
			return list
		}
	}
	return append(list, name)
}

func isEmptyName(name GeneralName) bool {
	if name.Tag == GeneralNameDirectory {
		rdn, err := name.DirectoryName()
		return err == nil && len(rdn) == 0
	}
	return len(name.Value) == 0
}

// nameWithin reports whether a certificate name falls inside a constraint subtree.
func nameWithin(name, subtree GeneralName) (bool, error) {
	switch name.Tag {
	case GeneralNameDirectory:
		dn, err := name.DirectoryName()
		if err != nil {
			return false, err
		}
		base, err := subtree.DirectoryName()
		if err != nil {
			return false, err
		}
		return withinDNSubtree(dn, base), nil
	case GeneralNameDNS:
		return dnsWithin(string(name.Value), string(subtree.Value)), nil
	case GeneralNameRFC822:
		return hostConstraintWithin(string(name.Value), string(subtree.Value)), nil
	case GeneralNameURI:
		host, err := extractURIHost(string(name.Value))
		if err != nil {
			return false, err
		}
		return uriHostWithin(host, string(subtree.Value)), nil
	case GeneralNameIP:
		return ipWithin(name.Value, subtree.Value), nil
	}
	return false, nil
}

// subtreeWithin reports whether the namespace of subtree a is contained in b.
func subtreeWithin(a, b GeneralName) bool {
	switch a.Tag {
	case GeneralNameDirectory:
		da, errA := a.DirectoryName()
		db, errB := b.DirectoryName()
		return errA == nil && errB == nil && withinDNSubtree(da, db)
	case GeneralNameDNS:
		return dnsWithin(string(a.Value), string(b.Value))
	case GeneralNameRFC822, GeneralNameURI:
		return hostConstraintWithin(string(a.Value), string(b.Value))
	case GeneralNameIP:
		return ipSubnetWithin(a.Value, b.Value)
	}
	return a.Equal(b)
}

// intersectSubtrees returns the intersection of two subtrees of the same form
// or false when they are disjoint.
func intersectSubtrees(a, b GeneralName) (GeneralName, bool) {
	if a.Tag == GeneralNameIP {
		return intersectIP(a.Value, b.Value)
	}
	if subtreeWithin(a, b) {
		return a, true
	}
	if subtreeWithin(b, a) {
		return b, true
	}
	return GeneralName{}, false
}

// withinDNSubtree reports whether dn lies in the subtree rooted at base. The
// subtree is aligned on the first RDN of dn equal to the first RDN of base;
// serialNumber attributes match by prefix.
func withinDNSubtree(dn, base pkix.RDNSequence) bool {
	if len(base) < 1 || len(base) > len(dn) {
		return false
	}
	start := 0
	for j := range dn {
		start = j
		if rdnEqual(base[0], dn[j]) {
			break
		}
	}
	if len(base) > len(dn)-start {
		return false
	}
	for j := range base {
		b := base[j]
		d := dn[start+j]
		if len(b) != len(d) {
			return false
		}
		if !b[0].Type.Equal(d[0].Type) {
			return false
		}
		if len(b) == 1 && b[0].Type.Equal(OIDSerialNumber) {
			if !strings.HasPrefix(fmt.Sprint(d[0].Value), fmt.Sprint(b[0].Value)) {
				return false
			}
		} else if !rdnEqual(b, d) {
			return false
		}
	}
	return true
}

// withinDomain reports whether testDomain is a strict subdomain of domain. A
// leading dot on domain is ignored.
func withinDomain(testDomain, domain string) bool {
	domain = strings.TrimPrefix(domain, ".")
	domainParts := strings.Split(domain, ".")
	testParts := strings.Split(testDomain, ".")
	if len(testParts) <= len(domainParts) {
		return false
	}
	d := len(testParts) - len(domainParts)
	if testParts[d-1] == "" {
		return false
	}
	for i := range domainParts {
		if !strings.EqualFold(domainParts[i], testParts[i+d]) {
			return false
		}
	}
	return true
}

func dnsWithin(name, constraint string) bool {
	return strings.EqualFold(name, constraint) || withinDomain(name, constraint)
}

// hostConstraintWithin implements containment for rfc822Name forms: a
// mailbox, a host, or a .domain meaning any host below it.
func hostConstraintWithin(name, constraint string) bool {
	if constraint == "" {
		return false
	}
	nameAt := strings.LastIndex(name, "@")
	nameHost := name
	if nameAt >= 0 {
		nameHost = name[nameAt+1:]
	}
	switch {
	case strings.Contains(constraint, "@"):
		if strings.HasPrefix(constraint, "@") {
			return nameAt >= 0 && strings.EqualFold(nameHost, constraint[1:])
		}
		return nameAt >= 0 && strings.EqualFold(name, constraint)
	case strings.HasPrefix(constraint, "."):
		if nameAt < 0 && strings.HasPrefix(name, ".") {
			return strings.EqualFold(name, constraint) || withinDomain(name[1:], constraint)
		}
		return withinDomain(nameHost, constraint)
	default:
		if nameAt < 0 && strings.HasPrefix(name, ".") {
			return false
		}
		return strings.EqualFold(nameHost, constraint)
	}
}

func uriHostWithin(host, constraint string) bool {
	if strings.HasPrefix(constraint, ".") {
		return withinDomain(host, constraint)
	}
	return strings.EqualFold(host, constraint)
}

// extractURIHost extracts the host from a URI.
func extractURIHost(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("URI '%s' is not well-formed: %w", uri, err)
	}
	host := parsed.Hostname()
	if host == "" && parsed.Opaque != "" {
		// mailto:user@host and similar opaque forms
		opaque := parsed.Opaque
		if at := strings.LastIndex(opaque, "@"); at >= 0 {
			opaque = opaque[at+1:]
		}
		host = opaque
	}
	if host == "" {
		return "", fmt.Errorf("URI '%s' has no host", uri)
	}
	return host, nil
}

func splitIPConstraint(v []byte) (net.IP, net.IPMask, bool) {
	if len(v) != 2*net.IPv4len && len(v) != 2*net.IPv6len {
		return nil, nil, false
	}
	half := len(v) / 2
	return net.IP(v[:half]), net.IPMask(v[half:]), true
}

// ipWithin reports whether an address lies inside an address-and-mask constraint.
func ipWithin(addr, constraint []byte) bool {
	ip, mask, ok := splitIPConstraint(constraint)
	if !ok || len(addr) != len(ip) {
		return false
	}
	for i := range addr {
		if addr[i]&mask[i] != ip[i]&mask[i] {
			return false
		}
	}
	return true
}

// ipSubnetWithin reports whether subnet a is contained in subnet b.
func ipSubnetWithin(a, b []byte) bool {
	ipA, maskA, okA := splitIPConstraint(a)
	ipB, maskB, okB := splitIPConstraint(b)
	if !okA || !okB || len(ipA) != len(ipB) {
		return false
	}
	for i := range ipA {
		if maskA[i]&maskB[i] != maskB[i] {
			return false
		}
		if ipA[i]&maskB[i] != ipB[i]&maskB[i] {
			return false
		}
	}
	return true
}

// intersectIP computes the overlap of two address-and-mask constraints.
func intersectIP(a, b []byte) (GeneralName, bool) {
	ipA, maskA, okA := splitIPConstraint(a)
	ipB, maskB, okB := splitIPConstraint(b)
	if !okA || !okB || len(ipA) != len(ipB) {
		return GeneralName{}, false
	}
	n := len(ipA)
	out := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		if (ipA[i]^ipB[i])&maskA[i]&maskB[i] != 0 {
			return GeneralName{}, false
		}
		out[i] = ipA[i]&maskA[i] | ipB[i]&maskB[i]
		out[n+i] = maskA[i] | maskB[i]
	}
	return GeneralName{Tag: GeneralNameIP, Value: out}, true
}

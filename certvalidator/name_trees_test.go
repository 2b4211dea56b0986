package certvalidator

import (
	"crypto/x509/pkix"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subtrees(names ...GeneralName) []GeneralSubtree {
	out := make([]GeneralSubtree, len(names))
	for i, n := range names {
		out[i] = GeneralSubtree{Base: n}
	}
	return out
}

func dirName(t *testing.T, name pkix.Name) GeneralName {
	t.Helper()
	gn, err := DirectoryGeneralName(name.ToRDNSequence())
	require.NoError(t, err)
	return gn
}

func cidr(t *testing.T, s string) GeneralName {
	t.Helper()
	_, n, err := net.ParseCIDR(s)
	require.NoError(t, err)
	return IPGeneralName(n.IP, n.Mask)
}

func TestNameConstraintsPermitted(t *testing.T) {
	tests := []struct {
		name      string
		permitted []GeneralName
		check     GeneralName
		ok        bool
	}{
		{"dns equal", []GeneralName{DNSGeneralName("example.com")}, DNSGeneralName("EXAMPLE.com"), true},
		{"dns subdomain", []GeneralName{DNSGeneralName("example.com")}, DNSGeneralName("www.example.com"), true},
		{"dns sibling", []GeneralName{DNSGeneralName("example.com")}, DNSGeneralName("badexample.com"), false},
		{"dns other", []GeneralName{DNSGeneralName("example.com")}, DNSGeneralName("example.org"), false},
		{"email mailbox", []GeneralName{EmailGeneralName("alice@example.com")}, EmailGeneralName("alice@example.com"), true},
		{"email other mailbox", []GeneralName{EmailGeneralName("alice@example.com")}, EmailGeneralName("bob@example.com"), false},
		{"email host", []GeneralName{EmailGeneralName("example.com")}, EmailGeneralName("bob@example.com"), true},
		{"email host excludes subdomains", []GeneralName{EmailGeneralName("example.com")}, EmailGeneralName("bob@mail.example.com"), false},
		{"email domain", []GeneralName{EmailGeneralName(".example.com")}, EmailGeneralName("bob@mail.example.com"), true},
		{"email domain excludes host", []GeneralName{EmailGeneralName(".example.com")}, EmailGeneralName("bob@example.com"), false},
		{"uri host", []GeneralName{URIGeneralName("example.com")}, URIGeneralName("http://example.com:8080/crl"), true},
		{"uri domain", []GeneralName{URIGeneralName(".example.com")}, URIGeneralName("https://pki.example.com/ca.crt"), true},
		{"uri other host", []GeneralName{URIGeneralName("example.com")}, URIGeneralName("https://pki.example.com/ca.crt"), false},
		{"uri without host", []GeneralName{URIGeneralName("example.com")}, URIGeneralName("/relative/path"), false},
		{"ip inside", []GeneralName{cidr(t, "10.0.0.0/8")}, IPGeneralName(net.ParseIP("10.1.2.3"), nil), true},
		{"ip outside", []GeneralName{cidr(t, "10.0.0.0/8")}, IPGeneralName(net.ParseIP("192.168.0.1"), nil), false},
		{"ip family mismatch", []GeneralName{cidr(t, "10.0.0.0/8")}, IPGeneralName(net.ParseIP("2001:db8::1"), nil), false},
		{"dn inside", []GeneralName{dirName(t, pkix.Name{Organization: []string{"Org"}})},
			dirName(t, pkix.Name{Organization: []string{"Org"}, CommonName: "host"}), true},
		{"dn normalised", []GeneralName{dirName(t, pkix.Name{Organization: []string{"Org"}})},
			dirName(t, pkix.Name{Organization: []string{"  ORG "}, CommonName: "host"}), true},
		{"dn outside", []GeneralName{dirName(t, pkix.Name{Organization: []string{"Org"}})},
			dirName(t, pkix.Name{Organization: []string{"Other"}, CommonName: "host"}), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := NewNameConstraintValidator()
			v.IntersectPermitted(subtrees(tc.permitted...))
			err := v.CheckPermitted(tc.check)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, KindNameConstraintViolation)
		})
	}
}

func TestNameConstraintsUnconstrainedForms(t *testing.T) {
	v := NewNameConstraintValidator()
	v.IntersectPermitted(subtrees(DNSGeneralName("example.com")))

	_, constrained := v.Permitted(GeneralNameRFC822)
	assert.False(t, constrained)
	assert.NoError(t, v.CheckName(EmailGeneralName("anyone@anywhere.test")))
	assert.NoError(t, v.CheckName(GeneralName{Tag: GeneralNameRegisteredID, Value: []byte{0x2a}}))
}

func TestNameConstraintsIntersection(t *testing.T) {
	v := NewNameConstraintValidator()
	v.IntersectPermitted(subtrees(DNSGeneralName("example.com")))
	v.IntersectPermitted(subtrees(DNSGeneralName("www.example.com"), DNSGeneralName("example.org")))

	set, constrained := v.Permitted(GeneralNameDNS)
	require.True(t, constrained)
	assert.Equal(t, []GeneralName{DNSGeneralName("www.example.com")}, set)

	v.IntersectPermitted(subtrees(DNSGeneralName("example.net")))
	set, constrained = v.Permitted(GeneralNameDNS)
	require.True(t, constrained)
	assert.Empty(t, set)
	assert.Error(t, v.CheckPermitted(DNSGeneralName("www.example.com")))

	t.Run("ip ranges", func(t *testing.T) {
		v := NewNameConstraintValidator()
		v.IntersectPermitted(subtrees(cidr(t, "10.0.0.0/8")))
		v.IntersectPermitted(subtrees(cidr(t, "10.1.0.0/16"), cidr(t, "192.168.0.0/16")))
		set, _ := v.Permitted(GeneralNameIP)
		require.Len(t, set, 1)
		assert.Equal(t, "ip:10.1.0.0/16", set[0].String())
	})

	t.Run("empty subject passes empty permitted set", func(t *testing.T) {
		v := NewNameConstraintValidator()
		v.IntersectPermitted(subtrees(dirName(t, pkix.Name{Organization: []string{"A"}})))
		v.IntersectPermitted(subtrees(dirName(t, pkix.Name{Organization: []string{"B"}})))
		empty, err := DirectoryGeneralName(pkix.RDNSequence{})
		require.NoError(t, err)
		assert.NoError(t, v.CheckPermitted(empty))
		assert.Error(t, v.CheckPermitted(dirName(t, pkix.Name{Organization: []string{"A"}})))
	})
}

func TestNameConstraintsExcluded(t *testing.T) {
	v := NewNameConstraintValidator()
	v.UnionExcludedSubtree(GeneralSubtree{Base: DNSGeneralName("evil.example.com")})
	v.UnionExcludedSubtree(GeneralSubtree{Base: DNSGeneralName("host.evil.example.com")})
	assert.Equal(t, []GeneralName{DNSGeneralName("evil.example.com")}, v.Excluded(GeneralNameDNS))

	err := v.CheckExcluded(DNSGeneralName("host.evil.example.com"))
	assert.ErrorIs(t, err, KindNameConstraintViolation)
	assert.NoError(t, v.CheckExcluded(DNSGeneralName("good.example.com")))

	v.UnionExcludedSubtree(GeneralSubtree{Base: DNSGeneralName("example.com")})
	assert.Equal(t, []GeneralName{DNSGeneralName("example.com")}, v.Excluded(GeneralNameDNS))
	assert.Error(t, v.CheckExcluded(DNSGeneralName("good.example.com")))
}

// Adding constraints never lets a previously rejected name through.
func TestNameConstraintsMonotonic(t *testing.T) {
	candidates := []GeneralName{
		DNSGeneralName("example.com"),
		DNSGeneralName("www.example.com"),
		DNSGeneralName("a.b.example.com"),
		DNSGeneralName("example.org"),
		EmailGeneralName("alice@example.com"),
		EmailGeneralName("bob@mail.example.com"),
		IPGeneralName(net.ParseIP("10.1.2.3"), nil),
		IPGeneralName(net.ParseIP("10.2.0.1"), nil),
	}
	steps := []func(v *NameConstraintValidator){
		func(v *NameConstraintValidator) {
			v.IntersectPermitted(subtrees(DNSGeneralName("example.com"), cidr(t, "10.0.0.0/8")))
		},
		func(v *NameConstraintValidator) {
			v.UnionExcludedSubtree(GeneralSubtree{Base: DNSGeneralName("b.example.com")})
		},
		func(v *NameConstraintValidator) {
			v.IntersectPermitted(subtrees(EmailGeneralName(".example.com")))
		},
		func(v *NameConstraintValidator) {
			v.IntersectPermitted(subtrees(cidr(t, "10.1.0.0/16")))
		},
		func(v *NameConstraintValidator) {
			v.UnionExcludedSubtree(GeneralSubtree{Base: cidr(t, "10.1.2.0/24")})
		},
		func(v *NameConstraintValidator) {
			v.IntersectPermitted(subtrees(DNSGeneralName("www.example.com")))
		},
	}

	v := NewNameConstraintValidator()
	rejected := make(map[int]bool)
	for step, apply := range steps {
		apply(v)
		for i, name := range candidates {
			err := v.CheckName(name)
			if rejected[i] {
				assert.Error(t, err, "step %d let %s through again", step, name)
			}
			if err != nil {
				rejected[i] = true
			}
		}
	}
	// www.example.com and bob@mail.example.com survive every step.
	assert.Len(t, rejected, len(candidates)-2)
}

func TestNameConstraintsAddAndClone(t *testing.T) {
	v := NewNameConstraintValidator()
	v.AddNameConstraints(&NameConstraints{
		Permitted:        subtrees(DNSGeneralName("example.com")),
		PermittedPresent: true,
		Excluded:         subtrees(DNSGeneralName("bad.example.com")),
	})
	v.AddNameConstraints(nil)

	clone := v.Clone()
	clone.IntersectPermitted(subtrees(DNSGeneralName("www.example.com")))
	clone.UnionExcludedSubtree(GeneralSubtree{Base: EmailGeneralName("example.com")})

	assert.NoError(t, v.CheckName(DNSGeneralName("api.example.com")))
	assert.Error(t, v.CheckName(DNSGeneralName("x.bad.example.com")))
	assert.Empty(t, v.Excluded(GeneralNameRFC822))
	assert.Error(t, clone.CheckName(DNSGeneralName("api.example.com")))
}

func TestSubtreeWithin(t *testing.T) {
	assert.True(t, subtreeWithin(DNSGeneralName("a.example.com"), DNSGeneralName("example.com")))
	assert.False(t, subtreeWithin(DNSGeneralName("example.com"), DNSGeneralName("a.example.com")))
	assert.True(t, subtreeWithin(EmailGeneralName("alice@example.com"), EmailGeneralName("example.com")))
	assert.True(t, subtreeWithin(cidr(t, "10.1.0.0/16"), cidr(t, "10.0.0.0/8")))
	assert.False(t, subtreeWithin(cidr(t, "10.0.0.0/8"), cidr(t, "10.1.0.0/16")))
	assert.True(t, subtreeWithin(
		dirName(t, pkix.Name{Organization: []string{"Org"}, OrganizationalUnit: []string{"Unit"}}),
		dirName(t, pkix.Name{Organization: []string{"Org"}})))
}

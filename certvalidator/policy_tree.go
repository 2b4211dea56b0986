// Package certvalidator provides X.509 certificate path validation.
// This file contains policy tree processing for RFC 5280 path validation.
package certvalidator

import (
	"fmt"
	"strings"
)

// AnyPolicy is the special OID indicating acceptance of any policy.
const AnyPolicy = "2.5.29.32.0"

// PolicyNodeHandle addresses a node in a PolicyTree.
type PolicyNodeHandle int

// NoPolicyNode is the handle of a missing node, such as the parent of the root.
const NoPolicyNode PolicyNodeHandle = -1

// PolicyNode is a node of the valid policy tree.
type PolicyNode struct {
	ValidPolicy       string
	ExpectedPolicySet OIDSet
	Qualifiers        []PolicyQualifier
	Depth             int
	Critical          bool

	parent   PolicyNodeHandle
	children []PolicyNodeHandle
	removed  bool
}

// Parent returns the handle of the parent node, or NoPolicyNode for the root.
func (n *PolicyNode) Parent() PolicyNodeHandle {
	return n.parent
}

// Children returns the handles of the node's children.
func (n *PolicyNode) Children() []PolicyNodeHandle {
	return append([]PolicyNodeHandle{}, n.children...)
}

// HasChildren reports whether the node has at least one child.
func (n *PolicyNode) HasChildren() bool {
	return len(n.children) > 0
}

// PolicyTree is the valid policy tree, stored as an arena of nodes addressed
// by handle with a per-depth index.
//
// A tree whose root has been removed is destroyed: every operation that can
// destroy the tree reports it by returning false, after which the tree must be
// discarded.
type PolicyTree struct {
	nodes   []PolicyNode
	root    PolicyNodeHandle
	byDepth [][]PolicyNodeHandle
}

// NewPolicyTree creates the initial tree: a root at depth 0 with valid policy
// any-policy and expected set {any-policy}.
func NewPolicyTree() *PolicyTree {
	t := &PolicyTree{root: NoPolicyNode}
	t.root = t.newNode(NoPolicyNode, AnyPolicy, NewOIDSet(AnyPolicy), nil, false, 0)
	return t
}

func (t *PolicyTree) newNode(parent PolicyNodeHandle, policy string, expected OIDSet, quals []PolicyQualifier, critical bool, depth int) PolicyNodeHandle {
	h := PolicyNodeHandle(len(t.nodes))
	t.nodes = append(t.nodes, PolicyNode{
		ValidPolicy:       policy,
		ExpectedPolicySet: expected,
		Qualifiers:        quals,
		Depth:             depth,
		Critical:          critical,
		parent:            parent,
	})
	for len(t.byDepth) <= depth {
		t.byDepth = append(t.byDepth, nil)
	}
	t.byDepth[depth] = append(t.byDepth[depth], h)
	return h
}

// Root returns the root handle, or NoPolicyNode if the tree was destroyed.
func (t *PolicyTree) Root() PolicyNodeHandle {
	return t.root
}

// Node returns the node for a handle.
func (t *PolicyTree) Node(h PolicyNodeHandle) *PolicyNode {
	if h < 0 || int(h) >= len(t.nodes) || t.nodes[h].removed {
		return nil
	}
	return &t.nodes[h]
}

// NodesAtDepth returns the live nodes at a depth.
func (t *PolicyTree) NodesAtDepth(depth int) []PolicyNodeHandle {
	if depth < 0 || depth >= len(t.byDepth) {
		return nil
	}
	return append([]PolicyNodeHandle{}, t.byDepth[depth]...)
}

// MaxDepth returns the deepest depth that has an index entry.
func (t *PolicyTree) MaxDepth() int {
	return len(t.byDepth) - 1
}

// AddChild creates a child of parent one level deeper and returns its handle.
func (t *PolicyTree) AddChild(parent PolicyNodeHandle, policy string, expected OIDSet, quals []PolicyQualifier, critical bool) PolicyNodeHandle {
	p := t.Node(parent)
	if p == nil {
		return NoPolicyNode
	}
	depth := p.Depth + 1
	h := t.newNode(parent, policy, expected, quals, critical, depth)
	t.nodes[parent].children = append(t.nodes[parent].children, h)
	return h
}

// RemoveNode detaches a node and its descendants from the tree and from the
// depth index. Removing the root destroys the tree and returns false.
func (t *PolicyTree) RemoveNode(h PolicyNodeHandle) bool {
	n := t.Node(h)
	if n == nil {
		return t.root != NoPolicyNode
	}
	if n.parent == NoPolicyNode {
		t.destroy()
		return false
	}
	parent := &t.nodes[n.parent]
	parent.children = removeHandle(parent.children, h)
	t.removeRecurse(h)
	return true
}

func (t *PolicyTree) removeRecurse(h PolicyNodeHandle) {
	n := &t.nodes[h]
	t.byDepth[n.Depth] = removeHandle(t.byDepth[n.Depth], h)
	n.removed = true
	for _, c := range n.children {
		t.removeRecurse(c)
	}
	n.children = nil
}

func (t *PolicyTree) destroy() {
	t.nodes = nil
	t.byDepth = nil
	t.root = NoPolicyNode
}

// Prune removes childless nodes from depth down to 0. It returns false if the
// tree was destroyed.
func (t *PolicyTree) Prune(depth int) bool {
	if depth >= len(t.byDepth) {
		depth = len(t.byDepth) - 1
	}
	for j := depth; j >= 0; j-- {
		for _, h := range t.NodesAtDepth(j) {
			n := t.Node(h)
			if n == nil || n.HasChildren() {
				continue
			}
			if !t.RemoveNode(h) {
				return false
			}
		}
	}
	return true
}

// RemoveNodeAndPrune removes a node and then prunes every ancestor level that
// became childless.
func (t *PolicyTree) RemoveNodeAndPrune(h PolicyNodeHandle) bool {
	n := t.Node(h)
	if n == nil {
		return t.root != NoPolicyNode
	}
	depth := n.Depth
	if !t.RemoveNode(h) {
		return false
	}
	return t.Prune(depth - 1)
}

func removeHandle(list []PolicyNodeHandle, h PolicyNodeHandle) []PolicyNodeHandle {
	out := list[:0]
	for _, x := range list {
		if x != h {
			out = append(out, x)
		}
	}
	return out
}

// ProcessCertificatePolicies applies the per-certificate policy step for the
// certificate at depth i of an n certificate path. It returns false if the
// tree was destroyed.
func (t *PolicyTree) ProcessCertificatePolicies(i, n int, policies []PolicyInformation, critical bool, inhibitAnyPolicy int, selfIssued bool) bool {
	var anyQualifiers []PolicyQualifier
	assertsAny := false
	for _, pi := range policies {
		if pi.Policy == AnyPolicy {
			if !assertsAny {
				anyQualifiers = pi.Qualifiers
			}
			assertsAny = true
			continue
		}
		if !t.attachMatching(i, pi) {
			t.attachToAnyPolicy(i, pi)
		}
	}

	if assertsAny && (inhibitAnyPolicy > 0 || (i < n && selfIssued)) {
		for _, h := range t.NodesAtDepth(i - 1) {
			node := t.Node(h)
			for _, policy := range node.ExpectedPolicySet.Sorted() {
				if t.hasChildWithPolicy(h, policy) {
					continue
				}
				t.AddChild(h, policy, NewOIDSet(policy), anyQualifiers, false)
			}
		}
	}

	if !t.Prune(i - 1) {
		return false
	}

	for _, h := range t.NodesAtDepth(i) {
		t.nodes[h].Critical = critical
	}
	return true
}

func (t *PolicyTree) attachMatching(i int, pi PolicyInformation) bool {
	matched := false
	for _, h := range t.NodesAtDepth(i - 1) {
		if t.nodes[h].ExpectedPolicySet.Contains(pi.Policy) {
			t.AddChild(h, pi.Policy, NewOIDSet(pi.Policy), pi.Qualifiers, false)
			matched = true
		}
	}
	return matched
}

func (t *PolicyTree) attachToAnyPolicy(i int, pi PolicyInformation) {
	for _, h := range t.NodesAtDepth(i - 1) {
		if t.nodes[h].ValidPolicy == AnyPolicy {
			t.AddChild(h, pi.Policy, NewOIDSet(pi.Policy), pi.Qualifiers, false)
			return
		}
	}
}

func (t *PolicyTree) hasChildWithPolicy(h PolicyNodeHandle, policy string) bool {
	for _, c := range t.nodes[h].children {
		if t.nodes[c].ValidPolicy == policy {
			return true
		}
	}
	return false
}

// ApplyPolicyMappings processes the policyMappings of the certificate at depth
// i. While policy mapping is allowed the expected sets are rewritten;
// otherwise the mapped policies are deleted. anyPolicyQualifiers and critical
// describe the certificate's own certificatePolicies extension. It returns
// false if the tree was destroyed.
func (t *PolicyTree) ApplyPolicyMappings(i int, mappings []PolicyMapping, policyMapping int, anyPolicyQualifiers []PolicyQualifier, critical bool) bool {
	issuerPolicies, mapped := groupMappings(mappings)
	for _, idp := range issuerPolicies {
		if policyMapping > 0 {
			t.mapPolicy(i, idp, mapped[idp], anyPolicyQualifiers, critical)
			continue
		}
		for _, h := range t.NodesAtDepth(i) {
			node := t.Node(h)
			if node == nil || node.ValidPolicy != idp {
				continue
			}
			if !t.RemoveNode(h) {
				return false
			}
			if !t.Prune(i - 1) {
				return false
			}
		}
	}
	return true
}

func (t *PolicyTree) mapPolicy(i int, idp string, subjectPolicies OIDSet, anyPolicyQualifiers []PolicyQualifier, critical bool) {
	for _, h := range t.NodesAtDepth(i) {
		if t.nodes[h].ValidPolicy == idp {
			t.nodes[h].ExpectedPolicySet = subjectPolicies.Clone()
			return
		}
	}
	for _, h := range t.NodesAtDepth(i) {
		node := t.nodes[h]
		if node.ValidPolicy != AnyPolicy {
			continue
		}
		parent := t.Node(node.parent)
		if parent != nil && parent.ValidPolicy == AnyPolicy {
			t.AddChild(node.parent, idp, subjectPolicies.Clone(), anyPolicyQualifiers, critical)
		}
		return
	}
}

// groupMappings collects subject domain policies per issuer domain policy,
// keeping the issuer policies in order of first appearance.
func groupMappings(mappings []PolicyMapping) ([]string, map[string]OIDSet) {
	var order []string
	out := make(map[string]OIDSet)
	for _, m := range mappings {
		set, ok := out[m.IssuerDomainPolicy]
		if !ok {
			set = NewOIDSet()
			out[m.IssuerDomainPolicy] = set
			order = append(order, m.IssuerDomainPolicy)
		}
		set[m.SubjectDomainPolicy] = struct{}{}
	}
	return order, out
}

// validPolicyNodeSet returns the children of every any-policy node, optionally
// skipping children that are themselves any-policy.
func (t *PolicyTree) validPolicyNodeSet(skipAny bool) []PolicyNodeHandle {
	var out []PolicyNodeHandle
	for d := 0; d < len(t.byDepth); d++ {
		for _, h := range t.byDepth[d] {
			if t.nodes[h].ValidPolicy != AnyPolicy {
				continue
			}
			for _, c := range t.nodes[h].children {
				if skipAny && t.nodes[c].ValidPolicy == AnyPolicy {
					continue
				}
				out = append(out, c)
			}
		}
	}
	return out
}

// IntersectUserPolicies computes the intersection of the tree with the user
// initial policy set for an n certificate path. It returns false if the tree
// was destroyed.
func (t *PolicyTree) IntersectUserPolicies(n int, userInitialPolicySet OIDSet) bool {
	for _, h := range t.validPolicyNodeSet(true) {
		node := t.Node(h)
		if node == nil || userInitialPolicySet.Contains(node.ValidPolicy) {
			continue
		}
		if !t.RemoveNode(h) {
			return false
		}
	}
	return t.Prune(n - 1)
}

// LeafPolicies returns the distinct valid policies of the nodes at depth.
func (t *PolicyTree) LeafPolicies(depth int) []string {
	set := NewOIDSet()
	for _, h := range t.NodesAtDepth(depth) {
		set[t.nodes[h].ValidPolicy] = struct{}{}
	}
	return set.Sorted()
}

// Walk calls fn for every live node, parents before children.
func (t *PolicyTree) Walk(fn func(h PolicyNodeHandle, node *PolicyNode)) {
	if t.root == NoPolicyNode {
		return
	}
	stack := []PolicyNodeHandle{t.root}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := &t.nodes[h]
		fn(h, node)
		for i := len(node.children) - 1; i >= 0; i-- {
			stack = append(stack, node.children[i])
		}
	}
}

// Clone returns an independent copy of the tree.
func (t *PolicyTree) Clone() *PolicyTree {
	out := &PolicyTree{root: t.root}
	out.nodes = make([]PolicyNode, len(t.nodes))
	for i, n := range t.nodes {
		cp := n
		cp.ExpectedPolicySet = n.ExpectedPolicySet.Clone()
		cp.children = append([]PolicyNodeHandle{}, n.children...)
		cp.Qualifiers = append([]PolicyQualifier{}, n.Qualifiers...)
		out.nodes[i] = cp
	}
	out.byDepth = make([][]PolicyNodeHandle, len(t.byDepth))
	for d, hs := range t.byDepth {
		out.byDepth[d] = append([]PolicyNodeHandle{}, hs...)
	}
	return out
}

// String renders the tree, one node per line indented by depth.
func (t *PolicyTree) String() string {
	var b strings.Builder
	t.Walk(func(_ PolicyNodeHandle, node *PolicyNode) {
		expected := node.ExpectedPolicySet.Sorted()
		fmt.Fprintf(&b, "%s%s {%s} critical=%t\n",
			strings.Repeat("  ", node.Depth), node.ValidPolicy, strings.Join(expected, ","), node.Critical)
	})
	return b.String()
}

package certvalidator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPolicyA = "1.3.6.1.4.1.55555.1.1"
	testPolicyB = "1.3.6.1.4.1.55555.1.2"
	testPolicyC = "1.3.6.1.4.1.55555.1.3"
)

func policies(oids ...string) []PolicyInformation {
	out := make([]PolicyInformation, len(oids))
	for i, o := range oids {
		out[i] = PolicyInformation{Policy: o}
	}
	return out
}

// assertDepths checks that every child sits exactly one level below its
// parent and that the depth index agrees with the nodes.
func assertDepths(t *testing.T, tree *PolicyTree) {
	t.Helper()
	tree.Walk(func(h PolicyNodeHandle, node *PolicyNode) {
		for _, c := range node.Children() {
			child := tree.Node(c)
			require.NotNil(t, child)
			assert.Equal(t, node.Depth+1, child.Depth)
			assert.Equal(t, h, child.Parent())
		}
	})
	for d := 0; d <= tree.MaxDepth(); d++ {
		for _, h := range tree.NodesAtDepth(d) {
			node := tree.Node(h)
			require.NotNil(t, node, "index holds removed node %d", h)
			assert.Equal(t, d, node.Depth)
		}
	}
}

func TestNewPolicyTree(t *testing.T) {
	tree := NewPolicyTree()
	root := tree.Node(tree.Root())
	require.NotNil(t, root)
	assert.Equal(t, AnyPolicy, root.ValidPolicy)
	assert.Equal(t, []string{AnyPolicy}, root.ExpectedPolicySet.Sorted())
	assert.Equal(t, 0, root.Depth)
	assert.Equal(t, NoPolicyNode, root.Parent())
	assert.Equal(t, 0, tree.MaxDepth())
	assert.Equal(t, "2.5.29.32.0 {2.5.29.32.0} critical=false\n", tree.String())
}

func TestPolicyTreeProcessCertificatePolicies(t *testing.T) {
	t.Run("asserted policy hangs below any-policy root", func(t *testing.T) {
		tree := NewPolicyTree()
		require.True(t, tree.ProcessCertificatePolicies(1, 2, policies(testPolicyA), true, 1, false))
		assert.Equal(t, []string{testPolicyA}, tree.LeafPolicies(1))
		for _, h := range tree.NodesAtDepth(1) {
			assert.True(t, tree.Node(h).Critical)
		}
		assertDepths(t, tree)
	})

	t.Run("any-policy expands expected sets", func(t *testing.T) {
		tree := NewPolicyTree()
		require.True(t, tree.ProcessCertificatePolicies(1, 3, policies(testPolicyA, testPolicyB), false, 1, false))
		require.True(t, tree.ProcessCertificatePolicies(2, 3, policies(AnyPolicy), false, 1, false))
		assert.Equal(t, []string{testPolicyA, testPolicyB}, tree.LeafPolicies(2))
		assertDepths(t, tree)
	})

	t.Run("any-policy ignored once inhibited", func(t *testing.T) {
		tree := NewPolicyTree()
		require.True(t, tree.ProcessCertificatePolicies(1, 3, policies(testPolicyA), false, 1, false))
		// Only any-policy is asserted, so nothing is attached and the tree collapses.
		assert.False(t, tree.ProcessCertificatePolicies(2, 3, policies(AnyPolicy), false, 0, false))
		assert.Equal(t, NoPolicyNode, tree.Root())
	})

	t.Run("self-issued intermediate keeps any-policy", func(t *testing.T) {
		tree := NewPolicyTree()
		require.True(t, tree.ProcessCertificatePolicies(1, 3, policies(AnyPolicy), false, 0, true))
		assert.Equal(t, []string{AnyPolicy}, tree.LeafPolicies(1))
	})

	t.Run("unmatched policy attaches to any-policy node", func(t *testing.T) {
		tree := NewPolicyTree()
		require.True(t, tree.ProcessCertificatePolicies(1, 3, policies(AnyPolicy), false, 1, false))
		require.True(t, tree.ProcessCertificatePolicies(2, 3, policies(testPolicyC), false, 1, false))
		assert.Equal(t, []string{testPolicyC}, tree.LeafPolicies(2))
		parent := tree.Node(tree.Node(tree.NodesAtDepth(2)[0]).Parent())
		assert.Equal(t, AnyPolicy, parent.ValidPolicy)
		assertDepths(t, tree)
	})

	t.Run("disjoint policies destroy the tree", func(t *testing.T) {
		tree := NewPolicyTree()
		require.True(t, tree.ProcessCertificatePolicies(1, 3, policies(testPolicyA), false, 1, false))
		assert.False(t, tree.ProcessCertificatePolicies(2, 3, policies(testPolicyB), false, 1, false))
		assert.Nil(t, tree.Node(0))
	})
}

func TestPolicyTreeApplyPolicyMappings(t *testing.T) {
	mapping := []PolicyMapping{{IssuerDomainPolicy: testPolicyA, SubjectDomainPolicy: testPolicyB}}

	t.Run("mapping rewrites expected set", func(t *testing.T) {
		tree := NewPolicyTree()
		require.True(t, tree.ProcessCertificatePolicies(1, 2, policies(testPolicyA), false, 1, false))
		require.True(t, tree.ApplyPolicyMappings(1, mapping, 1, nil, false))
		node := tree.Node(tree.NodesAtDepth(1)[0])
		assert.Equal(t, []string{testPolicyB}, node.ExpectedPolicySet.Sorted())

		require.True(t, tree.ProcessCertificatePolicies(2, 2, policies(testPolicyB), false, 1, false))
		assert.Equal(t, []string{testPolicyB}, tree.LeafPolicies(2))
		assertDepths(t, tree)
	})

	t.Run("mapping from any-policy node", func(t *testing.T) {
		tree := NewPolicyTree()
		require.True(t, tree.ProcessCertificatePolicies(1, 2, policies(AnyPolicy), false, 1, false))
		require.True(t, tree.ApplyPolicyMappings(1, mapping, 1, nil, false))
		var mapped *PolicyNode
		for _, h := range tree.NodesAtDepth(1) {
			if n := tree.Node(h); n.ValidPolicy == testPolicyA {
				mapped = n
			}
		}
		require.NotNil(t, mapped)
		assert.Equal(t, []string{testPolicyB}, mapped.ExpectedPolicySet.Sorted())
	})

	t.Run("inhibited mapping deletes the policy", func(t *testing.T) {
		tree := NewPolicyTree()
		require.True(t, tree.ProcessCertificatePolicies(1, 2, policies(testPolicyA), false, 1, false))
		assert.False(t, tree.ApplyPolicyMappings(1, mapping, 0, nil, false))
		assert.Equal(t, NoPolicyNode, tree.Root())
	})

	t.Run("inhibited mapping keeps other policies", func(t *testing.T) {
		tree := NewPolicyTree()
		require.True(t, tree.ProcessCertificatePolicies(1, 2, policies(testPolicyA, testPolicyC), false, 1, false))
		require.True(t, tree.ApplyPolicyMappings(1, mapping, 0, nil, false))
		assert.Equal(t, []string{testPolicyC}, tree.LeafPolicies(1))
	})
}

func TestPolicyTreeIntersectUserPolicies(t *testing.T) {
	tree := NewPolicyTree()
	require.True(t, tree.ProcessCertificatePolicies(1, 2, policies(AnyPolicy), false, 1, false))
	require.True(t, tree.ProcessCertificatePolicies(2, 2, policies(testPolicyA, testPolicyB), false, 1, false))

	require.True(t, tree.IntersectUserPolicies(2, NewOIDSet(testPolicyA)))
	assert.Equal(t, []string{testPolicyA}, tree.LeafPolicies(2))
	assertDepths(t, tree)

	assert.False(t, tree.IntersectUserPolicies(2, NewOIDSet(testPolicyC)))
}

func TestPolicyTreeRemoveNode(t *testing.T) {
	tree := NewPolicyTree()
	a := tree.AddChild(tree.Root(), testPolicyA, NewOIDSet(testPolicyA), nil, false)
	b := tree.AddChild(tree.Root(), testPolicyB, NewOIDSet(testPolicyB), nil, false)
	a1 := tree.AddChild(a, testPolicyC, NewOIDSet(testPolicyC), nil, false)
	require.Equal(t, 2, tree.MaxDepth())

	require.True(t, tree.RemoveNode(a))
	assert.Nil(t, tree.Node(a))
	assert.Nil(t, tree.Node(a1), "descendants go with their parent")
	assert.Empty(t, tree.NodesAtDepth(2))
	assert.Equal(t, []PolicyNodeHandle{b}, tree.NodesAtDepth(1))
	assertDepths(t, tree)

	assert.Equal(t, NoPolicyNode, tree.AddChild(a, testPolicyA, nil, nil, false))

	assert.False(t, tree.RemoveNodeAndPrune(b), "childless root is pruned")
	assert.Equal(t, NoPolicyNode, tree.Root())
}

func TestPolicyTreeClone(t *testing.T) {
	tree := NewPolicyTree()
	a := tree.AddChild(tree.Root(), testPolicyA, NewOIDSet(testPolicyA), nil, false)
	tree.AddChild(tree.Root(), testPolicyB, NewOIDSet(testPolicyB), nil, false)
	before := tree.String()

	clone := tree.Clone()
	require.Equal(t, before, clone.String())
	require.True(t, clone.RemoveNode(a))
	clone.Node(clone.Root()).ExpectedPolicySet[testPolicyC] = struct{}{}

	assert.Equal(t, before, tree.String())
	assert.NotEqual(t, before, clone.String())
}

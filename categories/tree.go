package categories

import (
	"context"

	"github.com/warp/ledger-engine/ledger"
)

// TreeNode is one category in the materialized forest.
type TreeNode struct {
	Category ledger.Category
	Children []*TreeNode
}

// GetTree returns the organization's forest. Roots and each child list are
// ordered by name; the cached copy is returned when present.
func (s *Service) GetTree(ctx context.Context, orgID ledger.OrgID) ([]*TreeNode, error) {
	if tree, ok := s.cache.Get(orgID); ok {
		return tree, nil
	}

	all, err := s.store.ListCategories(ctx, orgID, ledger.CategoryFilter{})
	if err != nil {
		return nil, err
	}

	tree := BuildTree(all)
	s.cache.Add(orgID, tree)
	return tree, nil
}

// BuildTree links categories into a forest. Input must be ordered by
// (depth, name), which places every parent before its children. A node
// whose parent is missing is treated as a root.
func BuildTree(categories []ledger.Category) []*TreeNode {
	nodes := make(map[ledger.CategoryID]*TreeNode, len(categories))
	roots := []*TreeNode{}

	for _, c := range categories {
		node := &TreeNode{Category: c, Children: []*TreeNode{}}
		nodes[c.ID] = node

		if c.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*c.ParentID]
		if !ok {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return roots
}

// Walk visits every node depth-first, parents before children.
func Walk(tree []*TreeNode, fn func(n *TreeNode)) {
	stack := make([]*TreeNode, 0, len(tree))
	for i := len(tree) - 1; i >= 0; i-- {
		stack = append(stack, tree[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(n)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

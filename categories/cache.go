package categories

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/warp/ledger-engine/ledger"
)

// TreeCache holds materialized category forests keyed by organization.
// Cached trees are shared between callers and must not be mutated.
type TreeCache interface {
	Get(orgID ledger.OrgID) ([]*TreeNode, bool)
	Add(orgID ledger.OrgID, tree []*TreeNode)
	Invalidate(orgID ledger.OrgID)
}

// LRUCache is a size-bounded TreeCache whose entries expire after a TTL.
// The least recently used organization is evicted on overflow.
type LRUCache struct {
	lru *expirable.LRU[ledger.OrgID, []*TreeNode]
}

var _ TreeCache = (*LRUCache)(nil)

// NewLRUCache returns a cache holding at most size trees for at most ttl.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	return &LRUCache{lru: expirable.NewLRU[ledger.OrgID, []*TreeNode](size, nil, ttl)}
}

func (c *LRUCache) Get(orgID ledger.OrgID) ([]*TreeNode, bool) {
	return c.lru.Get(orgID)
}

func (c *LRUCache) Add(orgID ledger.OrgID, tree []*TreeNode) {
	c.lru.Add(orgID, tree)
}

func (c *LRUCache) Invalidate(orgID ledger.OrgID) {
	c.lru.Remove(orgID)
}

// Len returns the number of cached organizations.
func (c *LRUCache) Len() int {
	return c.lru.Len()
}

// NopCache never stores anything. Every GetTree reads the store.
type NopCache struct{}

var _ TreeCache = NopCache{}

func (NopCache) Get(ledger.OrgID) ([]*TreeNode, bool) { return nil, false }
func (NopCache) Add(ledger.OrgID, []*TreeNode)        {}
func (NopCache) Invalidate(ledger.OrgID)              {}

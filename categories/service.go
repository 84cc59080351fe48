/*
Package categories maintains each organization's bounded-depth category forest.

PURPOSE:

	Categories label transaction splits for reporting. They form a forest per
	organization: roots sit at depth 0 and nothing may sit deeper than
	ledger.MaxDepth. Depth and path are derived from ancestry and recomputed
	for the whole subtree whenever a category changes parent.

INVARIANTS (hold after every committed operation):
  - depth(c) == depth(parent(c)) + 1, or 0 for roots
  - no category is its own ancestor
  - sibling names are unique, case-insensitively
  - path(c) == path(parent(c)) + "/" + id(c)

REPARENT FLOW:

	┌──────────────┐   ┌───────────────┐   ┌────────────────┐   ┌────────────┐
	│ walk parent's│──▶│ new depth from│──▶│ BFS descendants│──▶│ write mover│
	│ ancestors    │   │ new parent    │   │ check deepest  │   │ + subtree  │
	│ (cycle?)     │   │               │   │ <= MaxDepth    │   │ in one tx  │
	└──────────────┘   └───────────────┘   └────────────────┘   └────────────┘

CACHING:

	GetTree is served from an injectable TreeCache keyed by organization.
	Every committed create, update, move, delete or seed invalidates that
	organization's entry before returning.

SEE ALSO:
  - cache.go: LRU + TTL tree cache
  - seed.go:  YAML category import
*/
package categories

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service owns category creation, reparenting and tree projection.
type Service struct {
	store ledger.TxStore
	cache TreeCache
	log   zerolog.Logger
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache sets the tree cache. The default is NopCache.
func WithCache(c TreeCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store ledger.TxStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		cache: NopCache{},
		log:   zerolog.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateInput carries the optional changes of Update. A nil field is left
// unchanged. MoveToRoot clears the parent and takes precedence over ParentID.
type UpdateInput struct {
	Name       *string
	ParentID   *ledger.CategoryID
	MoveToRoot bool
	Active     *bool
}

// DeleteOptions tells Delete what to do with the category's children.
type DeleteOptions struct {
	MoveChildrenTo     *ledger.CategoryID
	MoveChildrenToRoot bool
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) Get(ctx context.Context, orgID ledger.OrgID, id ledger.CategoryID) (*ledger.Category, error) {
	return s.store.GetCategory(ctx, orgID, id)
}

func (s *Service) List(ctx context.Context, orgID ledger.OrgID, filter ledger.CategoryFilter) ([]ledger.Category, error) {
	return s.store.ListCategories(ctx, orgID, filter)
}

// =============================================================================
// CREATE
// =============================================================================

// Create adds a category under parentID, or at the root when parentID is nil.
func (s *Service) Create(ctx context.Context, orgID ledger.OrgID, name string, parentID *ledger.CategoryID) (*ledger.Category, error) {
	var created *ledger.Category
	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		c, err := s.create(ctx, st, orgID, name, parentID)
		created = c
		return err
	})
	if err != nil {
		s.log.Debug().Err(err).Str("org_id", string(orgID)).Str("name", name).Msg("category create rejected")
		return nil, err
	}

	s.cache.Invalidate(orgID)
	s.log.Info().
		Str("org_id", string(orgID)).
		Str("category_id", string(created.ID)).
		Int("depth", created.Depth).
		Msg("category created")
	return created, nil
}

func (s *Service) create(ctx context.Context, st ledger.Store, orgID ledger.OrgID, name string, parentID *ledger.CategoryID) (*ledger.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ledger.FieldError{Field: "name", Reason: "must not be empty"}
	}

	id := ledger.CategoryID(uuid.NewString())
	depth := 0
	path := string(id)

	if parentID != nil {
		parent, err := st.GetCategory(ctx, orgID, *parentID)
		if err != nil {
			return nil, err
		}
		if !parent.Active {
			return nil, &ledger.InactiveError{Kind: "category", ID: string(parent.ID)}
		}
		depth = parent.Depth + 1
		if depth > ledger.MaxDepth {
			return nil, &ledger.DepthExceededError{Depth: depth, Max: ledger.MaxDepth}
		}
		path = joinPath(pathOf(*parent), id)
	}

	if err := checkSiblingName(ctx, st, orgID, parentID, name, ""); err != nil {
		return nil, err
	}

	now := s.now()
	c := ledger.Category{
		ID:        id,
		OrgID:     orgID,
		Name:      name,
		ParentID:  parentID,
		Depth:     depth,
		Path:      &path,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.InsertCategory(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// =============================================================================
// UPDATE / MOVE
// =============================================================================

// Update renames, reparents or (de)activates a category. A parent change
// re-depths the whole subtree in the same store transaction.
func (s *Service) Update(ctx context.Context, orgID ledger.OrgID, id ledger.CategoryID, in UpdateInput) (*ledger.Category, error) {
	var updated *ledger.Category
	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		c, err := s.update(ctx, st, orgID, id, in)
		updated = c
		return err
	})
	if err != nil {
		s.log.Debug().Err(err).Str("org_id", string(orgID)).Str("category_id", string(id)).Msg("category update rejected")
		return nil, err
	}

	s.cache.Invalidate(orgID)
	s.log.Info().
		Str("org_id", string(orgID)).
		Str("category_id", string(id)).
		Int("depth", updated.Depth).
		Msg("category updated")
	return updated, nil
}

// Move reparents a category. A nil parent moves it to the root.
func (s *Service) Move(ctx context.Context, orgID ledger.OrgID, id ledger.CategoryID, parentID *ledger.CategoryID) (*ledger.Category, error) {
	if parentID == nil {
		return s.Update(ctx, orgID, id, UpdateInput{MoveToRoot: true})
	}
	return s.Update(ctx, orgID, id, UpdateInput{ParentID: parentID})
}

func (s *Service) update(ctx context.Context, st ledger.Store, orgID ledger.OrgID, id ledger.CategoryID, in UpdateInput) (*ledger.Category, error) {
	c, err := st.GetCategory(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	name := c.Name
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, &ledger.FieldError{Field: "name", Reason: "must not be empty"}
		}
	}

	parentChanged := false
	newParent := c.ParentID
	switch {
	case in.MoveToRoot:
		parentChanged = c.ParentID != nil
		newParent = nil
	case in.ParentID != nil:
		parentChanged = c.ParentID == nil || *c.ParentID != *in.ParentID
		newParent = in.ParentID
	}

	var plan *movePlan
	if parentChanged {
		if plan, err = planMove(ctx, st, *c, newParent); err != nil {
			return nil, err
		}
	}

	if parentChanged || ledger.NameKey(name) != ledger.NameKey(c.Name) {
		if err := checkSiblingName(ctx, st, orgID, newParent, name, c.ID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	c.Name = name
	if in.Active != nil {
		c.Active = *in.Active
	}
	c.UpdatedAt = now

	if plan != nil {
		if err := plan.apply(ctx, st, c, now); err != nil {
			return nil, err
		}
		return c, nil
	}
	if err := st.UpdateCategory(ctx, *c); err != nil {
		return nil, err
	}
	return c, nil
}

// movePlan is a validated reparent: the mover's new position and the new
// depth and path of every descendant, parents before children.
type movePlan struct {
	parentID    *ledger.CategoryID
	depth       int
	path        string
	descendants []ledger.Category
}

// planMove validates moving c under parentID (root when nil) and computes
// the resulting depths. Nothing is written.
func planMove(ctx context.Context, st ledger.Store, c ledger.Category, parentID *ledger.CategoryID) (*movePlan, error) {
	plan := &movePlan{parentID: parentID, path: string(c.ID)}

	if parentID != nil {
		parent, err := st.GetCategory(ctx, c.OrgID, *parentID)
		if err != nil {
			return nil, err
		}
		if err := checkNotAncestor(ctx, st, c.ID, *parent); err != nil {
			return nil, err
		}
		if !parent.Active {
			return nil, &ledger.InactiveError{Kind: "category", ID: string(parent.ID)}
		}
		plan.depth = parent.Depth + 1
		plan.path = joinPath(pathOf(*parent), c.ID)
	}

	descendants, err := descendantsOf(ctx, st, c)
	if err != nil {
		return nil, err
	}

	depths := map[ledger.CategoryID]int{c.ID: plan.depth}
	paths := map[ledger.CategoryID]string{c.ID: plan.path}
	deepest := plan.depth
	for i := range descendants {
		d := &descendants[i]
		parent := *d.ParentID
		d.Depth = depths[parent] + 1
		p := joinPath(paths[parent], d.ID)
		d.Path = &p
		depths[d.ID] = d.Depth
		paths[d.ID] = p
		if d.Depth > deepest {
			deepest = d.Depth
		}
	}
	if deepest > ledger.MaxDepth {
		return nil, &ledger.DepthExceededError{CategoryID: c.ID, Depth: deepest, Max: ledger.MaxDepth}
	}

	plan.descendants = descendants
	return plan, nil
}

// apply writes the mover and then its subtree.
func (p *movePlan) apply(ctx context.Context, st ledger.Store, c *ledger.Category, now time.Time) error {
	c.ParentID = p.parentID
	c.Depth = p.depth
	path := p.path
	c.Path = &path
	c.UpdatedAt = now
	if err := st.UpdateCategory(ctx, *c); err != nil {
		return err
	}
	for _, d := range p.descendants {
		d.UpdatedAt = now
		if err := st.UpdateCategory(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// checkNotAncestor walks from candidate up to its root and fails if id is on
// the chain, which would make id its own ancestor.
func checkNotAncestor(ctx context.Context, st ledger.Store, id ledger.CategoryID, candidate ledger.Category) error {
	visited := make(map[ledger.CategoryID]bool)
	cur := candidate
	for {
		if cur.ID == id {
			return &ledger.CycleError{CategoryID: id, ParentID: candidate.ID}
		}
		if visited[cur.ID] || cur.ParentID == nil {
			return nil
		}
		visited[cur.ID] = true

		next, err := st.GetCategory(ctx, cur.OrgID, *cur.ParentID)
		if err != nil {
			return err
		}
		cur = *next
	}
}

// descendantsOf returns every transitive child of c in breadth-first order.
func descendantsOf(ctx context.Context, st ledger.Store, c ledger.Category) ([]ledger.Category, error) {
	var out []ledger.Category
	visited := map[ledger.CategoryID]bool{c.ID: true}
	queue := []ledger.CategoryID{c.ID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		children, err := st.ChildCategories(ctx, c.OrgID, id)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			out = append(out, child)
			queue = append(queue, child.ID)
		}
	}
	return out, nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes a category that no split references. Children must be
// given a destination through opts; their subtrees are re-depthed.
func (s *Service) Delete(ctx context.Context, orgID ledger.OrgID, id ledger.CategoryID, opts DeleteOptions) error {
	moved := 0
	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		n, err := s.delete(ctx, st, orgID, id, opts)
		moved = n
		return err
	})
	if err != nil {
		s.log.Debug().Err(err).Str("org_id", string(orgID)).Str("category_id", string(id)).Msg("category delete rejected")
		return err
	}

	s.cache.Invalidate(orgID)
	s.log.Info().
		Str("org_id", string(orgID)).
		Str("category_id", string(id)).
		Int("children_moved", moved).
		Msg("category deleted")
	return nil
}

func (s *Service) delete(ctx context.Context, st ledger.Store, orgID ledger.OrgID, id ledger.CategoryID, opts DeleteOptions) (int, error) {
	c, err := st.GetCategory(ctx, orgID, id)
	if err != nil {
		return 0, err
	}

	splits, err := st.CountSplitsByCategory(ctx, id)
	if err != nil {
		return 0, err
	}
	if splits > 0 {
		return 0, &ledger.CategoryInUseError{CategoryID: id, Splits: splits}
	}

	children, err := st.ChildCategories(ctx, orgID, id)
	if err != nil {
		return 0, err
	}

	if len(children) > 0 {
		var target *ledger.CategoryID
		switch {
		case opts.MoveChildrenTo != nil:
			target = opts.MoveChildrenTo
			if *target == id {
				return 0, &ledger.FieldError{Field: "move_children_to", Reason: "cannot be the category being deleted"}
			}
			dest, err := st.GetCategory(ctx, orgID, *target)
			if err != nil {
				return 0, err
			}
			if err := checkNotAncestor(ctx, st, id, *dest); err != nil {
				return 0, err
			}
		case opts.MoveChildrenToRoot:
			target = nil
		default:
			return 0, &ledger.HasChildrenError{CategoryID: id, Children: len(children)}
		}

		now := s.now()
		for _, child := range children {
			plan, err := planMove(ctx, st, child, target)
			if err != nil {
				return 0, err
			}
			if err := checkSiblingName(ctx, st, orgID, target, child.Name, child.ID); err != nil {
				return 0, err
			}
			if err := plan.apply(ctx, st, &child, now); err != nil {
				return 0, err
			}
		}
	}

	if err := st.DeleteCategory(ctx, orgID, c.ID); err != nil {
		return 0, err
	}
	return len(children), nil
}

// =============================================================================
// SPLIT CATEGORY RESOLUTION
// =============================================================================

// ResolveTx finds the category for a transaction split inside an open store
// transaction. With an id the category must exist. Without one, the name is
// matched case-insensitively among the organization's roots and created
// there if missing. created reports whether a row was inserted; the caller
// must call Invalidate after committing.
func (s *Service) ResolveTx(ctx context.Context, st ledger.Store, orgID ledger.OrgID, id *ledger.CategoryID, name string) (c *ledger.Category, created bool, err error) {
	if id != nil {
		c, err = st.GetCategory(ctx, orgID, *id)
		return c, false, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, &ledger.FieldError{Field: "splits", Reason: "each split needs a category id or name"}
	}
	existing, err := st.FindCategoryByName(ctx, orgID, nil, name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	c, err = s.create(ctx, st, orgID, name, nil)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// Invalidate drops the organization's cached tree.
func (s *Service) Invalidate(orgID ledger.OrgID) {
	s.cache.Invalidate(orgID)
}

// =============================================================================
// HELPERS
// =============================================================================

// checkSiblingName fails if another category under parentID already uses
// name. except is the category being renamed or moved.
func checkSiblingName(ctx context.Context, st ledger.Store, orgID ledger.OrgID, parentID *ledger.CategoryID, name string, except ledger.CategoryID) error {
	existing, err := st.FindCategoryByName(ctx, orgID, parentID, name)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != except {
		return &ledger.DuplicateNameError{Name: name, ParentID: parentID, ExistingID: existing.ID}
	}
	return nil
}

func pathOf(c ledger.Category) string {
	if c.Path != nil {
		return *c.Path
	}
	return string(c.ID)
}

func joinPath(parent string, id ledger.CategoryID) string {
	if parent == "" {
		return string(id)
	}
	return parent + "/" + string(id)
}

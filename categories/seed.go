package categories

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/warp/ledger-engine/ledger"
	"gopkg.in/yaml.v3"
)

// SeedNode is one category of a YAML seed file.
//
//	categories:
//	  - name: Travel
//	    children:
//	      - name: Flights
//	      - name: Hotels
type SeedNode struct {
	Name     string     `yaml:"name"`
	Children []SeedNode `yaml:"children,omitempty"`
}

// Seed is a category tree to import into one organization.
type Seed struct {
	Categories []SeedNode `yaml:"categories"`
}

// SeedResult counts what Import did.
type SeedResult struct {
	Created  int
	Existing int
}

// LoadSeed decodes a seed document, rejecting unknown keys.
func LoadSeed(r io.Reader) (*Seed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var seed Seed
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &seed, nil
}

// LoadSeedFile reads and decodes a seed file.
func LoadSeedFile(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return LoadSeed(f)
}

// Import creates every category of the seed that does not exist yet,
// matching names case-insensitively under the same parent. Running it twice
// is a no-op. The whole import is one store transaction.
func (s *Service) Import(ctx context.Context, orgID ledger.OrgID, seed *Seed) (SeedResult, error) {
	type pending struct {
		node     SeedNode
		parentID *ledger.CategoryID
	}

	var result SeedResult
	err := s.store.WithTx(ctx, func(st ledger.Store) error {
		result = SeedResult{}
		queue := make([]pending, 0, len(seed.Categories))
		for _, n := range seed.Categories {
			queue = append(queue, pending{node: n})
		}

		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]

			c, err := st.FindCategoryByName(ctx, orgID, p.parentID, p.node.Name)
			if err != nil {
				return err
			}
			if c != nil {
				result.Existing++
			} else {
				if c, err = s.create(ctx, st, orgID, p.node.Name, p.parentID); err != nil {
					return fmt.Errorf("seed %q: %w", p.node.Name, err)
				}
				result.Created++
			}

			id := c.ID
			for _, child := range p.node.Children {
				queue = append(queue, pending{node: child, parentID: &id})
			}
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}

	s.cache.Invalidate(orgID)
	s.log.Info().
		Str("org_id", string(orgID)).
		Int("created", result.Created).
		Int("existing", result.Existing).
		Msg("categories seeded")
	return result, nil
}

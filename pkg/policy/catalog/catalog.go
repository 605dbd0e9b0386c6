package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dataguild/contractguard/pkg/govtypes"
)

// snapshot is the immutable, atomically-published state of the catalog.
type snapshot struct {
	byID map[string]Policy
	all  []Policy
}

// Catalog loads a directory of policy files into an in-memory, thread-safe
// store. Readers always observe a coherent snapshot; Reload either
// replaces the snapshot wholesale or leaves the previous one untouched.
type Catalog struct {
	dir string

	mu       sync.Mutex // serializes reloads
	current  atomicSnapshot
}

// atomicSnapshot guards the published pointer with an RWMutex so `get`/
// `list` never race a concurrent Reload swap.
type atomicSnapshot struct {
	mu sync.RWMutex
	s  *snapshot
}

func (a *atomicSnapshot) load() *snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.s
}

func (a *atomicSnapshot) store(s *snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.s = s
}

// New constructs a Catalog over the given policy directory and performs
// the initial load. A failing initial load returns an error; there is no
// "previous" snapshot to fall back to yet.
func New(dir string) (*Catalog, error) {
	c := &Catalog{dir: dir}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads every policy file in the directory and, if the whole
// set loads cleanly, atomically publishes it. A malformed file aborts
// the reload with the old catalog left active (§4.1).
func (c *Catalog) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return govtypes.NewError(govtypes.KindPolicyCatalogError, "", "", fmt.Sprintf("read catalog dir %s", c.dir), err)
	}

	byID := make(map[string]Policy)
	var all []Policy

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(c.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return govtypes.NewError(govtypes.KindPolicyCatalogError, "", "", "read "+entry.Name(), err)
		}

		var policies []Policy
		if err := json.Unmarshal(data, &policies); err != nil {
			return govtypes.NewError(govtypes.KindPolicyCatalogError, "", "", "parse "+entry.Name(), err)
		}

		for _, p := range policies {
			if err := p.validate(); err != nil {
				return err
			}
			if _, dup := byID[p.ID]; dup {
				return govtypes.NewError(govtypes.KindPolicyCatalogError, "", "", "duplicate policy id "+p.ID, nil)
			}
			byID[p.ID] = p
			all = append(all, p)
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	c.current.store(&snapshot{byID: byID, all: all})
	return nil
}

// Get returns the policy with the given id.
func (c *Catalog) Get(id string) (Policy, bool) {
	s := c.current.load()
	p, ok := s.byID[id]
	return p, ok
}

// List returns every policy, or only those of the given category when
// category is non-empty.
func (c *Catalog) List(category Category) []Policy {
	s := c.current.load()
	if category == "" {
		out := make([]Policy, len(s.all))
		copy(out, s.all)
		return out
	}
	var out []Policy
	for _, p := range s.all {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// ListKind returns every policy of the given evaluator kind (rule or semantic).
func (c *Catalog) ListKind(kind Kind) []Policy {
	s := c.current.load()
	var out []Policy
	for _, p := range s.all {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

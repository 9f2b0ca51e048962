// Package retrieval fuses nearest-neighbor results from the request's new
// document and the persistent store into one de-duplicated context.
package retrieval

import "fmt"

// Budgets are the per-source result counts.
type Budgets struct {
	// Transient and Persistent apply when the request brought new chunks.
	Transient  int
	Persistent int
	// PersistentOnly applies when it did not.
	PersistentOnly int
}

// DefaultBudgets returns the 3+2 split, or 5 from the persistent store alone.
func DefaultBudgets() Budgets {
	return Budgets{Transient: 3, Persistent: 2, PersistentOnly: 5}
}

// Context is the retrieved material for one question, grouped by source.
type Context struct {
	// New holds chunks of the document uploaded with the request.
	New []string
	// Existing holds chunks already indexed before the request.
	Existing []string
}

// Len returns the total number of chunks.
func (c Context) Len() int { return len(c.New) + len(c.Existing) }

// Fuser retrieves and merges context for a question embedding.
type Fuser struct {
	budgets Budgets
}

// NewFuser creates a Fuser. Non-positive budgets fall back to the defaults.
func NewFuser(b Budgets) *Fuser {
	def := DefaultBudgets()
	if b.Transient <= 0 {
		b.Transient = def.Transient
	}
	if b.Persistent <= 0 {
		b.Persistent = def.Persistent
	}
	if b.PersistentOnly <= 0 {
		b.PersistentOnly = def.PersistentOnly
	}
	return &Fuser{budgets: b}
}

// Budgets returns the effective budgets.
func (f *Fuser) Budgets() Budgets { return f.budgets }

// Fuse searches transient (when non-nil and non-empty) and persistent, then
// drops repeated texts keeping the first occurrence, transient results first.
func (f *Fuser) Fuse(query []float32, persistent, transient Searcher) (Context, error) {
	var top, existing []string
	var err error

	if transient != nil && transient.Len() > 0 {
		if top, err = transient.Search(query, f.budgets.Transient); err != nil {
			return Context{}, fmt.Errorf("search new document: %w", err)
		}
		if existing, err = persistent.Search(query, f.budgets.Persistent); err != nil {
			return Context{}, fmt.Errorf("search persistent store: %w", err)
		}
	} else {
		if existing, err = persistent.Search(query, f.budgets.PersistentOnly); err != nil {
			return Context{}, fmt.Errorf("search persistent store: %w", err)
		}
	}

	seen := make(map[string]struct{}, len(top)+len(existing))
	return Context{
		New:      dedup(top, seen),
		Existing: dedup(existing, seen),
	}, nil
}

func dedup(texts []string, seen map[string]struct{}) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

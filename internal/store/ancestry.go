package store

import (
	"fmt"

	"github.com/google/uuid"
)

// Ancestry maps an organization ID to its parent ID. Roots have no entry.
type Ancestry map[uuid.UUID]uuid.UUID

// Path returns id followed by its ancestors up to the root.
// The walk is iterative and fails with ErrOrganizationCycle on a loop.
func (a Ancestry) Path(id uuid.UUID) ([]uuid.UUID, error) {
	path := []uuid.UUID{id}
	seen := map[uuid.UUID]struct{}{id: {}}

	current := id
	for {
		parent, ok := a[current]
		if !ok {
			return path, nil
		}
		if _, loop := seen[parent]; loop {
			return nil, fmt.Errorf("%w: %s", ErrOrganizationCycle, parent)
		}
		seen[parent] = struct{}{}
		path = append(path, parent)
		current = parent
	}
}

// Root returns the tenant root of id.
func (a Ancestry) Root(id uuid.UUID) (uuid.UUID, error) {
	path, err := a.Path(id)
	if err != nil {
		return uuid.Nil, err
	}
	return path[len(path)-1], nil
}

// IsWithin reports whether id is root or one of its descendants.
func (a Ancestry) IsWithin(id, root uuid.UUID) (bool, error) {
	path, err := a.Path(id)
	if err != nil {
		return false, err
	}
	for _, p := range path {
		if p == root {
			return true, nil
		}
	}
	return false, nil
}

// Descendants returns root and every organization below it.
func (a Ancestry) Descendants(root uuid.UUID) []uuid.UUID {
	children := make(map[uuid.UUID][]uuid.UUID, len(a))
	for child, parent := range a {
		children[parent] = append(children[parent], child)
	}

	out := []uuid.UUID{root}
	seen := map[uuid.UUID]struct{}{root: {}}
	for i := 0; i < len(out); i++ {
		for _, c := range children[out[i]] {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

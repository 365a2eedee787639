// Package gallery builds the attribute index over a directory of generated
// images and answers filter queries against it.
package gallery

import (
	"slices"

	"github.com/kailas-cloud/fastload/internal/domain"
	"github.com/kailas-cloud/fastload/internal/domain/filter"
	"github.com/kailas-cloud/fastload/internal/domain/params"
)

// Index is the scan result for one directory.
type Index struct {
	// Files lists every image found, in walk order.
	Files []string
	// Attributes maps attribute name to value to the set of paths carrying it.
	Attributes map[string]map[string]map[string]struct{}

	keys []string
}

// NewIndex returns an empty index seeded with the well-known attribute names.
func NewIndex() *Index {
	ix := &Index{Attributes: make(map[string]map[string]map[string]struct{})}
	for _, k := range domain.WellKnownAttributes {
		ix.addKey(k)
	}
	return ix
}

// Add records path as an image and folds the attributes of units into the index.
func (ix *Index) Add(path string, units []params.Unit) {
	ix.Files = append(ix.Files, path)
	for _, u := range units {
		for _, p := range u {
			values := ix.addKey(p.Key)
			paths, ok := values[p.Value]
			if !ok {
				paths = make(map[string]struct{})
				values[p.Value] = paths
			}
			paths[path] = struct{}{}
		}
	}
}

func (ix *Index) addKey(key string) map[string]map[string]struct{} {
	values, ok := ix.Attributes[key]
	if !ok {
		values = make(map[string]map[string]struct{})
		ix.Attributes[key] = values
		ix.keys = append(ix.keys, key)
	}
	return values
}

// Len returns the number of indexed images.
func (ix *Index) Len() int { return len(ix.Files) }

// Keys returns the attribute names in first-seen order, well-known names first.
func (ix *Index) Keys() []string {
	return slices.Clone(ix.keys)
}

// Values returns the sorted values seen for key, or nil for an unknown key.
func (ix *Index) Values(key string) []string {
	values, ok := ix.Attributes[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(values))
	for v := range values {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Filter returns the files matching every token of set, in Files order.
// A token naming an unknown attribute or value matches nothing.
func (ix *Index) Filter(set filter.Set) []string {
	if set.IsEmpty() {
		return slices.Clone(ix.Files)
	}

	candidates := make([]map[string]struct{}, 0, set.Len())
	for _, t := range set.Tokens() {
		paths := ix.Attributes[t.Key()][t.Value()]
		if len(paths) == 0 {
			return []string{}
		}
		candidates = append(candidates, paths)
	}

	out := []string{}
	for _, f := range ix.Files {
		if inAll(f, candidates) {
			out = append(out, f)
		}
	}
	return out
}

// FilterTokens parses tokens and filters by them. A token without the
// " - " separator fails with domain.ErrInvalidFilter.
func (ix *Index) FilterTokens(tokens []string) ([]string, error) {
	set, err := filter.NewSet(tokens...)
	if err != nil {
		return nil, err
	}
	return ix.Filter(set), nil
}

func inAll(path string, sets []map[string]struct{}) bool {
	for _, s := range sets {
		if _, ok := s[path]; !ok {
			return false
		}
	}
	return true
}

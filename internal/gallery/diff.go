package gallery

import (
	"fmt"

	"github.com/kailas-cloud/fastload/internal/domain/filter"
	"github.com/kailas-cloud/fastload/internal/domain/params"
)

// TagInclude marks a pair that is part of the active filter set.
const TagInclude = "include"

// Highlight is one labelled attribute of a selected image.
type Highlight struct {
	Label string `json:"label"`
	Tag   string `json:"tag,omitempty"`
}

// Diff labels every pair of units as "[ControlNet i] key - value" and tags
// the ones whose token is in set.
func Diff(units []params.Unit, set filter.Set) []Highlight {
	var out []Highlight
	for i, u := range units {
		for _, p := range u {
			token := filter.Format(p.Key, p.Value)
			h := Highlight{Label: fmt.Sprintf("[ControlNet %d] %s", i, token)}
			if set.Contains(token) {
				h.Tag = TagInclude
			}
			out = append(out, h)
		}
	}
	return out
}

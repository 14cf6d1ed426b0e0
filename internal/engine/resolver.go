package engine

import (
	"strings"

	"github.com/agencytax/agencytax/internal/model"
)

// CategoryResolver maps a model-predicted category name back to a taxonomy
// row. Lookup is exact (case-insensitive) first, then containment in either
// direction; ties resolve to the earliest taxonomy entry.
type CategoryResolver struct {
	exact map[string]int64
	names []string
	ids   []int64
}

// NewCategoryResolver indexes categories in the order given. Callers scope
// the slice to a single direction so a prediction can never resolve to a
// category of the wrong type.
func NewCategoryResolver(categories []model.Category) *CategoryResolver {
	r := &CategoryResolver{
		exact: make(map[string]int64, len(categories)),
	}
	for _, cat := range categories {
		key := strings.ToLower(cat.Name)
		if _, seen := r.exact[key]; !seen {
			r.exact[key] = cat.ID
		}
		r.names = append(r.names, key)
		r.ids = append(r.ids, cat.ID)
	}
	return r
}

// Resolve returns the taxonomy ID for predicted, or false when no indexed
// name matches.
func (r *CategoryResolver) Resolve(predicted string) (int64, bool) {
	needle := strings.ToLower(strings.TrimSpace(predicted))
	if needle == "" {
		return 0, false
	}

	if id, ok := r.exact[needle]; ok {
		return id, true
	}

	for i, name := range r.names {
		if strings.Contains(name, needle) || strings.Contains(needle, name) {
			return r.ids[i], true
		}
	}
	return 0, false
}

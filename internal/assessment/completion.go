package assessment

import (
	"sort"

	"github.com/sameera/osem-ladders-sub001/internal/models"
)

// CompletionSet holds the indices of fully answered categories
type CompletionSet map[int]struct{}

// Has reports whether the category at index i is complete
func (c CompletionSet) Has(i int) bool {
	_, ok := c[i]
	return ok
}

// Sorted returns the complete indices in ascending order
func (c CompletionSet) Sorted() []int {
	out := make([]int, 0, len(c))
	for i := range c {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// CompletedCategories returns the categories where every core area has a selection.
// A category without core areas is never complete.
func CompletedCategories(categories []models.Category, selections models.Selections) CompletionSet {
	done := make(CompletionSet)
	for i, category := range categories {
		if len(category.CoreAreas) == 0 {
			continue
		}
		selected := selections[category.Title]
		complete := true
		for _, area := range category.CoreAreas {
			if _, ok := selected[area.Name]; !ok {
				complete = false
				break
			}
		}
		if complete {
			done[i] = struct{}{}
		}
	}
	return done
}

// IsComplete reports whether every category that has core areas is complete
func IsComplete(categories []models.Category, selections models.Selections) bool {
	done := CompletedCategories(categories, selections)
	for i, category := range categories {
		if len(category.CoreAreas) > 0 && !done.Has(i) {
			return false
		}
	}
	return true
}

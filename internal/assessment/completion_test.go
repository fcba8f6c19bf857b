package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sameera/osem-ladders-sub001/internal/models"
)

func testCategories() []models.Category {
	return []models.Category{
		{Title: "Tech", CoreAreas: []models.CoreArea{{Name: "Coding"}, {Name: "Testing"}}},
		{Title: "Empty", CoreAreas: []models.CoreArea{}},
		{Title: "People", CoreAreas: []models.CoreArea{{Name: "Mentoring"}}},
	}
}

func TestCompletedCategories(t *testing.T) {
	categories := testCategories()

	got := CompletedCategories(categories, models.Selections{
		"Tech":   {"Coding": 2, "Testing": 1},
		"People": {},
	})
	assert.Equal(t, []int{0}, got.Sorted())
	assert.True(t, got.Has(0))
	assert.False(t, got.Has(2))

	got = CompletedCategories(categories, models.Selections{
		"Tech":   {"Coding": 2},
		"People": {"Mentoring": 3},
	})
	assert.Equal(t, []int{2}, got.Sorted())
}

func TestCompletedCategoriesNeverIncludesEmptyCategory(t *testing.T) {
	categories := testCategories()
	selections := models.Selections{
		"Tech":   {"Coding": 1, "Testing": 1},
		"Empty":  {"Anything": 1},
		"People": {"Mentoring": 1},
	}

	got := CompletedCategories(categories, selections)
	assert.False(t, got.Has(1))
	assert.Equal(t, []int{0, 2}, got.Sorted())

	assert.Empty(t, CompletedCategories([]models.Category{{Title: "Empty"}}, selections))
}

func TestCompletedCategoriesIgnoresExtraSelections(t *testing.T) {
	got := CompletedCategories(testCategories(), models.Selections{
		"Tech": {"Coding": 1, "Testing": 2, "Unknown": 5},
	})
	assert.Equal(t, []int{0}, got.Sorted())
}

func TestIsComplete(t *testing.T) {
	categories := testCategories()
	assert.False(t, IsComplete(categories, models.Selections{"Tech": {"Coding": 1, "Testing": 1}}))
	assert.True(t, IsComplete(categories, models.Selections{
		"Tech":   {"Coding": 1, "Testing": 1},
		"People": {"Mentoring": 2},
	}))
	assert.True(t, IsComplete(nil, nil))
}

package models

// LevelContent is one numbered rubric entry of a competency
type LevelContent struct {
	Level       int    `json:"level"`
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
}

// CoreArea represents a competency evaluated across levels within a category
type CoreArea struct {
	Name   string         `json:"name"`
	Levels []LevelContent `json:"levels"`
}

// Level returns the first level entry with the given number.
// Level numbers are not required to be unique, so later duplicates are unreachable here.
func (c *CoreArea) Level(level int) (LevelContent, bool) {
	for _, l := range c.Levels {
		if l.Level == level {
			return l, true
		}
	}
	return LevelContent{}, false
}

// Category represents a top-level grouping of competencies in a ladder
type Category struct {
	Title     string     `json:"title"`
	CoreAreas []CoreArea `json:"coreAreas"`
}

// Ladder is a parsed ladder definition registered in the catalog
type Ladder struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Source      string     `json:"-"`
	Categories  []Category `json:"categories"`
}

// CompetencyCount returns the total number of core areas across all categories
func (l *Ladder) CompetencyCount() int {
	n := 0
	for _, c := range l.Categories {
		n += len(c.CoreAreas)
	}
	return n
}

// LadderSummary is the catalog listing entry of a ladder
type LadderSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Categories   int    `json:"categories"`
	Competencies int    `json:"competencies"`
}

// Summary returns the catalog listing entry of the ladder
func (l *Ladder) Summary() LadderSummary {
	return LadderSummary{
		ID:           l.ID,
		Name:         l.Name,
		Description:  l.Description,
		Categories:   len(l.Categories),
		Competencies: l.CompetencyCount(),
	}
}

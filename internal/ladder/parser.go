// Package ladder parses ladder definitions and keeps a catalog of them.
//
// A ladder definition is a small markdown dialect:
//
//	# Category
//	## Competency
//	1. Level content
//	Optional description lines for level 1
//	2. Next level
//
// Parsing is best effort. Lines that do not fit the grammar are dropped and
// never abort the parse.
package ladder

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sameera/osem-ladders-sub001/internal/models"
)

var (
	coreAreaPattern = regexp.MustCompile(`^##\s+`)
	categoryPattern = regexp.MustCompile(`^#\s+`)
	levelPattern    = regexp.MustCompile(`^(\d+)\.\s*`)
)

type parseState int

const (
	stateBeforeCategory parseState = iota
	stateInCategory
	stateInCoreArea
	stateCollectingDescription
)

func (s parseState) String() string {
	switch s {
	case stateBeforeCategory:
		return "before_category"
	case stateInCategory:
		return "in_category"
	case stateInCoreArea:
		return "in_core_area"
	case stateCollectingDescription:
		return "collecting_description"
	}
	return "unknown"
}

// parser holds the state of a single Parse call
type parser struct {
	state      parseState
	categories []models.Category
	desc       []string
}

// Parse converts a ladder definition into an ordered category tree.
// Categories, core areas and levels keep their source order.
func Parse(markdown string) []models.Category {
	p := &parser{state: stateBeforeCategory}

	// no line length limit; an oversized line must not end the parse
	for _, line := range strings.Split(markdown, "\n") {
		p.line(strings.TrimSpace(line))
	}
	p.flushDescription()

	if p.categories == nil {
		return []models.Category{}
	}
	return p.categories
}

func (p *parser) line(line string) {
	// Core areas are checked before categories so "## X" is never read as a category.
	switch {
	case coreAreaPattern.MatchString(line):
		p.flushDescription()
		p.startCoreArea(coreAreaPattern.ReplaceAllString(line, ""))
	case categoryPattern.MatchString(line):
		p.flushDescription()
		p.startCategory(categoryPattern.ReplaceAllString(line, ""))
	case levelPattern.MatchString(line):
		p.flushDescription()
		m := levelPattern.FindStringSubmatch(line)
		p.startLevel(m[1], line[len(m[0]):])
	case p.state == stateCollectingDescription:
		p.desc = append(p.desc, line)
	}
}

func (p *parser) startCategory(title string) {
	p.categories = append(p.categories, models.Category{
		Title:     title,
		CoreAreas: []models.CoreArea{},
	})
	p.state = stateInCategory
}

func (p *parser) startCoreArea(name string) {
	if p.state == stateBeforeCategory {
		return
	}
	category := &p.categories[len(p.categories)-1]
	category.CoreAreas = append(category.CoreAreas, models.CoreArea{
		Name:   name,
		Levels: []models.LevelContent{},
	})
	p.state = stateInCoreArea
}

func (p *parser) startLevel(number, content string) {
	if p.state != stateInCoreArea {
		return
	}
	level, err := strconv.Atoi(number)
	if err != nil || level < 1 {
		return
	}
	area := p.currentCoreArea()
	area.Levels = append(area.Levels, models.LevelContent{
		Level:   level,
		Content: content,
	})
	p.state = stateCollectingDescription
	p.desc = p.desc[:0]
}

// flushDescription closes description collection, storing the buffer on the last level
func (p *parser) flushDescription() {
	if p.state != stateCollectingDescription {
		return
	}
	area := p.currentCoreArea()
	area.Levels[len(area.Levels)-1].Description = strings.TrimSpace(strings.Join(p.desc, "\n"))
	p.desc = p.desc[:0]
	p.state = stateInCoreArea
}

func (p *parser) currentCoreArea() *models.CoreArea {
	category := &p.categories[len(p.categories)-1]
	return &category.CoreAreas[len(category.CoreAreas)-1]
}

package models

// Selections maps category title -> competency name -> selected level
type Selections map[string]map[string]int

// Get returns the selected level for a category/competency pair
func (s Selections) Get(category, competency string) (int, bool) {
	level, ok := s[category][competency]
	return level, ok
}

// Set records a selected level, creating the category bucket on demand
func (s Selections) Set(category, competency string, level int) {
	bucket, ok := s[category]
	if !ok {
		bucket = make(map[string]int)
		s[category] = bucket
	}
	bucket[competency] = level
}

// Clone returns a deep copy
func (s Selections) Clone() Selections {
	out := make(Selections, len(s))
	for category, comps := range s {
		bucket := make(map[string]int, len(comps))
		for comp, level := range comps {
			bucket[comp] = level
		}
		out[category] = bucket
	}
	return out
}

// LevelFeedback is the narrative attached to a selected level
type LevelFeedback struct {
	Evidence          string `json:"evidence"`
	NextLevelFeedback string `json:"nextLevelFeedback"`
}

// Feedback maps category title -> competency name -> level -> feedback
type Feedback map[string]map[string]map[int]LevelFeedback

// Get returns the feedback stored for the triple
func (f Feedback) Get(category, competency string, level int) (LevelFeedback, bool) {
	fb, ok := f[category][competency][level]
	return fb, ok
}

// Set stores feedback for the triple, creating intermediate buckets on demand
func (f Feedback) Set(category, competency string, level int, fb LevelFeedback) {
	comps, ok := f[category]
	if !ok {
		comps = make(map[string]map[int]LevelFeedback)
		f[category] = comps
	}
	levels, ok := comps[competency]
	if !ok {
		levels = make(map[int]LevelFeedback)
		comps[competency] = levels
	}
	levels[level] = fb
}

// Clear drops every feedback entry for a category/competency pair
func (f Feedback) Clear(category, competency string) {
	if comps, ok := f[category]; ok {
		delete(comps, competency)
	}
}

// Clone returns a deep copy
func (f Feedback) Clone() Feedback {
	out := make(Feedback, len(f))
	for category, comps := range f {
		for comp, levels := range comps {
			for level, fb := range levels {
				out.Set(category, comp, level, fb)
			}
		}
	}
	return out
}

// CompetencyResponse is the wire form of one competency assessment
type CompetencyResponse struct {
	SelectedLevel int     `json:"selectedLevel"`
	Feedback      *string `json:"feedback,omitempty"`
}

// Responses maps "category|competency" to its response
type Responses map[string]CompetencyResponse

// Package assessment holds the working state of an assessment and converts
// it to and from the flat wire format.
package assessment

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sameera/osem-ladders-sub001/internal/models"
)

// ErrLevelNotSelected is returned when feedback targets a level that is not the current selection
var ErrLevelNotSelected = errors.New("level is not the current selection")

// State tracks selections and their feedback for one assessment session.
// A selection and its feedback form one record keyed by (category, competency, level).
type State struct {
	mu         sync.RWMutex
	selections models.Selections
	feedback   models.Feedback
	version    uint64
	onChange   []func()
}

// NewState creates an empty assessment state
func NewState() *State {
	return &State{
		selections: make(models.Selections),
		feedback:   make(models.Feedback),
	}
}

// OnChange registers a callback run after every mutation
func (s *State) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Select records the chosen level. Feedback written for a previously selected level is dropped.
func (s *State) Select(category, competency string, level int) {
	_ = s.mutate(func() error {
		if prev, ok := s.selections.Get(category, competency); ok && prev != level {
			s.feedback.Clear(category, competency)
		}
		s.selections.Set(category, competency, level)
		return nil
	})
}

// Unselect removes the selection and its feedback
func (s *State) Unselect(category, competency string) {
	_ = s.mutate(func() error {
		if comps, ok := s.selections[category]; ok {
			delete(comps, competency)
			if len(comps) == 0 {
				delete(s.selections, category)
			}
		}
		s.feedback.Clear(category, competency)
		return nil
	})
}

// SetFeedback stores feedback for the currently selected level of a competency
func (s *State) SetFeedback(category, competency string, level int, fb models.LevelFeedback) error {
	return s.mutate(func() error {
		selected, ok := s.selections.Get(category, competency)
		if !ok || selected != level {
			return fmt.Errorf("%w: %s / %s level %d", ErrLevelNotSelected, category, competency, level)
		}
		s.feedback.Set(category, competency, level, fb)
		return nil
	})
}

// Selection returns the selected level for a competency
func (s *State) Selection(category, competency string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selections.Get(category, competency)
}

// FeedbackFor returns the feedback for the selected level of a competency
func (s *State) FeedbackFor(category, competency string) (models.LevelFeedback, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	level, ok := s.selections.Get(category, competency)
	if !ok {
		return models.LevelFeedback{}, false
	}
	return s.feedback.Get(category, competency, level)
}

// Snapshot returns deep copies of the selections and feedback
func (s *State) Snapshot() (models.Selections, models.Feedback) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selections.Clone(), s.feedback.Clone()
}

// Responses returns the wire form of the current state
func (s *State) Responses() models.Responses {
	selections, feedback := s.Snapshot()
	return ToResponses(selections, feedback)
}

// Version increases by one on every mutation
func (s *State) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Load replaces the state with previously saved selections and feedback
func (s *State) Load(selections models.Selections, feedback models.Feedback) {
	if selections == nil {
		selections = make(models.Selections)
	}
	if feedback == nil {
		feedback = make(models.Feedback)
	}
	_ = s.mutate(func() error {
		s.selections = selections.Clone()
		s.feedback = feedback.Clone()
		return nil
	})
}

// LoadResponses replaces the state with decoded wire responses
func (s *State) LoadResponses(responses models.Responses) {
	s.Load(FromResponses(responses))
}

// Reset clears all selections and feedback
func (s *State) Reset() {
	_ = s.mutate(func() error {
		s.selections = make(models.Selections)
		s.feedback = make(models.Feedback)
		return nil
	})
}

// mutate applies fn under the write lock; a failed fn leaves the version untouched
func (s *State) mutate(fn func() error) error {
	s.mu.Lock()
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.version++
	hooks := append([]func(){}, s.onChange...)
	s.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
	return nil
}

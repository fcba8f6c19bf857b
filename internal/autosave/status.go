package autosave

import "time"

// Kind is the state of the save state machine
type Kind int

const (
	KindIdle Kind = iota
	KindSaving
	KindSaved
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindSaving:
		return "saving"
	case KindSaved:
		return "saved"
	case KindError:
		return "error"
	}
	return "idle"
}

// Status is a snapshot of the orchestrator state.
// SavedAt is set only for KindSaved and Err only for KindError.
type Status struct {
	Kind    Kind
	SavedAt time.Time
	Err     error
}

// CanRetry reports whether a manual retry is offered
func (s Status) CanRetry() bool {
	return s.Kind == KindError
}

func (s Status) String() string {
	switch s.Kind {
	case KindSaved:
		return "saved at " + s.SavedAt.Format(time.Kitchen)
	case KindError:
		if s.Err != nil {
			return "error: " + s.Err.Error()
		}
	}
	return s.Kind.String()
}

// Package kvstore persists small JSON values for an assessment session
// between runs. Decode failures never propagate: readers get their default.
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Keys of the session entries
const (
	KeySelections     = "leveling-selections"
	KeyFeedback       = "leveling-feedback"
	KeyTeamMemberName = "team-member-name"
	KeyCurrentLevel   = "current-level"
	KeyCurrentStep    = "current-step"
	KeyAssessmentID   = "assessment-id"
)

// SessionKeys lists every key owned by an assessment session
var SessionKeys = []string{
	KeySelections,
	KeyFeedback,
	KeyTeamMemberName,
	KeyCurrentLevel,
	KeyCurrentStep,
	KeyAssessmentID,
}

// Store is a string-keyed byte store
type Store interface {
	// Get returns the stored value; ok is false when the key is absent
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Clear removes every key of this store
	Clear(ctx context.Context) error
	Close() error
}

// GetJSON decodes the value under key into a T. A missing key, a read error
// or undecodable contents all yield fallback; the latter two are logged.
func GetJSON[T any](ctx context.Context, s Store, key string, fallback T) T {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		slog.Error("failed to read stored value", "key", key, "error", err)
		return fallback
	}
	if !ok {
		return fallback
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		slog.Error("failed to decode stored value", "key", key, "error", err)
		return fallback
	}
	return v
}

// SetJSON stores v under key as JSON
func SetJSON(ctx context.Context, s Store, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// Package reportid builds and parses content-addressed report identifiers
// of the form "<userId>|<assessmentId>|<type>".
package reportid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sameera/osem-ladders-sub001/internal/models"
)

// Separator joins the identifier segments. Segments must not contain it.
const Separator = "|"

// ErrInvalidFormat is returned for identifiers that cannot be parsed
var ErrInvalidFormat = errors.New("invalid report id format")

// Identity is the decoded form of a report identifier
type Identity struct {
	UserID       string            `json:"userId"`
	AssessmentID string            `json:"assessmentId"`
	Type         models.ReportType `json:"type"`
}

// String returns the identifier for the identity
func (i Identity) String() string {
	return Create(i.UserID, i.AssessmentID, i.Type)
}

// Create joins the three fields into a report id. No escaping is done.
func Create(userID, assessmentID string, reportType models.ReportType) string {
	return strings.Join([]string{userID, assessmentID, string(reportType)}, Separator)
}

// Parse splits a report id into its identity
func Parse(id string) (Identity, error) {
	parts := strings.Split(id, Separator)
	if len(parts) != 3 {
		return Identity{}, fmt.Errorf("%w: expected 3 segments, got %d in %q", ErrInvalidFormat, len(parts), id)
	}

	for i, part := range parts {
		if part == "" {
			return Identity{}, fmt.Errorf("%w: segment %d is empty in %q", ErrInvalidFormat, i+1, id)
		}
	}

	reportType := models.ReportType(parts[2])
	if !reportType.Valid() {
		return Identity{}, fmt.Errorf("%w: unknown report type %q", ErrInvalidFormat, parts[2])
	}

	return Identity{
		UserID:       parts[0],
		AssessmentID: parts[1],
		Type:         reportType,
	}, nil
}

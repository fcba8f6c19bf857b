package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sameera/osem-ladders-sub001/internal/models"
	"github.com/sameera/osem-ladders-sub001/internal/reportid"
)

const engineeringMarkdown = `# Technical
## Coding
1. Writes working code
2. Writes maintainable code
## Testing
1. Adds unit tests

# Delivery
## Planning
1. Estimates own tasks
`

// writeFile writes content under dir and returns its path
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func writeLadder(t *testing.T) string {
	t.Helper()
	return writeFile(t, t.TempDir(), "engineering.md", engineeringMarkdown)
}

// execute runs ladderctl with args and returns what it printed
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("KV_SQLITE_PATH", filepath.Join(t.TempDir(), "session.sqlite"))

	jsonOutput = false
	diffRemote = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseCommand(t *testing.T) {
	path := writeLadder(t)

	out, err := execute(t, "", "parse", path)
	require.NoError(t, err)
	assert.Contains(t, out, "engineering: 2 categories, 3 competencies")
	assert.Contains(t, out, "[0] Technical")
	assert.Contains(t, out, "  [1] Testing (1 levels)")

	out, err = execute(t, "", "parse", "--json", path)
	require.NoError(t, err)

	var categories []models.Category
	require.NoError(t, json.Unmarshal([]byte(out), &categories))
	require.Len(t, categories, 2)
	assert.Equal(t, "Delivery", categories[1].Title)
	assert.Equal(t, "Writes maintainable code", categories[0].CoreAreas[0].Levels[1].Content)
}

func TestParseCommandMissingFile(t *testing.T) {
	_, err := execute(t, "", "parse", filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}

func TestReportIDCommands(t *testing.T) {
	out, err := execute(t, "", "report-id", "create", "alice", "2024-h1", "manager")
	require.NoError(t, err)
	assert.Equal(t, "alice|2024-h1|manager\n", out)

	out, err = execute(t, "", "report-id", "parse", "--json", "alice|2024-h1|manager")
	require.NoError(t, err)

	var ident reportid.Identity
	require.NoError(t, json.Unmarshal([]byte(out), &ident))
	assert.Equal(t, reportid.Identity{UserID: "alice", AssessmentID: "2024-h1", Type: models.ReportManager}, ident)

	_, err = execute(t, "", "report-id", "parse", "alice|2024-h1")
	assert.ErrorIs(t, err, reportid.ErrInvalidFormat)

	_, err = execute(t, "", "report-id", "create", "alice", "2024-h1", "peer")
	assert.Error(t, err)
}

func TestCompletionCommand(t *testing.T) {
	path := writeLadder(t)
	selections := writeFile(t, t.TempDir(), "selections.json",
		`{"Technical": {"Coding": 2, "Testing": 1}, "Delivery": {}}`)

	out, err := execute(t, "", "completion", path, selections)
	require.NoError(t, err)
	assert.Contains(t, out, "[x] 0 Technical")
	assert.Contains(t, out, "[ ] 1 Delivery")
	assert.Contains(t, out, "1 of 2 categories complete")

	out, err = execute(t, "", "completion", "--json", path, selections)
	require.NoError(t, err)

	var result completionResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, completionResult{Ladder: "engineering", Completed: []int{0}, Total: 2, Complete: false}, result)
}

func TestDiffCommand(t *testing.T) {
	path := writeLadder(t)
	dir := t.TempDir()
	self := writeFile(t, dir, "self.json", `{
		"Technical|Coding": {"selectedLevel": 2, "feedback": "Evidence: shipped the importer\nNext: lead a review"},
		"Technical|Testing": {"selectedLevel": 1}
	}`)
	manager := writeFile(t, dir, "manager.json", `{
		"Technical|Coding": {"selectedLevel": 1},
		"Technical|Testing": {"selectedLevel": 1}
	}`)

	out, err := execute(t, "", "diff", path, self, manager)
	require.NoError(t, err)
	assert.Contains(t, out, "--- "+self)
	assert.Contains(t, out, "+++ "+manager)
	assert.Contains(t, out, "-  level: 2 Writes maintainable code\n")
	assert.Contains(t, out, "-  evidence: shipped the importer\n")
	assert.Contains(t, out, "+  level: 1 Writes working code\n")

	out, err = execute(t, "", "diff", path, self, self)
	require.NoError(t, err)
	assert.Equal(t, "assessments agree\n", out)
}

func TestRenderResponses(t *testing.T) {
	l, err := loadLadder(writeLadder(t))
	require.NoError(t, err)

	feedback := "Evidence: line one\nline two\nNext: more"
	got := renderResponses(l, models.Responses{
		"Delivery|Planning": {SelectedLevel: 1, Feedback: &feedback},
		"Delivery|Hiring":   {SelectedLevel: 4},
	})

	want := strings.Join([]string{
		"Technical / Coding",
		"  level: -",
		"Technical / Testing",
		"  level: -",
		"Delivery / Planning",
		"  level: 1 Estimates own tasks",
		"  evidence: line one / line two",
		"  next: more",
		"Delivery|Hiring (not in ladder)",
		"  level: 4",
		"",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestAssessCommandOffline(t *testing.T) {
	path := writeLadder(t)

	out, err := execute(t, "select 1 1\nstatus\nquit\n",
		"assess", path, "--offline", "--user", "alice", "--assessment", "q1")
	require.NoError(t, err)
	assert.Contains(t, out, "assessing engineering for alice (report alice|q1|self)")
	assert.Contains(t, out, "Testing: level 1")
	assert.Contains(t, out, "0 of 2 categories complete")
}

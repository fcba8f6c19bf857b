package storage

import (
	"context"
	"os"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sameera/osem-ladders-sub001/internal/models"
	"github.com/sameera/osem-ladders-sub001/internal/reportid"
	"github.com/sameera/osem-ladders-sub001/migrations"
)

func newReport(userID, assessmentID string, t models.ReportType, createdAt time.Time) *models.Report {
	return &models.Report{
		ID:           reportid.Create(userID, assessmentID, t),
		UserID:       userID,
		AssessmentID: assessmentID,
		Type:         t,
		AssessorID:   userID,
		Status:       models.ReportDraft,
		Responses:    models.Responses{},
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

// testRepository exercises the behavior every Repository shares
func testRepository(t *testing.T, repo Repository) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// unique assessment ids keep runs against a shared database apart
	season := "season-" + uuid.NewString()

	self := newReport("alice", season, models.ReportSelf, base)
	require.NoError(t, repo.CreateReport(ctx, self))
	assert.ErrorIs(t, repo.CreateReport(ctx, self), ErrReportExists)

	_, err := repo.GetReport(ctx, "nobody|"+season+"|self")
	assert.ErrorIs(t, err, ErrReportNotFound)

	got, err := repo.GetReport(ctx, self.ID)
	require.NoError(t, err)
	assert.Equal(t, self.ID, got.ID)
	assert.Equal(t, models.ReportDraft, got.Status)

	feedback := "Evidence: shipped\nNext: lead"
	responses := models.Responses{"Tech|Coding": {SelectedLevel: 3, Feedback: &feedback}}
	updated, err := repo.UpdateReport(ctx, self.ID, models.UpdateReportInput{Responses: responses})
	require.NoError(t, err)
	assert.Equal(t, responses, updated.Responses)
	assert.Nil(t, updated.SubmittedAt)

	got, err = repo.GetReport(ctx, self.ID)
	require.NoError(t, err)
	assert.Equal(t, responses, got.Responses)

	submitted := models.ReportSubmitted
	updated, err = repo.UpdateReport(ctx, self.ID, models.UpdateReportInput{Status: &submitted})
	require.NoError(t, err)
	assert.Equal(t, models.ReportSubmitted, updated.Status)
	require.NotNil(t, updated.SubmittedAt)
	assert.Equal(t, responses, updated.Responses, "status-only update keeps responses")

	_, err = repo.UpdateReport(ctx, self.ID, models.UpdateReportInput{Responses: models.Responses{}})
	assert.ErrorIs(t, err, ErrReportSubmitted)

	_, err = repo.UpdateReport(ctx, "nobody|"+season+"|self", models.UpdateReportInput{})
	assert.ErrorIs(t, err, ErrReportNotFound)

	manager := newReport("alice", season, models.ReportManager, base.Add(time.Hour))
	bob := newReport("bob", season, models.ReportSelf, base.Add(2*time.Hour))
	require.NoError(t, repo.CreateReport(ctx, manager))
	require.NoError(t, repo.CreateReport(ctx, bob))

	all, err := repo.ListReports(ctx, models.ReportFilters{AssessmentID: season})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, bob.ID, all[0].ID, "newest first")
	assert.Equal(t, self.ID, all[2].ID)

	alice, err := repo.ListReports(ctx, models.ReportFilters{AssessmentID: season, UserID: "alice"})
	require.NoError(t, err)
	assert.Len(t, alice, 2)

	drafts, err := repo.ListReports(ctx, models.ReportFilters{AssessmentID: season, Status: models.ReportDraft})
	require.NoError(t, err)
	assert.Len(t, drafts, 2)

	managers, err := repo.ListReports(ctx, models.ReportFilters{AssessmentID: season, Type: models.ReportManager})
	require.NoError(t, err)
	require.Len(t, managers, 1)
	assert.Equal(t, manager.ID, managers[0].ID)

	page, err := repo.ListReports(ctx, models.ReportFilters{AssessmentID: season, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, manager.ID, page[0].ID)

	require.NoError(t, repo.Ping(ctx))
}

func TestMemoryRepository(t *testing.T) {
	testRepository(t, NewMemoryRepository())
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	report := newReport("alice", "h1", models.ReportSelf, time.Now())
	require.NoError(t, repo.CreateReport(ctx, report))
	report.Responses["Tech|Coding"] = models.CompetencyResponse{SelectedLevel: 1}

	got, err := repo.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Responses)

	got.Status = models.ReportSubmitted
	again, err := repo.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportDraft, again.Status)
}

func TestMemoryRepositoryOffsetPastEnd(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.CreateReport(context.Background(), newReport("a", "h1", models.ReportSelf, time.Now())))

	reports, err := repo.ListReports(context.Background(), models.ReportFilters{Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_add_index.sql":   {Data: []byte("CREATE INDEX x ON reports (id);")},
		"001_create.sql":      {Data: []byte("CREATE TABLE reports (id TEXT);")},
		"README.md":           {Data: []byte("notes")},
		"archive/000_old.sql": {Data: []byte("SELECT 1;")},
	}

	got, err := listMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_create.sql", "002_add_index.sql"}, got)
}

func TestEmbeddedMigrations(t *testing.T) {
	got, err := listMigrations(migrations.FS)
	require.NoError(t, err)
	assert.Contains(t, got, "001_create_reports.sql")
}

func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	ctx := context.Background()
	repo, err := NewPostgresRepository(ctx, PostgresConfig{DSN: dsn, MaxOpenConns: 4})
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, RunMigrations(ctx, repo.Pool(), migrations.FS))
	require.NoError(t, RunMigrations(ctx, repo.Pool(), migrations.FS), "migrations are idempotent")

	testRepository(t, repo)
}

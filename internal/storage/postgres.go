package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sameera/osem-ladders-sub001/internal/models"
)

const uniqueViolation = "23505"

const reportColumns = `id, user_id, assessment_id, type, assessor_id, status, responses, created_at, updated_at, submitted_at`

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 2
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Pool exposes the connection pool for migrations
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateReport inserts a new report
func (r *PostgresRepository) CreateReport(ctx context.Context, report *models.Report) error {
	responsesJSON, err := marshalResponses(report.Responses)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reports (` + reportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.pool.Exec(ctx, query,
		report.ID,
		report.UserID,
		report.AssessmentID,
		string(report.Type),
		report.AssessorID,
		string(report.Status),
		responsesJSON,
		report.CreatedAt,
		report.UpdatedAt,
		nullTime(report.SubmittedAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrReportExists
		}
		return fmt.Errorf("failed to create report: %w", err)
	}

	return nil
}

// GetReport retrieves a report by id
func (r *PostgresRepository) GetReport(ctx context.Context, id string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`

	report, err := scanReport(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// UpdateReport applies a partial update inside a transaction holding the row lock
func (r *PostgresRepository) UpdateReport(ctx context.Context, id string, in models.UpdateReportInput) (*models.Report, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1 FOR UPDATE`
	report, err := scanReport(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	if err := applyUpdate(report, in); err != nil {
		return nil, err
	}

	responsesJSON, err := marshalResponses(report.Responses)
	if err != nil {
		return nil, err
	}

	update := `
		UPDATE reports
		SET status = $2, responses = $3, updated_at = $4, submitted_at = $5
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, update,
		id,
		string(report.Status),
		responsesJSON,
		report.UpdatedAt,
		nullTime(report.SubmittedAt),
	); err != nil {
		return nil, fmt.Errorf("failed to update report: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit report update: %w", err)
	}
	return report, nil
}

// ListReports returns reports matching filters, newest first
func (r *PostgresRepository) ListReports(ctx context.Context, filters models.ReportFilters) ([]*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, filters.UserID)
		argNum++
	}

	if filters.AssessmentID != "" {
		query += fmt.Sprintf(" AND assessment_id = $%d", argNum)
		args = append(args, filters.AssessmentID)
		argNum++
	}

	if filters.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argNum)
		args = append(args, string(filters.Type))
		argNum++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filters.Status))
		argNum++
	}

	query += " ORDER BY created_at DESC, id ASC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	return reports, nil
}

func scanReport(row pgx.Row) (*models.Report, error) {
	var report models.Report
	var typeStr, statusStr string
	var submittedAt sql.NullTime
	var responsesJSON []byte

	err := row.Scan(
		&report.ID,
		&report.UserID,
		&report.AssessmentID,
		&typeStr,
		&report.AssessorID,
		&statusStr,
		&responsesJSON,
		&report.CreatedAt,
		&report.UpdatedAt,
		&submittedAt,
	)
	if err != nil {
		return nil, err
	}

	report.Type = models.ReportType(typeStr)
	report.Status = models.ReportStatus(statusStr)
	if submittedAt.Valid {
		report.SubmittedAt = &submittedAt.Time
	}

	if responsesJSON != nil {
		if err := json.Unmarshal(responsesJSON, &report.Responses); err != nil {
			return nil, fmt.Errorf("failed to unmarshal responses: %w", err)
		}
	}

	return &report, nil
}

func marshalResponses(responses models.Responses) ([]byte, error) {
	if responses == nil {
		responses = models.Responses{}
	}
	b, err := json.Marshal(responses)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal responses: %w", err)
	}
	return b, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// Register the PostgreSQL driver.
	_ "github.com/lib/pq"

	"site-creator/internal/domain"
)

const (
	insertProjectSQL = `INSERT INTO projects (user_session, project_name, description, status, poehali_url)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`

	listProjectsSQL = `SELECT id, project_name, description, status, poehali_url, created_at
FROM projects
WHERE user_session = $1
ORDER BY created_at DESC`
)

// sqlAPI is the subset of *sql.DB used by PostgresStore.
type sqlAPI interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

// PostgresStore keeps projects in the `projects` table.
type PostgresStore struct {
	db sqlAPI
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("repository: dsn must not be empty")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: open postgres: %w", err)
	}
	// A Lambda instance serves one request at a time.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: ping postgres: %w", err)
	}
	return NewPostgresStore(db)
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db sqlAPI) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("repository: db must not be nil")
	}
	return &PostgresStore{db: db}, nil
}

// InsertProject writes the project and returns it with the assigned id and
// creation time.
func (s *PostgresStore) InsertProject(ctx context.Context, sessionToken string, p domain.Project) (domain.Project, error) {
	if strings.TrimSpace(sessionToken) == "" {
		return domain.Project{}, errors.New("repository: InsertProject: session is required")
	}
	var created time.Time
	err := s.db.QueryRowContext(ctx, insertProjectSQL,
		sessionToken, p.Name, p.Description, string(p.Status), p.URL,
	).Scan(&p.ID, &created)
	if err != nil {
		return domain.Project{}, fmt.Errorf("repository: InsertProject: %w", err)
	}
	p.CreatedAt = &created
	return p, nil
}

// ListProjects returns a session's projects, newest first.
func (s *PostgresStore) ListProjects(ctx context.Context, sessionToken string) ([]domain.Project, error) {
	rows, err := s.db.QueryContext(ctx, listProjectsSQL, sessionToken)
	if err != nil {
		return nil, fmt.Errorf("repository: ListProjects query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	projects := make([]domain.Project, 0)
	for rows.Next() {
		var (
			p           domain.Project
			description sql.NullString
			status      string
			url         sql.NullString
			created     sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.Name, &description, &status, &url, &created); err != nil {
			return nil, fmt.Errorf("repository: ListProjects scan: %w", err)
		}
		p.Description = description.String
		p.Status = domain.ParseProjectStatus(status)
		p.URL = url.String
		if created.Valid {
			ts := created.Time
			p.CreatedAt = &ts
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: ListProjects rows: %w", err)
	}
	return projects, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

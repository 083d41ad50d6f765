// Package repository persists classifier rules and dataset load history.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/opensource-finance/amlboard/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// defaultLoadLimit caps ListDatasetLoads when no limit is given.
const defaultLoadLimit = 20

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New opens the configured database and applies the schema.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveRule inserts or replaces a rule. Saving a deleted rule restores it.
func (r *SQLRepository) SaveRule(ctx context.Context, rule *domain.ClassificationRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}
	if !rule.Typology.Valid() {
		return fmt.Errorf("%w: unknown typology %q", ErrInvalidInput, rule.Typology)
	}

	keywords, err := json.Marshal(rule.Keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}

	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	query := `
		INSERT INTO classification_rules (
			id, name, description, typology, keywords, expression, priority, enabled, deleted, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			typology = excluded.typology,
			keywords = excluded.keywords,
			expression = excluded.expression,
			priority = excluded.priority,
			enabled = excluded.enabled,
			deleted = 0,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, string(rule.Typology),
		string(keywords), rule.Expression, rule.Priority, boolInt(rule.Enabled),
		rule.CreatedAt, rule.UpdatedAt,
	)
	return err
}

// GetRule retrieves a rule that has not been deleted.
func (r *SQLRepository) GetRule(ctx context.Context, ruleID string) (*domain.ClassificationRule, error) {
	query := `
		SELECT id, name, description, typology, keywords, expression, priority, enabled, created_at, updated_at
		FROM classification_rules
		WHERE id = ? AND deleted = 0
	`

	rule, err := scanRule(r.db.QueryRowContext(ctx, r.rebind(query), ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rule, err
}

// ListRules returns every rule that has not been deleted, in evaluation order.
func (r *SQLRepository) ListRules(ctx context.Context) ([]*domain.ClassificationRule, error) {
	query := `
		SELECT id, name, description, typology, keywords, expression, priority, enabled, created_at, updated_at
		FROM classification_rules
		WHERE deleted = 0
		ORDER BY priority, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ClassificationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// DeleteRule soft-deletes a rule.
func (r *SQLRepository) DeleteRule(ctx context.Context, ruleID string) error {
	query := `
		UPDATE classification_rules
		SET deleted = 1, updated_at = ?
		WHERE id = ? AND deleted = 0
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), ruleID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveDatasetLoad records one dataset load.
func (r *SQLRepository) SaveDatasetLoad(ctx context.Context, load *domain.DatasetLoad) error {
	if load == nil || load.ID == "" {
		return fmt.Errorf("%w: load id is required", ErrInvalidInput)
	}

	counts, err := json.Marshal(load.TypologyCounts)
	if err != nil {
		return fmt.Errorf("failed to encode typology counts: %w", err)
	}

	query := `
		INSERT INTO dataset_loads (id, source, row_count, sar_count, typology_counts, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		load.ID, load.Source, load.RowCount, load.SARCount, string(counts), load.LoadedAt.UTC(),
	)
	return err
}

// ListDatasetLoads returns the most recent loads first.
func (r *SQLRepository) ListDatasetLoads(ctx context.Context, limit int) ([]*domain.DatasetLoad, error) {
	if limit <= 0 {
		limit = defaultLoadLimit
	}

	query := `
		SELECT id, source, row_count, sar_count, typology_counts, loaded_at
		FROM dataset_loads
		ORDER BY loaded_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.DatasetLoad
	for rows.Next() {
		var load domain.DatasetLoad
		var counts string

		if err := rows.Scan(&load.ID, &load.Source, &load.RowCount, &load.SARCount, &counts, &load.LoadedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(counts), &load.TypologyCounts); err != nil {
			return nil, fmt.Errorf("failed to parse typology counts for load %s: %w", load.ID, err)
		}
		out = append(out, &load)
	}
	return out, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*domain.ClassificationRule, error) {
	var rule domain.ClassificationRule
	var description sql.NullString
	var typology, keywords string
	var enabled int

	if err := row.Scan(
		&rule.ID, &rule.Name, &description, &typology, &keywords,
		&rule.Expression, &rule.Priority, &enabled,
		&rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Typology = domain.Typology(typology)
	rule.Enabled = enabled == 1
	if err := json.Unmarshal([]byte(keywords), &rule.Keywords); err != nil {
		return nil, fmt.Errorf("failed to parse keywords for rule %s: %w", rule.ID, err)
	}
	return &rule, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = strconv.AppendInt(result, int64(n), 10)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

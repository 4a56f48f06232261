package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ncruces/go-sqlite3"

	"github.com/zjrosen/cbconfig/internal/log"
	"github.com/zjrosen/cbconfig/internal/registry/domain"
)

// configurationColumns is the list of columns to select for record queries.
const configurationColumns = `identifier, logical_name, description, author, version, provider, model,
	doc_created_at, doc_modified_at, created_at, updated_at, deleted_at`

// catalogRepository implements domain.Catalog using SQLite.
type catalogRepository struct {
	db  *sql.DB
	now func() time.Time
}

// newCatalogRepository creates a new catalogRepository instance.
func newCatalogRepository(db *sql.DB) *catalogRepository {
	return &catalogRepository{db: db, now: time.Now}
}

// Ensure catalogRepository implements domain.Catalog.
var _ domain.Catalog = (*catalogRepository)(nil)

// scanConfiguration scans a row into a ConfigurationModel.
func scanConfiguration(scanner interface{ Scan(...any) error }) (*ConfigurationModel, error) {
	var model ConfigurationModel
	err := scanner.Scan(
		&model.Identifier, &model.LogicalName, &model.Description, &model.Author,
		&model.Version, &model.Provider, &model.Model,
		&model.DocCreatedAt, &model.DocModifiedAt,
		&model.CreatedAt, &model.UpdatedAt, &model.DeletedAt,
	)
	return &model, err
}

// AllocatedMax returns the persisted high-water mark.
func (r *catalogRepository) AllocatedMax(ctx context.Context) (int, error) {
	var allocated int
	err := r.db.QueryRowContext(ctx, `SELECT allocated_max FROM allocator WHERE id = 1`).Scan(&allocated)
	if err != nil {
		return 0, fmt.Errorf("failed to read allocator: %w", err)
	}
	return allocated, nil
}

// Allocate bumps the high-water mark in its own transaction and returns the
// new identifier. Once this returns the identifier is spent.
func (r *catalogRepository) Allocate(ctx context.Context) (domain.Identifier, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin allocation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var allocated int
	if err := tx.QueryRowContext(ctx, `SELECT allocated_max FROM allocator WHERE id = 1`).Scan(&allocated); err != nil {
		return 0, fmt.Errorf("failed to read allocator: %w", err)
	}

	next, err := domain.NextIdentifier(allocated)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE allocator SET allocated_max = ? WHERE id = 1`, int(next)); err != nil {
		return 0, fmt.Errorf("failed to advance allocator: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit allocation: %w", err)
	}

	log.Debug(log.CatCatalog, "identifier allocated", "identifier", next)
	return next, nil
}

// ReconcileAllocated raises the high-water mark to cover observedMax and
// every identifier already present in the catalog, tombstoned or not.
func (r *catalogRepository) ReconcileAllocated(ctx context.Context, observedMax int) (int, error) {
	if observedMax < 0 || observedMax > domain.MaxIdentifier {
		return 0, fmt.Errorf("observed maximum %d out of range", observedMax)
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE allocator
		 SET allocated_max = max(allocated_max, ?, (SELECT COALESCE(MAX(identifier), 0) FROM configurations))
		 WHERE id = 1`,
		observedMax,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile allocator: %w", err)
	}
	return r.AllocatedMax(ctx)
}

// Insert adds a live row for rec.
// Returns DuplicateNameError if another live row holds the same name.
func (r *catalogRepository) Insert(ctx context.Context, rec domain.Record) error {
	now := r.now()
	rec.CreatedAt, rec.UpdatedAt = now, now
	model := toConfigurationModel(rec)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO configurations (
			identifier, logical_name, description, author, version, provider, model,
			doc_created_at, doc_modified_at, created_at, updated_at, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		model.Identifier, model.LogicalName, model.Description, model.Author,
		model.Version, model.Provider, model.Model,
		model.DocCreatedAt, model.DocModifiedAt, model.CreatedAt, model.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) {
			return r.duplicateName(ctx, rec.LogicalName, err)
		}
		if errors.Is(err, sqlite3.CONSTRAINT_PRIMARYKEY) {
			return fmt.Errorf("identifier %s is already recorded: %w", rec.Identifier, err)
		}
		return fmt.Errorf("failed to insert configuration: %w", err)
	}
	return nil
}

// Update replaces the name and summary of a live row.
// Returns NotFoundError or DuplicateNameError.
func (r *catalogRepository) Update(ctx context.Context, rec domain.Record) error {
	rec.UpdatedAt = r.now()
	model := toConfigurationModel(rec)

	result, err := r.db.ExecContext(ctx,
		`UPDATE configurations SET
			logical_name = ?, description = ?, author = ?, version = ?, provider = ?, model = ?,
			doc_created_at = ?, doc_modified_at = ?, updated_at = ?
		 WHERE identifier = ? AND deleted_at IS NULL`,
		model.LogicalName, model.Description, model.Author, model.Version, model.Provider, model.Model,
		model.DocCreatedAt, model.DocModifiedAt, model.UpdatedAt,
		model.Identifier,
	)
	if err != nil {
		if errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) {
			return r.duplicateName(ctx, rec.LogicalName, err)
		}
		return fmt.Errorf("failed to update configuration: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &domain.NotFoundError{Identifier: rec.Identifier}
	}
	return nil
}

// Tombstone marks a live row deleted. The row is kept so the identifier
// remains visible to ReconcileAllocated.
func (r *catalogRepository) Tombstone(ctx context.Context, id domain.Identifier) error {
	now := r.now().Unix()
	result, err := r.db.ExecContext(ctx,
		`UPDATE configurations SET deleted_at = ?, updated_at = ?
		 WHERE identifier = ? AND deleted_at IS NULL`,
		now, now, int64(id),
	)
	if err != nil {
		return fmt.Errorf("failed to tombstone configuration: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &domain.NotFoundError{Identifier: id}
	}
	return nil
}

// FindByIdentifier retrieves the live row for id.
func (r *catalogRepository) FindByIdentifier(ctx context.Context, id domain.Identifier) (domain.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+configurationColumns+` FROM configurations WHERE identifier = ? AND deleted_at IS NULL`,
		int64(id),
	)
	model, err := scanConfiguration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, &domain.NotFoundError{Identifier: id}
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("failed to find configuration by identifier: %w", err)
	}
	return model.toDomain(), nil
}

// FindByName retrieves the live row holding name. BINARY collation makes the
// match exact and case-sensitive.
func (r *catalogRepository) FindByName(ctx context.Context, name string) (domain.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+configurationColumns+` FROM configurations
		 WHERE logical_name = ? COLLATE BINARY AND deleted_at IS NULL`,
		name,
	)
	model, err := scanConfiguration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, &domain.NotFoundError{Name: name}
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("failed to find configuration by name: %w", err)
	}
	return model.toDomain(), nil
}

// List retrieves every live row ordered by name, then identifier.
func (r *catalogRepository) List(ctx context.Context) ([]domain.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+configurationColumns+` FROM configurations
		 WHERE deleted_at IS NULL
		 ORDER BY logical_name COLLATE BINARY ASC, identifier ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list configurations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []domain.Record
	for rows.Next() {
		model, err := scanConfiguration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan configuration row: %w", err)
		}
		records = append(records, model.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating configuration rows: %w", err)
	}
	return records, nil
}

// Close releases any resources held by the repository.
// This is a no-op because the connection is owned by the DB struct.
func (r *catalogRepository) Close() error {
	return nil
}

func (r *catalogRepository) duplicateName(ctx context.Context, name string, cause error) error {
	existing, err := r.FindByName(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to write configuration %q: %w", name, cause)
	}
	return &domain.DuplicateNameError{Name: name, Existing: existing.Identifier}
}

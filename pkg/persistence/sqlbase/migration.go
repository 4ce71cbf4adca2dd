// Package sqlbase holds the schema versioning shared by the SQL stores.
package sqlbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// VersionsTable records every schema step applied to a database.
const VersionsTable = "lmsflow_schema_versions"

var ErrInvalidSchema = errors.New("invalid schema steps")

// Step is one forward-only schema change.
type Step struct {
	Version int
	Name    string
	SQL     string
}

// Schema upgrades a database to the newest Step.
type Schema struct {
	db     *sql.DB
	logger *slog.Logger
	steps  []Step
}

// NewSchema sorts steps by version. Versions must be positive and unique.
func NewSchema(logger *slog.Logger, db *sql.DB, steps []Step) (*Schema, error) {
	sorted := slices.Clone(steps)
	slices.SortFunc(sorted, func(a, b Step) int { return a.Version - b.Version })

	for i, step := range sorted {
		if step.Version <= 0 {
			return nil, fmt.Errorf("%w: step %q has version %d", ErrInvalidSchema, step.Name, step.Version)
		}

		if i > 0 && sorted[i-1].Version == step.Version {
			return nil, fmt.Errorf("%w: version %d is used twice", ErrInvalidSchema, step.Version)
		}
	}

	return &Schema{db: db, logger: logger, steps: sorted}, nil
}

// Target is the version the schema ends at once every step is applied.
func (s *Schema) Target() int {
	if len(s.steps) == 0 {
		return 0
	}

	return s.steps[len(s.steps)-1].Version
}

// Upgrade applies the steps newer than the recorded version, one transaction each.
func (s *Schema) Upgrade(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+VersionsTable+` (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", VersionsTable, err)
	}

	applied, err := s.Applied(ctx)
	if err != nil {
		return err
	}

	if applied >= s.Target() {
		s.logger.DebugContext(ctx, "Store schema is current", "version", applied)

		return nil
	}

	s.logger.InfoContext(ctx, "Upgrading store schema", "from", applied, "to", s.Target())

	for _, step := range s.steps {
		if step.Version <= applied {
			continue
		}

		if err := s.apply(ctx, step); err != nil {
			return err
		}

		s.logger.InfoContext(ctx, "Applied schema step", "version", step.Version, "name", step.Name)
	}

	return nil
}

// Applied returns the newest recorded version, zero for a fresh database.
func (s *Schema) Applied(ctx context.Context) (int, error) {
	var version int

	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM "+VersionsTable).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}

	return version, nil
}

func (s *Schema) apply(ctx context.Context, step Step) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("schema step %d: %w", step.Version, err)
	}

	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
		return fmt.Errorf("schema step %d (%s): %w", step.Version, step.Name, err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO "+VersionsTable+" (version, name) VALUES ($1, $2)", step.Version, step.Name)
	if err != nil {
		return fmt.Errorf("schema step %d: recording version: %w", step.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("schema step %d: %w", step.Version, err)
	}

	return nil
}

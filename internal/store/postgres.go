// Package store implements core.Sink on PostgreSQL.
//
// Each import runs in one transaction and bulk-loads its batches with the
// COPY protocol. Every imported row carries the import's upload_id, and a
// summary of each committed import is kept in csv_imports.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/rowstream/internal/config"
	"github.com/JonMunkholm/rowstream/internal/core"
)

// UploadIDColumn is appended to every imported table.
const UploadIDColumn = "upload_id"

const createImportsSQL = `CREATE TABLE IF NOT EXISTS csv_imports (
	id          UUID PRIMARY KEY,
	table_key   TEXT NOT NULL,
	file_name   TEXT NOT NULL,
	total_rows  INTEGER NOT NULL,
	inserted    INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	bytes_read  BIGINT NOT NULL,
	duration_ms BIGINT NOT NULL,
	failed_rows JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertImportSQL = `INSERT INTO csv_imports
	(id, table_key, file_name, total_rows, inserted, skipped, bytes_read, duration_ms, failed_rows)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Store is a PostgreSQL-backed core.Sink.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Sink = (*Store)(nil)

// Open connects a pool sized by cfg and verifies it with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("connected to database", "database", poolConfig.ConnConfig.Database)
	return &Store{pool: pool}, nil
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureTables creates the import history table and a table for each
// definition when they do not exist yet. Existing tables are left alone.
func (s *Store) EnsureTables(ctx context.Context, defs []core.TableDefinition) error {
	if _, err := s.pool.Exec(ctx, createImportsSQL); err != nil {
		return fmt.Errorf("create csv_imports: %w", describe(err))
	}
	for _, def := range defs {
		if _, err := s.pool.Exec(ctx, createTableSQL(def)); err != nil {
			return fmt.Errorf("create table %s: %w", def.TableName(), describe(err))
		}
	}
	return nil
}

// Reset empties every table in defs and the import history in one
// transaction. Tables that do not exist yet are skipped.
func (s *Store) Reset(ctx context.Context, defs []core.TableDefinition) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, sql := range resetSQL(defs) {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("reset: %w", describe(err))
		}
	}
	return tx.Commit(ctx)
}

// resetSQL returns one TRUNCATE per table, history last.
func resetSQL(defs []core.TableDefinition) []string {
	tables := make([]string, 0, len(defs)+1)
	for _, def := range defs {
		tables = append(tables, def.TableName())
	}
	tables = append(tables, "csv_imports")

	stmts := make([]string, 0, len(tables))
	for _, table := range tables {
		name := pgx.Identifier{table}.Sanitize()
		stmts = append(stmts, fmt.Sprintf(
			"DO $$ BEGIN IF to_regclass('%s') IS NOT NULL THEN TRUNCATE %s; END IF; END $$",
			strings.ReplaceAll(name, "'", "''"), name))
	}
	return stmts
}

// createTableSQL returns the DDL for def's target table.
func createTableSQL(def core.TableDefinition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", pgx.Identifier{def.TableName()}.Sanitize())
	for _, spec := range def.FieldSpecs {
		fmt.Fprintf(&b, "\t%s %s,\n", pgx.Identifier{spec.Column()}.Sanitize(), spec.Type.SQLType())
	}
	fmt.Fprintf(&b, "\t%s UUID NOT NULL\n)", pgx.Identifier{UploadIDColumn}.Sanitize())
	return b.String()
}

// BeginImport starts the transaction that all batches of importID go through.
func (s *Store) BeginImport(ctx context.Context, def core.TableDefinition, importID uuid.UUID) (core.ImportTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &importTx{
		tx:       tx,
		table:    pgx.Identifier{def.TableName()},
		columns:  append(def.DBColumns(), UploadIDColumn),
		uploadID: pgtype.UUID{Bytes: importID, Valid: true},
	}, nil
}

// RecordImport stores the summary of a committed import.
func (s *Store) RecordImport(ctx context.Context, result *core.ImportResult) error {
	id, err := uuid.Parse(result.ImportID)
	if err != nil {
		return fmt.Errorf("import id: %w", err)
	}
	failed, err := json.Marshal(result.FailedRows)
	if err != nil {
		return fmt.Errorf("encode failed rows: %w", err)
	}

	_, err = s.pool.Exec(ctx, insertImportSQL,
		id,
		result.TableKey,
		result.FileName,
		result.TotalRows,
		result.Inserted,
		result.Skipped,
		result.BytesRead,
		result.Duration.Milliseconds(),
		failed,
	)
	if err != nil {
		return fmt.Errorf("insert csv_imports: %w", describe(err))
	}
	return nil
}

type importTx struct {
	tx       pgx.Tx
	table    pgx.Identifier
	columns  []string
	uploadID pgtype.UUID
}

func (t *importTx) CopyRecords(ctx context.Context, records []core.Record) (int64, error) {
	n, err := t.tx.CopyFrom(ctx, t.table, t.columns, newRecordSource(records, t.uploadID))
	if err != nil {
		return n, describe(err)
	}
	return n, nil
}

func (t *importTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *importTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// recordSource feeds a batch of records to CopyFrom, appending the upload id
// to each row.
type recordSource struct {
	records  []core.Record
	uploadID pgtype.UUID
	idx      int
	row      []any
}

var _ pgx.CopyFromSource = (*recordSource)(nil)

func newRecordSource(records []core.Record, uploadID pgtype.UUID) *recordSource {
	return &recordSource{records: records, uploadID: uploadID, idx: -1}
}

func (r *recordSource) Next() bool {
	r.idx++
	return r.idx < len(r.records)
}

func (r *recordSource) Values() ([]any, error) {
	values := r.records[r.idx].Values
	r.row = append(r.row[:0], values...)
	r.row = append(r.row, r.uploadID)
	return r.row, nil
}

func (r *recordSource) Err() error {
	return nil
}

// describe adds the server's detail line to Postgres errors, which often
// names the offending value.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w: %s", err, pgErr.Detail)
	}
	return err
}

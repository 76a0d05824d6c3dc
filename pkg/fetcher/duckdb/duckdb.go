// Package duckdb reads edges from a DuckDB edge table:
//
//	src_service, src_column, src_id, label, tgt_service, tgt_column, tgt_id,
//	weight DOUBLE, ts BIGINT, props VARCHAR (JSON object)
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	_ "github.com/marcboeker/go-duckdb" // Register DuckDB driver

	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/fetcher"
)

func init() {
	fetcher.RegisterSource("duckdb", open)
}

// open reads the backend options:
//
//	path          database file, empty for in-memory
//	table         edge table name (default "edges")
//	create_table  create the table when missing (default true)
func open(ctx context.Context, cfg fetcher.Config) (fetcher.Source, error) {
	create, err := cfg.Bool("create_table", true)
	if err != nil {
		return nil, err
	}
	return Open(ctx, cfg.String("path", ""), cfg.String("table", "edges"), create)
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is a fetcher.Source over a DuckDB table.
type Store struct {
	db    *sql.DB
	table string
}

// Open opens the database at dsn ("" or ":memory:" for in-memory).
func Open(ctx context.Context, dsn, table string, create bool) (*Store, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid duckdb table name %q", fetcher.ErrConfiguration, table)
	}
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}
	// An in-memory database lives in a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, table: table}
	if create {
		if err := s.createTable(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) createTable(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
		src_service VARCHAR NOT NULL,
		src_column  VARCHAR NOT NULL,
		src_id      VARCHAR NOT NULL,
		label       VARCHAR NOT NULL,
		tgt_service VARCHAR NOT NULL,
		tgt_column  VARCHAR NOT NULL,
		tgt_id      VARCHAR NOT NULL,
		weight      DOUBLE,
		ts          BIGINT,
		props       VARCHAR,
		PRIMARY KEY (src_service, src_column, src_id, label, tgt_service, tgt_column, tgt_id)
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create edge table: %w", err)
	}
	return nil
}

// neighborsSQL selects the far endpoint and payload of edges around one vertex.
func neighborsSQL(table string, dir types.Direction) string {
	near, far := "src", "tgt"
	if dir == types.In {
		near, far = "tgt", "src"
	}
	return fmt.Sprintf(`SELECT %[2]s_service, %[2]s_column, %[2]s_id, weight, ts, props FROM %[3]s
WHERE %[1]s_service = ? AND %[1]s_column = ? AND %[1]s_id = ? AND label = ?
ORDER BY %[2]s_service, %[2]s_column, %[2]s_id`, near, far, table)
}

// Neighbors returns the edges of v with label in direction dir.
func (s *Store) Neighbors(ctx context.Context, v types.VertexID, label string, dir types.Direction) ([]types.Edge, error) {
	rows, err := s.db.QueryContext(ctx, neighborsSQL(s.table, dir), v.Service, v.Column, v.ID, label)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []types.Edge
	for rows.Next() {
		var (
			tgt    types.VertexID
			weight sql.NullFloat64
			ts     sql.NullInt64
			props  sql.NullString
		)
		if err := rows.Scan(&tgt.Service, &tgt.Column, &tgt.ID, &weight, &ts, &props); err != nil {
			return nil, err
		}
		e := types.Edge{Src: v, Tgt: tgt, Label: label, Dir: dir, Weight: weight.Float64, Timestamp: ts.Int64}
		if props.Valid && props.String != "" {
			if err := json.Unmarshal([]byte(props.String), &e.Props); err != nil {
				return nil, fmt.Errorf("decode props of %s -> %s: %w", v, tgt, err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// AddEdges upserts edges in one transaction.
func (s *Store) AddEdges(edges []types.Edge) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO `+s.table+` VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range edges {
		var props any
		if len(e.Props) > 0 {
			raw, err := json.Marshal(e.Props)
			if err != nil {
				return err
			}
			props = string(raw)
		}
		if _, err := stmt.ExecContext(ctx,
			e.Src.Service, e.Src.Column, e.Src.ID, e.Label,
			e.Tgt.Service, e.Tgt.Column, e.Tgt.ID,
			e.Weight, e.Timestamp, props,
		); err != nil {
			return fmt.Errorf("insert edge %s -%s-> %s: %w", e.Src, e.Label, e.Tgt, err)
		}
	}
	return tx.Commit()
}

// classify marks lost connections as fatal for the traversal.
func classify(err error) error {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %w", fetcher.ErrUnavailable, err)
	}
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

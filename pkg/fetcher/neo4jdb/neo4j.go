// Package neo4jdb reads edges from a Neo4j database.
//
// Vertices are nodes carrying a common node label (default "Vertex") and the
// properties service, column and id. Edge labels are relationship types.
// The relationship properties weight and ts map onto the edge weight and
// timestamp; every other property is exposed as an edge prop.
package neo4jdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/fetcher"
)

func init() {
	fetcher.RegisterSource("neo4j", open)
}

// open reads the backend options:
//
//	uri             bolt or neo4j URI (required)
//	username        basic auth user
//	password        basic auth password
//	database        database name (default: server default)
//	node_label      label shared by vertex nodes (default "Vertex")
//	verify_timeout  connectivity check at startup (default 5s)
func open(ctx context.Context, cfg fetcher.Config) (fetcher.Source, error) {
	timeout, err := cfg.Duration("verify_timeout", 5*time.Second)
	if err != nil {
		return nil, err
	}
	return Open(ctx, Options{
		URI:           cfg.String("uri", ""),
		Username:      cfg.String("username", ""),
		Password:      cfg.String("password", ""),
		Database:      cfg.String("database", ""),
		NodeLabel:     cfg.String("node_label", "Vertex"),
		VerifyTimeout: timeout,
	})
}

// Options configures the client.
type Options struct {
	URI           string
	Username      string
	Password      string
	Database      string
	NodeLabel     string
	VerifyTimeout time.Duration
}

// Store is a fetcher.Source over a Neo4j driver.
type Store struct {
	driver    neo4j.DriverWithContext
	database  string
	nodeLabel string
}

// Open creates the driver and verifies connectivity.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("%w: neo4j uri is required", fetcher.ErrConfiguration)
	}
	if opts.NodeLabel == "" {
		opts.NodeLabel = "Vertex"
	}
	driver, err := neo4j.NewDriverWithContext(opts.URI, neo4j.BasicAuth(opts.Username, opts.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if opts.VerifyTimeout > 0 {
		vctx, cancel := context.WithTimeout(ctx, opts.VerifyTimeout)
		defer cancel()
		if err := driver.VerifyConnectivity(vctx); err != nil {
			driver.Close(ctx)
			return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
		}
	}
	return &Store{driver: driver, database: opts.Database, nodeLabel: opts.NodeLabel}, nil
}

// quoteIdent backtick-quotes a Cypher identifier.
func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// neighborsCypher scans relationships of type label around the vertex bound
// by $service, $column and $id.
func neighborsCypher(nodeLabel, label string, dir types.Direction) string {
	node := quoteIdent(nodeLabel)
	rel := "-[r:" + quoteIdent(label) + "]->"
	if dir == types.In {
		rel = "<-[r:" + quoteIdent(label) + "]-"
	}
	return "MATCH (s:" + node + " {service: $service, column: $column, id: $id})" + rel + "(t:" + node + ")\n" +
		"RETURN t.service AS service, t.column AS column, t.id AS id, properties(r) AS props\n" +
		"ORDER BY service, column, id"
}

// Neighbors runs one read transaction per call.
func (s *Store) Neighbors(ctx context.Context, v types.VertexID, label string, dir types.Direction) ([]types.Edge, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database, AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	cypher := neighborsCypher(s.nodeLabel, label, dir)
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{"service": v.Service, "column": v.Column, "id": v.ID})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		edges := make([]types.Edge, 0, len(records))
		for _, rec := range records {
			e, err := edgeFromRow(v, label, dir, rec.AsMap())
			if err != nil {
				return nil, err
			}
			edges = append(edges, e)
		}
		return edges, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return result.([]types.Edge), nil
}

// edgeFromRow converts one result row into an edge oriented from v.
func edgeFromRow(v types.VertexID, label string, dir types.Direction, row map[string]any) (types.Edge, error) {
	if row["id"] == nil {
		return types.Edge{}, fmt.Errorf("neo4j: node reached from %s has no id property", v)
	}
	tgt := types.VertexID{
		Service: fmt.Sprint(row["service"]),
		Column:  fmt.Sprint(row["column"]),
		ID:      fmt.Sprint(row["id"]),
	}
	e := types.Edge{Src: v, Tgt: tgt, Label: label, Dir: dir}
	props, _ := row["props"].(map[string]any)
	for k, val := range props {
		switch k {
		case "weight":
			if w, ok := types.Number(val); ok {
				e.Weight = w
				continue
			}
		case "ts":
			if ts, ok := val.(int64); ok {
				e.Timestamp = ts
				continue
			}
		}
		if e.Props == nil {
			e.Props = make(map[string]any)
		}
		e.Props[k] = val
	}
	return e, nil
}

// AddEdges merges the endpoints and relationships of edges, one transaction
// per label.
func (s *Store) AddEdges(edges []types.Edge) error {
	ctx := context.Background()
	byLabel := make(map[string][]any)
	var labels []string
	for _, e := range edges {
		if _, ok := byLabel[e.Label]; !ok {
			labels = append(labels, e.Label)
		}
		props := map[string]any{"weight": e.Weight, "ts": e.Timestamp}
		for k, v := range e.Props {
			props[k] = v
		}
		byLabel[e.Label] = append(byLabel[e.Label], map[string]any{
			"ss": e.Src.Service, "sc": e.Src.Column, "si": e.Src.ID,
			"ts": e.Tgt.Service, "tc": e.Tgt.Column, "ti": e.Tgt.ID,
			"props": props,
		})
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)
	for _, label := range labels {
		cypher := mergeCypher(s.nodeLabel, label)
		rows := byLabel[label]
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(ctx, cypher, map[string]any{"rows": rows})
		})
		if err != nil {
			return classify(err)
		}
	}
	return nil
}

func mergeCypher(nodeLabel, label string) string {
	node := quoteIdent(nodeLabel)
	return "UNWIND $rows AS row\n" +
		"MERGE (s:" + node + " {service: row.ss, column: row.sc, id: row.si})\n" +
		"MERGE (t:" + node + " {service: row.ts, column: row.tc, id: row.ti})\n" +
		"MERGE (s)-[r:" + quoteIdent(label) + "]->(t)\n" +
		"SET r = row.props"
}

// classify marks connectivity failures as fatal for the traversal.
func classify(err error) error {
	if neo4j.IsConnectivityError(err) {
		return fmt.Errorf("%w: %w", fetcher.ErrUnavailable, err)
	}
	return err
}

// Close closes the driver.
func (s *Store) Close() error {
	return s.driver.Close(context.Background())
}

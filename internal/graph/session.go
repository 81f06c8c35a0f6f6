// Package graph loads the catalog into Neo4j and runs the clustering, partitioning
// and naming stages as parameterized Cypher.
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ademuri/playlist-builder/internal/config"
)

// Record is one result row keyed by column name.
type Record map[string]any

// Runner executes a single auto-commit query and returns every row.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]Record, error)
}

// Session is the process-wide Neo4j session. It is not safe for concurrent
// use; the pipeline issues one query at a time.
type Session struct {
	driver  neo4j.DriverWithContext
	session neo4j.SessionWithContext
}

var _ Runner = (*Session)(nil)

// Open connects to Neo4j and verifies the server is reachable.
func Open(ctx context.Context, cfg config.Neo4j) (*Session, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URL, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connecting to %s: %w", cfg.URL, err)
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: cfg.Database,
	})
	return &Session{driver: driver, session: session}, nil
}

func (s *Session) Run(ctx context.Context, cypher string, params map[string]any) ([]Record, error) {
	result, err := s.session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]Record, len(records))
	for i, r := range records {
		rows[i] = Record(r.AsMap())
	}
	return rows, nil
}

func (s *Session) Close(ctx context.Context) error {
	return errors.Join(s.session.Close(ctx), s.driver.Close(ctx))
}

// GetString returns the string in column key, or "" when it is null.
func (r Record) GetString(key string) string {
	s, _ := r[key].(string)
	return s
}

// GetInt returns the integer in column key, or 0 when it is null.
func (r Record) GetInt(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// GetFloat returns the number in column key and whether it was present.
func (r Record) GetFloat(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// GetStrings returns the string list in column key, skipping null elements.
func (r Record) GetStrings(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// run executes a query that must succeed and wraps its error with what.
func run(ctx context.Context, r Runner, what, cypher string, params map[string]any) ([]Record, error) {
	rows, err := r.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return rows, nil
}

// single returns the first row, or an empty record when there is none.
func single(rows []Record) Record {
	if len(rows) == 0 {
		return Record{}
	}
	return rows[0]
}

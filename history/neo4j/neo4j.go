// Package neo4j provides a history store backed by Neo4j. Runs are stored
// as a graph: (:Unit)-[:RAN]->(:Run)-[:HAS]->(:Test).
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/rlch/spar"
	"github.com/rlch/spar/history"
	"github.com/rlch/spar/model"
)

//nolint:gochecknoinits // store self-registration pattern
func init() {
	history.Register(spar.HistoryNeo4j, func(cfg any) (history.Store, error) {
		neo4jCfg, ok := cfg.(*spar.Neo4jConfig)
		if !ok {
			return nil, fmt.Errorf("%w: expected *spar.Neo4jConfig, got %T", history.ErrInvalidConfig, cfg)
		}

		return New(context.Background(), neo4jCfg)
	})
}

const saveQuery = `
MERGE (u:Unit {identifier: $unit})
CREATE (r:Run {id: $id, engine: $engine, started: $started, finished: $finished, err: $err})
CREATE (u)-[:RAN]->(r)
WITH r
UNWIND $tests AS t
CREATE (r)-[:HAS {seq: t.seq}]->(:Test {name: t.name, status: t.status, detail: t.detail})`

const listQuery = `
MATCH (u:Unit)-[:RAN]->(r:Run)
WHERE $unit = '' OR u.identifier = $unit
OPTIONAL MATCH (r)-[h:HAS]->(t:Test)
WITH u, r, h, t ORDER BY h.seq
WITH u, r, collect(CASE WHEN t IS NULL THEN NULL ELSE {name: t.name, status: t.status, detail: t.detail} END) AS tests
RETURN u.identifier AS unit, r.id AS id, r.engine AS engine, r.started AS started,
       r.finished AS finished, r.err AS err, tests
ORDER BY started DESC, id
LIMIT $limit`

// noLimit stands in for an unbounded LIMIT.
const noLimit = 1 << 31

// Store persists runs in Neo4j.
type Store struct {
	driver neo4j.DriverWithContext
	db     string
}

var _ history.Store = (*Store)(nil)

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, cfg *spar.Neo4jConfig) (*Store, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("neo4j: failed to create driver: %w", err)
	}

	err = driver.VerifyConnectivity(ctx)
	if err != nil {
		_ = driver.Close(ctx)

		return nil, fmt.Errorf("neo4j: failed to connect: %w", err)
	}

	return &Store{driver: driver, db: cfg.Database}, nil
}

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	cfg := neo4j.SessionConfig{AccessMode: mode}
	if s.db != "" {
		cfg.DatabaseName = s.db
	}

	return s.driver.NewSession(ctx, cfg)
}

// Save writes the run and its tests in one transaction.
func (s *Store) Save(ctx context.Context, run history.Run) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer func() { _ = session.Close(ctx) }()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, saveQuery, saveParams(run))
		if err != nil {
			return nil, err
		}

		return result.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("neo4j: saving run %s: %w", run.ID, err)
	}

	return nil
}

func saveParams(run history.Run) map[string]any {
	tests := make([]any, len(run.Tests))
	for i, t := range run.Tests {
		tests[i] = map[string]any{
			"seq":    int64(i),
			"name":   t.Name,
			"status": t.Status.String(),
			"detail": t.Detail,
		}
	}

	return map[string]any{
		"unit":     run.Unit,
		"id":       run.ID,
		"engine":   run.Engine,
		"started":  run.Started.UnixNano(),
		"finished": run.Finished.UnixNano(),
		"err":      run.Err,
		"tests":    tests,
	}
}

// List returns runs newest first.
func (s *Store) List(ctx context.Context, unit string, limit int) ([]history.Run, error) {
	if limit <= 0 {
		limit = noLimit
	}

	session := s.session(ctx, neo4j.AccessModeRead)
	defer func() { _ = session.Close(ctx) }()

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, listQuery, map[string]any{"unit": unit, "limit": int64(limit)})
		if err != nil {
			return nil, err
		}

		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}

		runs := make([]history.Run, 0, len(records))

		for _, rec := range records {
			run, err := decodeRun(rec.AsMap())
			if err != nil {
				return nil, err
			}

			runs = append(runs, run)
		}

		return runs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: listing runs: %w", err)
	}

	runs, _ := out.([]history.Run)

	return runs, nil
}

// decodeRun converts one listQuery row.
func decodeRun(row map[string]any) (history.Run, error) {
	run := history.Run{
		ID:       str(row["id"]),
		Unit:     str(row["unit"]),
		Engine:   str(row["engine"]),
		Err:      str(row["err"]),
		Started:  time.Unix(0, integer(row["started"])),
		Finished: time.Unix(0, integer(row["finished"])),
	}

	tests, _ := row["tests"].([]any)

	for _, raw := range tests {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		status, err := model.ParseStatus(str(m["status"]))
		if err != nil {
			return run, err
		}

		run.Tests = append(run.Tests, history.TestOutcome{
			Name:   str(m["name"]),
			Status: status,
			Detail: str(m["detail"]),
		})
	}

	return run, nil
}

func str(v any) string {
	s, _ := v.(string)

	return s
}

func integer(v any) int64 {
	n, _ := v.(int64)

	return n
}

// Close closes the driver.
func (s *Store) Close() error {
	err := s.driver.Close(context.Background())
	if err != nil {
		return fmt.Errorf("neo4j: failed to close driver: %w", err)
	}

	return nil
}

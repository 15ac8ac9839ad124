// Package graphexport writes the relation graph into Neo4j for exploration.
package graphexport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/spigell/hh-pathfinder/internal/graph"
)

const (
	defaultBatchSize = 500
	connectTimeout   = 5 * time.Second
)

var constraints = []string{
	"CREATE CONSTRAINT position_key IF NOT EXISTS FOR (n:Position) REQUIRE n.key IS UNIQUE",
	"CREATE CONSTRAINT skill_key IF NOT EXISTS FOR (n:Skill) REQUIRE n.key IS UNIQUE",
	"CREATE CONSTRAINT company_key IF NOT EXISTS FOR (n:Company) REQUIRE n.key IS UNIQUE",
	"CREATE CONSTRAINT level_key IF NOT EXISTS FOR (n:Level) REQUIRE n.key IS UNIQUE",
	"CREATE CONSTRAINT domain_key IF NOT EXISTS FOR (n:Domain) REQUIRE n.key IS UNIQUE",
}

const upsertPositions = `
	UNWIND $positions AS p
	MERGE (v:Position {key: p.key})
	SET v.title = p.title,
	    v.vacancyId = p.vacancy_id,
	    v.salary = p.salary,
	    v.snapshot = $snapshot
	WITH v, p
	FOREACH (c IN p.company |
		MERGE (n:Company {key: c.key})
		SET n.name = c.name
		MERGE (v)-[:AT]->(n)
	)
	FOREACH (l IN p.level |
		MERGE (n:Level {key: l.key})
		SET n.name = l.name
		MERGE (v)-[:LEVEL]->(n)
	)
	FOREACH (d IN p.domain |
		MERGE (n:Domain {key: d.key})
		SET n.name = d.name
		MERGE (v)-[:IN]->(n)
	)
	FOREACH (s IN p.skills |
		MERGE (n:Skill {key: s.key})
		SET n.name = s.name
		MERGE (v)-[:REQUIRES]->(n)
	)
`

const pruneStale = `
	MATCH (v:Position)
	WHERE v.snapshot <> $snapshot
	DETACH DELETE v
`

// Config holds Neo4j connection settings.
type Config struct {
	URI       string `mapstructure:"uri"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"-"`
	Database  string `mapstructure:"database"`
	BatchSize int    `mapstructure:"batch-size"`
	// Prune removes positions written by earlier snapshots.
	Prune bool `mapstructure:"prune"`
}

// Stats summarizes an export.
type Stats struct {
	Positions            int
	NodesCreated         int
	RelationshipsCreated int
	NodesDeleted         int
}

type Exporter struct {
	driver neo4j.DriverWithContext
	cfg    Config
	logger *zap.Logger
}

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Exporter, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, errors.New("neo4j uri is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	return &Exporter{driver: driver, cfg: cfg, logger: logger}, nil
}

// Close releases the driver.
func (e *Exporter) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

// Export merges every position of g with its company, level, domain and skill
// relations. Positions are tagged with snapshot.
func (e *Exporter) Export(ctx context.Context, g *graph.Graph, snapshot string) (Stats, error) {
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: e.cfg.Database,
	})
	defer session.Close(ctx)

	for _, c := range constraints {
		res, err := session.Run(ctx, c, nil)
		if err == nil {
			_, err = res.Consume(ctx)
		}
		if err != nil {
			return Stats{}, fmt.Errorf("create constraint: %w", err)
		}
	}

	positions := Positions(g)
	stats := Stats{Positions: len(positions)}

	for n, batch := range batches(positions, e.cfg.BatchSize) {
		counters, err := e.write(ctx, session, upsertPositions, map[string]any{
			"positions": params(batch),
			"snapshot":  snapshot,
		})
		if err != nil {
			return stats, fmt.Errorf("write batch %d: %w", n, err)
		}
		stats.NodesCreated += counters.NodesCreated()
		stats.RelationshipsCreated += counters.RelationshipsCreated()

		e.logger.Debug("graph batch written", zap.Int("batch", n), zap.Int("positions", len(batch)))
	}

	if e.cfg.Prune {
		counters, err := e.write(ctx, session, pruneStale, map[string]any{"snapshot": snapshot})
		if err != nil {
			return stats, fmt.Errorf("prune stale positions: %w", err)
		}
		stats.NodesDeleted = counters.NodesDeleted()
	}

	e.logger.Info("graph exported",
		zap.String("snapshot", snapshot),
		zap.Int("positions", stats.Positions),
		zap.Int("nodes_created", stats.NodesCreated),
		zap.Int("relationships_created", stats.RelationshipsCreated),
		zap.Int("nodes_deleted", stats.NodesDeleted),
	)
	return stats, nil
}

func (e *Exporter) write(ctx context.Context, session neo4j.SessionWithContext, query string, p map[string]any) (neo4j.Counters, error) {
	res, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, p)
		if err != nil {
			return nil, err
		}
		summary, err := result.Consume(ctx)
		if err != nil {
			return nil, err
		}
		return summary.Counters(), nil
	})
	if err != nil {
		return nil, err
	}
	return res.(neo4j.Counters), nil
}

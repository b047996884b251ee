package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"math"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tracelens/investigation-engine/pkg/models"
)

// schemaSQL is compiled into the binary at build time so schema init works
// inside the runtime image without shipping the .sql file.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore persists node positions and analysis outputs. Every write is
// best-effort telemetry for the case UI: callers log failures and move on,
// nothing is retried and the in-memory graph is never rolled back.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool using pgx.
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}
	log.Println("Successfully connected to PostgreSQL for investigation engine")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema executes the embedded DDL.
func (s *PostgresStore) InitSchema() error {
	_, err := s.pool.Exec(context.Background(), schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}
	log.Println("Investigation graph schema initialized")
	return nil
}

// SavePositions upserts the position rows for a case after a layout run or
// drag. Callers must pass only finite coordinates (State.FinitePositions).
func (s *PostgresStore) SavePositions(ctx context.Context, caseID, layoutName string, positions models.PositionMap) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sql := `
		INSERT INTO node_positions (case_id, node_id, x, y, layout_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (case_id, node_id) DO UPDATE
		SET x = EXCLUDED.x, y = EXCLUDED.y, layout_name = EXCLUDED.layout_name, updated_at = NOW();
	`
	for nodeID, p := range positions {
		if _, err := tx.Exec(ctx, sql, caseID, nodeID, p.X, p.Y, layoutName); err != nil {
			return fmt.Errorf("failed to upsert position for %s: %v", nodeID, err)
		}
	}
	return tx.Commit(ctx)
}

// SaveClassifications replaces the classification rows for a case. The map is
// recomputed wholesale by the engine, so the rows are too.
func (s *PostgresStore) SaveClassifications(ctx context.Context, caseID string, classifications map[string]models.AccountClassification) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM account_classifications WHERE case_id = $1`, caseID); err != nil {
		return err
	}

	sql := `
		INSERT INTO account_classifications
			(case_id, account_id, classification, confidence, total_in, total_out,
			 incoming_count, outgoing_count, forward_ratio, time_to_forward_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`
	for _, c := range classifications {
		ttf := any(c.TimeToForwardHours)
		if math.IsInf(c.TimeToForwardHours, 0) || math.IsNaN(c.TimeToForwardHours) {
			ttf = nil // +Inf means "never forwarded", stored as NULL
		}
		if _, err := tx.Exec(ctx, sql, caseID, c.AccountID, c.Classification, c.Confidence,
			c.TotalIn, c.TotalOut, c.IncomingCount, c.OutgoingCount, c.ForwardRatio, ttf); err != nil {
			return fmt.Errorf("failed to insert classification for %s: %v", c.AccountID, err)
		}
	}
	return tx.Commit(ctx)
}

// SavePatternReport appends alert rows for every detected pattern.
func (s *PostgresStore) SavePatternReport(ctx context.Context, caseID string, report models.PatternReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sql := `
		INSERT INTO pattern_alerts (case_id, pattern, account_id, severity, detail)
		VALUES ($1, $2, $3, $4, $5);
	`
	for _, r := range report.RapidForwards {
		detail, _ := json.Marshal(r)
		if _, err := tx.Exec(ctx, sql, caseID, "rapid_forward", r.AccountID, r.Severity, detail); err != nil {
			return err
		}
	}
	for _, p := range report.SplittingPatterns {
		detail, _ := json.Marshal(p)
		if _, err := tx.Exec(ctx, sql, caseID, "splitting", p.SourceID, p.Severity, detail); err != nil {
			return err
		}
	}
	for _, c := range report.CircularFlows {
		detail, _ := json.Marshal(c)
		accountID := ""
		if len(c.Path) > 0 {
			accountID = c.Path[0]
		}
		if _, err := tx.Exec(ctx, sql, caseID, "circular_flow", accountID, "high", detail); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

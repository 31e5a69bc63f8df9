package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/credit-engine/internal/stats"
	"github.com/rawblock/credit-engine/pkg/models"
)

// schemaSQL is compiled into the binary at build time.
// This ensures schema init works inside the Docker runtime image which
// does not copy internal/db/schema.sql into the final stage.
//
//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL for Credit Engine")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema executes the embedded schema.sql DDL statements.
func (s *PostgresStore) InitSchema() error {
	_, err := s.pool.Exec(context.Background(), schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("Credit scoring schema initialized")
	return nil
}

// GetPool exposes the connection pool for the metrics collector and other
// subsystems
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}

// RunRecord is the persisted summary of one scoring run.
type RunRecord struct {
	ID             uuid.UUID `json:"id"`
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
	DurationMs     int64     `json:"durationMs"`
	TotalRecords   int       `json:"totalRecords"`
	DroppedRecords int       `json:"droppedRecords"`
	WalletCount    int       `json:"walletCount"`
}

// WalletScoreRow is one wallet's score in one run, for history queries.
type WalletScoreRow struct {
	RunID         uuid.UUID `json:"runId"`
	ScoredAt      time.Time `json:"scoredAt"`
	RawScore      float64   `json:"rawScore"`
	CreditScore   int       `json:"creditScore"`
	RiskCategory  string    `json:"riskCategory"`
	WalletAddress string    `json:"walletAddress"`
}

// SaveRun persists a run summary, every wallet score and the analysis
// document in one transaction.
func (s *PostgresStore) SaveRun(ctx context.Context, run RunRecord, scores []models.ScoredWallet, analysis models.AnalysisResult) error {
	// 1. Begin Transaction
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// 2. Insert the run summary row
	insertRunSQL := `
		INSERT INTO scoring_runs
			(id, started_at, finished_at, duration_ms, total_records, dropped_records, wallet_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err = tx.Exec(ctx, insertRunSQL,
		run.ID, run.StartedAt, run.FinishedAt, run.DurationMs,
		run.TotalRecords, run.DroppedRecords, run.WalletCount)
	if err != nil {
		return fmt.Errorf("failed to insert scoring run: %v", err)
	}

	// 3. Pipeline all wallet score inserts in one batch round trip
	if len(scores) > 0 {
		insertScoreSQL := `
			INSERT INTO wallet_scores (run_id, wallet_address, raw_score, credit_score, risk_category)
			VALUES ($1, $2, $3, $4, $5);
		`
		batch := &pgx.Batch{}
		for _, sw := range scores {
			batch.Queue(insertScoreSQL, run.ID, sw.WalletAddress, sw.RawScore, sw.CreditScore, sw.RiskCategory)
		}
		br := tx.SendBatch(ctx, batch)
		for range scores {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("failed to insert wallet score: %v", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to close score batch: %v", err)
		}
	}

	// 4. Store the analysis document as JSONB
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %v", err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO run_analysis (run_id, analysis) VALUES ($1, $2);`,
		run.ID, string(analysisJSON))
	if err != nil {
		return fmt.Errorf("failed to insert run analysis: %v", err)
	}

	// 5. Commit transaction
	return tx.Commit(ctx)
}

// GetRuns returns run summaries, newest first, with the total run count.
func (s *PostgresStore) GetRuns(ctx context.Context, page, limit int) ([]RunRecord, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	var totalCount int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scoring_runs`).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	dataSQL := `
		SELECT id, started_at, finished_at, duration_ms, total_records, dropped_records, wallet_count
		FROM scoring_runs
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.pool.Query(ctx, dataSQL, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	runs := make([]RunRecord, 0)
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.DurationMs,
			&r.TotalRecords, &r.DroppedRecords, &r.WalletCount); err != nil {
			return nil, 0, err
		}
		runs = append(runs, r)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return runs, totalCount, nil
}

// GetRun returns one run summary, or nil when the id is unknown.
func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	sql := `
		SELECT id, started_at, finished_at, duration_ms, total_records, dropped_records, wallet_count
		FROM scoring_runs WHERE id = $1
	`
	var r RunRecord
	err := s.pool.QueryRow(ctx, sql, id).Scan(&r.ID, &r.StartedAt, &r.FinishedAt,
		&r.DurationMs, &r.TotalRecords, &r.DroppedRecords, &r.WalletCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRunScores returns a run's wallet scores ordered by credit score
// descending, with the run's total wallet count.
func (s *PostgresStore) GetRunScores(ctx context.Context, runID uuid.UUID, page, limit int) ([]models.ScoredWallet, int, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	var totalCount int
	countSQL := `SELECT COUNT(*) FROM wallet_scores WHERE run_id = $1`
	if err := s.pool.QueryRow(ctx, countSQL, runID).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	dataSQL := `
		SELECT wallet_address, raw_score, credit_score, risk_category
		FROM wallet_scores
		WHERE run_id = $1
		ORDER BY credit_score DESC, id ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.pool.Query(ctx, dataSQL, runID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	scores := make([]models.ScoredWallet, 0)
	for rows.Next() {
		var sw models.ScoredWallet
		if err := rows.Scan(&sw.WalletAddress, &sw.RawScore, &sw.CreditScore, &sw.RiskCategory); err != nil {
			return nil, 0, err
		}
		scores = append(scores, sw)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return scores, totalCount, nil
}

// GetRunAnalysis returns the stored analysis document, or nil when the run
// is unknown.
func (s *PostgresStore) GetRunAnalysis(ctx context.Context, runID uuid.UUID) (*models.AnalysisResult, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT analysis FROM run_analysis WHERE run_id = $1`, runID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode stored analysis: %v", err)
	}
	return &result, nil
}

// GetWalletHistory returns a wallet's scores across runs, newest first.
func (s *PostgresStore) GetWalletHistory(ctx context.Context, address string, limit int) ([]WalletScoreRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	sql := `
		SELECT ws.run_id, r.started_at, ws.wallet_address, ws.raw_score, ws.credit_score, ws.risk_category
		FROM wallet_scores ws
		JOIN scoring_runs r ON r.id = ws.run_id
		WHERE ws.wallet_address = $1
		ORDER BY r.started_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, sql, address, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]WalletScoreRow, 0)
	for rows.Next() {
		var row WalletScoreRow
		if err := rows.Scan(&row.RunID, &row.ScoredAt, &row.WalletAddress,
			&row.RawScore, &row.CreditScore, &row.RiskCategory); err != nil {
			return nil, err
		}
		history = append(history, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return history, nil
}

// GetCategorySummary returns the risk category breakdown of the most
// recent run, in band order.
func (s *PostgresStore) GetCategorySummary(ctx context.Context) ([]models.CategoryCount, error) {
	sql := `
		SELECT risk_category, COUNT(*)
		FROM wallet_scores
		WHERE run_id = (SELECT id FROM scoring_runs ORDER BY started_at DESC LIMIT 1)
		GROUP BY risk_category
	`
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	total := 0
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		counts[category] = count
		total += count
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	summary := make([]models.CategoryCount, 0, len(counts))
	for _, category := range models.RiskCategoryOrder {
		count, ok := counts[category]
		if !ok {
			continue
		}
		pct := 0.0
		if total > 0 {
			pct = stats.Round2(float64(count) / float64(total) * 100)
		}
		summary = append(summary, models.CategoryCount{
			Category:   category,
			Count:      count,
			Percentage: pct,
		})
	}
	return summary, nil
}

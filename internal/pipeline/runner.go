// Package pipeline orchestrates one scoring run end to end: batch
// validation, normalization, per-wallet feature extraction, raw scoring,
// percentile calibration and population analysis. The runner tracks
// progress in atomics so the API can report on an in-flight run, and
// emits an optional observer callback on every stage transition.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/credit-engine/internal/analysis"
	"github.com/rawblock/credit-engine/internal/features"
	"github.com/rawblock/credit-engine/internal/ingest"
	"github.com/rawblock/credit-engine/internal/scoring"
	"github.com/rawblock/credit-engine/pkg/models"
)

// ErrBusy is returned when a run is requested while another is in flight.
// The runner processes one batch at a time.
var ErrBusy = errors.New("a scoring run is already in progress")

// Stage identifies the pipeline phase an in-flight run is in.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageNormalizing Stage = "normalizing"
	StageFeatures    Stage = "features"
	StageScoring     Stage = "scoring"
	StageCalibrating Stage = "calibrating"
	StageAnalyzing   Stage = "analyzing"
	StageComplete    Stage = "complete"
	StageFailed      Stage = "failed"
)

// Progress is a point-in-time snapshot of the runner's state for the
// progress endpoint and websocket broadcasts.
type Progress struct {
	IsRunning      bool   `json:"isRunning"`
	RunID          string `json:"runId,omitempty"`
	Stage          Stage  `json:"stage"`
	TotalRecords   int64  `json:"totalRecords"`
	DroppedRecords int64  `json:"droppedRecords"`
	WalletCount    int64  `json:"walletCount"`
	ScoredWallets  int64  `json:"scoredWallets"`
}

// Observer receives a progress snapshot on each stage transition.
type Observer func(p Progress)

// Result is the complete output of one scoring run.
type Result struct {
	RunID          uuid.UUID               `json:"runId"`
	StartedAt      time.Time               `json:"startedAt"`
	FinishedAt     time.Time               `json:"finishedAt"`
	DurationMs     int64                   `json:"durationMs"`
	TotalRecords   int                     `json:"totalRecords"`
	DroppedRecords int                     `json:"droppedRecords"`
	WalletCount    int                     `json:"walletCount"`
	Scores         []models.ScoredWallet   `json:"scores"`
	Analysis       models.AnalysisResult   `json:"analysis"`
	Features       []models.WalletFeatures `json:"-"`
}

// Runner executes scoring runs one at a time. A fresh scorer is built per
// run so a fixed seed reproduces identical scores across runs.
type Runner struct {
	newScorer func() scoring.Scorer
	workers   int
	observer  Observer

	// Progress tracking (atomic for safe concurrent reads)
	isRunning      atomic.Bool
	stage          atomic.Value // Stage
	runID          atomic.Value // string
	totalRecords   atomic.Int64
	droppedRecords atomic.Int64
	walletCount    atomic.Int64
	scoredWallets  atomic.Int64
}

func NewRunner(newScorer func() scoring.Scorer, workers int, observer Observer) *Runner {
	r := &Runner{
		newScorer: newScorer,
		workers:   workers,
		observer:  observer,
	}
	r.stage.Store(StageIdle)
	return r
}

// Progress returns the current run state (thread-safe).
func (r *Runner) Progress() Progress {
	stage, _ := r.stage.Load().(Stage)
	if stage == "" {
		stage = StageIdle
	}
	runID, _ := r.runID.Load().(string)
	return Progress{
		IsRunning:      r.isRunning.Load(),
		RunID:          runID,
		Stage:          stage,
		TotalRecords:   r.totalRecords.Load(),
		DroppedRecords: r.droppedRecords.Load(),
		WalletCount:    r.walletCount.Load(),
		ScoredWallets:  r.scoredWallets.Load(),
	}
}

// Run scores one batch synchronously and returns the full result.
func (r *Runner) Run(ctx context.Context, batch []models.RawTransaction) (*Result, error) {
	if !r.isRunning.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer r.isRunning.Store(false)
	return r.run(ctx, uuid.New(), batch)
}

// Start launches a background run and returns its id immediately. onDone
// receives the result (or error) when the run finishes.
func (r *Runner) Start(ctx context.Context, batch []models.RawTransaction, onDone func(*Result, error)) (uuid.UUID, error) {
	if !r.isRunning.CompareAndSwap(false, true) {
		return uuid.Nil, ErrBusy
	}
	runID := uuid.New()
	go func() {
		out, err := r.run(ctx, runID, batch)
		// Idle before onDone fires so a completion handler can start the
		// next run.
		r.isRunning.Store(false)
		if onDone != nil {
			onDone(out, err)
		}
	}()
	return runID, nil
}

func (r *Runner) run(ctx context.Context, runID uuid.UUID, batch []models.RawTransaction) (*Result, error) {
	started := time.Now()
	r.runID.Store(runID.String())
	r.totalRecords.Store(int64(len(batch)))
	r.droppedRecords.Store(0)
	r.walletCount.Store(0)
	r.scoredWallets.Store(0)

	log.Printf("[Pipeline] Run %s: scoring batch of %d records", runID, len(batch))

	// 1. Validate and normalize. Per-record problems drop silently; only
	//    a structurally unusable batch rejects the whole run.
	r.setStage(StageNormalizing)
	if err := ingest.ValidateBatch(batch); err != nil {
		r.setStage(StageFailed)
		return nil, fmt.Errorf("invalid batch: %v", err)
	}
	txs, dropped := ingest.Normalize(batch)
	r.droppedRecords.Store(int64(dropped))

	// 2. Per-wallet behavioral features.
	r.setStage(StageFeatures)
	feats, err := features.ExtractParallel(ctx, txs, r.workers)
	if err != nil {
		r.setStage(StageFailed)
		return nil, fmt.Errorf("feature extraction: %v", err)
	}
	r.walletCount.Store(int64(len(feats)))

	// 3. Raw scores, consumed in wallet order for seed reproducibility.
	r.setStage(StageScoring)
	raws := scoring.ScoreAll(r.newScorer(), feats)

	// 4. Percentile calibration to [0,1000].
	r.setStage(StageCalibrating)
	scored := scoring.Calibrate(feats, raws)
	r.scoredWallets.Store(int64(len(scored)))

	// 5. Population analysis.
	r.setStage(StageAnalyzing)
	out := &Result{
		RunID:          runID,
		StartedAt:      started,
		TotalRecords:   len(batch),
		DroppedRecords: dropped,
		WalletCount:    len(feats),
		Scores:         scored,
		Analysis:       analysis.Analyze(scored, feats),
		Features:       feats,
	}
	out.FinishedAt = time.Now()
	out.DurationMs = out.FinishedAt.Sub(started).Milliseconds()

	r.setStage(StageComplete)
	log.Printf("[Pipeline] Run %s complete: %d wallets scored from %d records (%d dropped) in %dms",
		runID, len(scored), len(batch), dropped, out.DurationMs)
	return out, nil
}

func (r *Runner) setStage(s Stage) {
	r.stage.Store(s)
	if r.observer != nil {
		r.observer(r.Progress())
	}
}

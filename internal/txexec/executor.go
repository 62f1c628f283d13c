// Package txexec wraps every state-changing ledger call with submission and
// confirmation budgets and resolves each call to exactly one terminal
// outcome. It never retries: resubmitting a state-changing call is not
// idempotent, so retry is a caller decision.
package txexec

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"faillapop/go-client/internal/platform/metrics"
	"faillapop/go-client/internal/provider"
	"faillapop/go-client/pkg/models"
)

type Stage string

const (
	StageSubmission   Stage = "submission"
	StageConfirmation Stage = "confirmation"
)

// SubmitFunc performs the synchronous submission path and returns the
// transaction handle once the call is accepted into the pending pool.
type SubmitFunc func(ctx context.Context) (string, error)

// Outcome is the single terminal result of one submitted intent.
type Outcome struct {
	Status models.TxStatus
	TxRef  string
	Stage  Stage  // set when Status is timedOut
	Reason string // remote revert reason, verbatim when present
	Err    error  // underlying failure, for diagnostics
}

// Message renders the outcome for the user. A timeout is an unknown
// outcome, never a hard failure: the call may still land on chain.
func (o Outcome) Message() string {
	switch o.Status {
	case models.StatusConfirmed:
		return "transaction confirmed"
	case models.StatusRejected:
		return "transaction was rejected in the wallet"
	case models.StatusReverted:
		if o.Reason != "" {
			return "transaction reverted: " + o.Reason
		}
		return "transaction reverted"
	case models.StatusTimedOut:
		return "transaction outcome unknown; it may still complete, check again later"
	case models.StatusUnreachable:
		return "wallet provider unreachable"
	default:
		return "transaction " + string(o.Status)
	}
}

// Budgets bounds the two independent waits of a transaction's lifecycle.
type Budgets struct {
	Submission   time.Duration
	Confirmation time.Duration
	PollInterval time.Duration
}

func DefaultBudgets() Budgets {
	return Budgets{
		Submission:   30 * time.Second,
		Confirmation: 60 * time.Second,
		PollInterval: 2 * time.Second,
	}
}

func (b Budgets) withDefaults() Budgets {
	d := DefaultBudgets()
	if b.Submission <= 0 {
		b.Submission = d.Submission
	}
	if b.Confirmation <= 0 {
		b.Confirmation = d.Confirmation
	}
	if b.PollInterval <= 0 {
		b.PollInterval = d.PollInterval
	}
	return b
}

type Executor struct {
	provider provider.Provider
	budgets  Budgets
	logger   *slog.Logger
	metrics  *metrics.Set

	mu      sync.Mutex
	pending map[string]models.PendingTransaction
}

func New(p provider.Provider, budgets Budgets, logger *slog.Logger, m *metrics.Set) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		provider: p,
		budgets:  budgets.withDefaults(),
		logger:   logger,
		metrics:  m,
		pending:  make(map[string]models.PendingTransaction),
	}
}

// Execute drives submit to a single terminal outcome. A stale pending
// attempt never blocks later intents: there is no per-account lock here,
// and nonce sequencing is the wallet's concern.
func (e *Executor) Execute(ctx context.Context, kind models.IntentKind, submit SubmitFunc) Outcome {
	entry := models.PendingTransaction{
		ID:          uuid.NewString(),
		Kind:        kind,
		SubmittedAt: time.Now(),
		Status:      models.StatusSubmitted,
	}
	e.mu.Lock()
	e.pending[entry.ID] = entry
	e.mu.Unlock()

	outcome := e.run(ctx, submit)

	e.mu.Lock()
	if cur, ok := e.pending[entry.ID]; ok && !cur.Status.Terminal() {
		cur.Status = outcome.Status
		cur.TxRef = outcome.TxRef
		e.pending[entry.ID] = cur
	}
	e.mu.Unlock()

	e.metrics.TxOutcome(string(kind), string(outcome.Status))
	e.logger.Info("transaction resolved",
		"intent", string(kind),
		"status", string(outcome.Status),
		"stage", string(outcome.Stage),
		"txRef", outcome.TxRef,
	)
	return outcome
}

func (e *Executor) run(ctx context.Context, submit SubmitFunc) Outcome {
	subCtx, cancel := context.WithTimeout(ctx, e.budgets.Submission)
	txRef, err := submit(subCtx)
	budgetExpired := subCtx.Err() != nil
	cancel()
	if err != nil {
		return classifySubmission(err, budgetExpired)
	}
	return e.awaitConfirmation(ctx, txRef)
}

func (e *Executor) awaitConfirmation(ctx context.Context, txRef string) Outcome {
	confCtx, cancel := context.WithTimeout(ctx, e.budgets.Confirmation)
	defer cancel()

	ticker := time.NewTicker(e.budgets.PollInterval)
	defer ticker.Stop()

	for {
		rcpt, err := e.receipt(confCtx, txRef)
		if err != nil {
			if confCtx.Err() != nil {
				return Outcome{Status: models.StatusTimedOut, Stage: StageConfirmation, TxRef: txRef, Err: confCtx.Err()}
			}
			return Outcome{Status: models.StatusUnreachable, TxRef: txRef, Err: err}
		}
		if rcpt != nil {
			if rcpt.ok() {
				return Outcome{Status: models.StatusConfirmed, TxRef: txRef}
			}
			return Outcome{Status: models.StatusReverted, TxRef: txRef}
		}
		select {
		case <-confCtx.Done():
			// The local wait is abandoned; the transaction may still land.
			return Outcome{Status: models.StatusTimedOut, Stage: StageConfirmation, TxRef: txRef, Err: confCtx.Err()}
		case <-ticker.C:
		}
	}
}

type receiptJSON struct {
	Status          string `json:"status"`
	TransactionHash string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber"`
}

func (r *receiptJSON) ok() bool {
	return r.Status == "0x1"
}

// receipt returns nil without error while the transaction is still pending.
func (e *Executor) receipt(ctx context.Context, txRef string) (*receiptJSON, error) {
	raw, err := e.provider.Request(ctx, provider.MethodGetTransactionReceipt, txRef)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var rcpt receiptJSON
	if err := json.Unmarshal(raw, &rcpt); err != nil {
		return nil, err
	}
	return &rcpt, nil
}

// Pending snapshots the transaction table, for diagnostics.
func (e *Executor) Pending() []models.PendingTransaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.PendingTransaction, 0, len(e.pending))
	for _, p := range e.pending {
		out = append(out, p)
	}
	return out
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/nezhub/backend/internal/apperr"
	"github.com/nezhub/backend/internal/config"
	"github.com/nezhub/backend/internal/repository"
)

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomePartialFailure means the primary write committed but the
	// secondary write did not.
	OutcomePartialFailure
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePartialFailure:
		return "partial_failure"
	default:
		return "failure"
	}
}

// WriteResult reports how a two-step write ended.
type WriteResult struct {
	Outcome  Outcome
	Err      error
	Attempts int // executions of the secondary step
}

// Step is one write against the store.
type Step func(ctx context.Context, store repository.Store) error

// UnitOfWork applies a primary write followed by a dependent secondary
// write. The secondary step must be idempotent.
type UnitOfWork interface {
	Run(ctx context.Context, primary, secondary Step) WriteResult
}

// NewUnitOfWork picks the runner for cfg.Mode.
func NewUnitOfWork(cfg config.UnitOfWorkConfig, store repository.Store) (UnitOfWork, error) {
	switch cfg.Mode {
	case "", "transaction":
		return &TxUnitOfWork{store: store}, nil
	case "saga":
		return NewSagaUnitOfWork(store, cfg.MaxRetries, cfg.InitialInterval, cfg.MaxInterval), nil
	default:
		return nil, fmt.Errorf("unsupported unit of work mode: %s", cfg.Mode)
	}
}

// TxUnitOfWork runs both steps in one database transaction.
type TxUnitOfWork struct {
	store repository.Store
}

func NewTxUnitOfWork(store repository.Store) *TxUnitOfWork {
	return &TxUnitOfWork{store: store}
}

func (u *TxUnitOfWork) Run(ctx context.Context, primary, secondary Step) WriteResult {
	err := u.store.Transaction(ctx, func(tx repository.Store) error {
		if err := primary(ctx, tx); err != nil {
			return err
		}
		return secondary(ctx, tx)
	})
	if err != nil {
		return WriteResult{Outcome: OutcomeFailure, Err: err, Attempts: 1}
	}
	return WriteResult{Outcome: OutcomeSuccess, Attempts: 1}
}

// SagaUnitOfWork commits the primary step on its own, then retries the
// secondary step with exponential backoff.
type SagaUnitOfWork struct {
	store           repository.Store
	maxTries        uint
	initialInterval time.Duration
	maxInterval     time.Duration
}

func NewSagaUnitOfWork(store repository.Store, maxRetries uint, initial, ceiling time.Duration) *SagaUnitOfWork {
	if initial <= 0 {
		initial = 50 * time.Millisecond
	}
	if ceiling < initial {
		ceiling = initial
	}
	return &SagaUnitOfWork{
		store:           store,
		maxTries:        maxRetries + 1,
		initialInterval: initial,
		maxInterval:     ceiling,
	}
}

func (u *SagaUnitOfWork) Run(ctx context.Context, primary, secondary Step) WriteResult {
	if err := primary(ctx, u.store); err != nil {
		return WriteResult{Outcome: OutcomeFailure, Err: err}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = u.initialInterval
	b.MaxInterval = u.maxInterval

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := secondary(ctx, u.store)
		if err != nil && !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(u.maxTries))

	if err != nil {
		return WriteResult{Outcome: OutcomePartialFailure, Err: err, Attempts: attempts}
	}
	return WriteResult{Outcome: OutcomeSuccess, Attempts: attempts}
}

// retryable reports whether a failed secondary step may succeed on retry.
// Domain errors and missing records are deterministic.
func retryable(err error) bool {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return false
	}
	return !errors.Is(err, repository.ErrNotFound)
}

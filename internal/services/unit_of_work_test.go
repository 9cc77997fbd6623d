package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nezhub/backend/internal/apperr"
	"github.com/nezhub/backend/internal/config"
	"github.com/nezhub/backend/internal/repository"
)

func noop(context.Context, repository.Store) error { return nil }

func failN(n int, err error, calls *int) Step {
	return func(context.Context, repository.Store) error {
		*calls++
		if *calls <= n {
			return err
		}
		return nil
	}
}

func TestNewUnitOfWork(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		mode    string
		want    string
		wantErr bool
	}{
		{"", "tx", false},
		{"transaction", "tx", false},
		{"saga", "saga", false},
		{"two-phase", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			uow, err := NewUnitOfWork(config.UnitOfWorkConfig{Mode: tt.mode, MaxRetries: 2}, store)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error for an unknown mode")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewUnitOfWork() error = %v", err)
			}
			switch uow.(type) {
			case *TxUnitOfWork:
				if tt.want != "tx" {
					t.Errorf("got TxUnitOfWork, expected %s", tt.want)
				}
			case *SagaUnitOfWork:
				if tt.want != "saga" {
					t.Errorf("got SagaUnitOfWork, expected %s", tt.want)
				}
			}
		})
	}
}

func TestTxUnitOfWork_Success(t *testing.T) {
	uow := NewTxUnitOfWork(newTestStore(t))

	res := uow.Run(context.Background(), noop, noop)
	if res.Outcome != OutcomeSuccess || res.Err != nil {
		t.Errorf("Run() = %+v, expected success", res)
	}
}

func TestTxUnitOfWork_SecondaryFailureIsFailure(t *testing.T) {
	uow := NewTxUnitOfWork(newTestStore(t))
	calls := 0

	res := uow.Run(context.Background(), noop, failN(1, errInjected, &calls))
	if res.Outcome != OutcomeFailure {
		t.Errorf("Outcome = %s, expected failure", res.Outcome)
	}
	if !errors.Is(res.Err, errInjected) {
		t.Errorf("Err = %v, expected the injected error", res.Err)
	}
	if calls != 1 {
		t.Errorf("secondary ran %d times, expected 1", calls)
	}
}

func TestSagaUnitOfWork_RetriesSecondary(t *testing.T) {
	uow := NewSagaUnitOfWork(newTestStore(t), 3, time.Millisecond, 2*time.Millisecond)
	calls := 0

	res := uow.Run(context.Background(), noop, failN(2, errInjected, &calls))
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("Outcome = %s, expected success after retries (err: %v)", res.Outcome, res.Err)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, expected 3", res.Attempts)
	}
}

func TestSagaUnitOfWork_ExhaustedRetriesArePartial(t *testing.T) {
	uow := NewSagaUnitOfWork(newTestStore(t), 2, time.Millisecond, 2*time.Millisecond)
	calls := 0

	res := uow.Run(context.Background(), noop, failN(10, errInjected, &calls))
	if res.Outcome != OutcomePartialFailure {
		t.Fatalf("Outcome = %s, expected partial_failure", res.Outcome)
	}
	if res.Attempts != 3 || calls != 3 {
		t.Errorf("Attempts = %d, calls = %d, expected 3", res.Attempts, calls)
	}
	if !errors.Is(res.Err, errInjected) {
		t.Errorf("Err = %v, expected the injected error", res.Err)
	}
}

func TestSagaUnitOfWork_PrimaryFailureSkipsSecondary(t *testing.T) {
	uow := NewSagaUnitOfWork(newTestStore(t), 2, time.Millisecond, 2*time.Millisecond)
	calls := 0

	res := uow.Run(context.Background(), failN(1, errInjected, new(int)), failN(0, nil, &calls))
	if res.Outcome != OutcomeFailure {
		t.Errorf("Outcome = %s, expected failure", res.Outcome)
	}
	if calls != 0 {
		t.Errorf("secondary ran %d times after a failed primary", calls)
	}
}

func TestSagaUnitOfWork_DomainErrorsAreNotRetried(t *testing.T) {
	uow := NewSagaUnitOfWork(newTestStore(t), 5, time.Millisecond, 2*time.Millisecond)

	for _, err := range []error{apperr.NotFound("project p1 not found"), repository.ErrNotFound} {
		calls := 0
		res := uow.Run(context.Background(), noop, failN(10, err, &calls))
		if res.Outcome != OutcomePartialFailure {
			t.Errorf("Outcome = %s, expected partial_failure", res.Outcome)
		}
		if calls != 1 {
			t.Errorf("secondary ran %d times for %v, expected no retry", calls, err)
		}
	}
}

func TestOutcome_String(t *testing.T) {
	tests := map[Outcome]string{
		OutcomeSuccess:        "success",
		OutcomePartialFailure: "partial_failure",
		OutcomeFailure:        "failure",
	}
	for outcome, want := range tests {
		if got := outcome.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, expected %q", outcome, got, want)
		}
	}
}

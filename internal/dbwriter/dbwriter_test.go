package dbwriter

import (
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsWithinBudget(t *testing.T) {
	w := &Writer{retries: 3, delay: time.Millisecond}
	attempts := 0
	err := w.retry(func() error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRetry_ExhaustsAndReturnsLastError(t *testing.T) {
	w := &Writer{retries: 3, delay: time.Millisecond}
	attempts := 0
	wantErr := errors.New("permanent")
	err := w.retry(func() error {
		attempts++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_ZeroRetriesStillAttemptsOnce(t *testing.T) {
	w := &Writer{retries: 0, delay: time.Millisecond}
	attempts := 0
	err := w.retry(func() error {
		attempts++
		return nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestWriter_EnqueueAndClose(t *testing.T) {
	w := &Writer{ops: make(chan Op, 1), retries: 1, onFatal: func(error) {}}
	w.Enqueue(Op{Kind: ConnectionLogWrite})
	w.Close()
	count := 0
	for range w.ops {
		count++
	}
	if count != 1 {
		t.Errorf("drained %d ops, want 1", count)
	}
}

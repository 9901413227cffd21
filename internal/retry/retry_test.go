package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"vaultFees/internal/model"
)

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("call: %w", model.ErrHeightUnavailable)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoGivesUp(t *testing.T) {
	calls := 0
	boom := errors.New("timeout")
	err := Do(context.Background(), 2, time.Millisecond, func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoStopsOnPermanentErrors(t *testing.T) {
	for _, perm := range []error{
		fmt.Errorf("vault: %w", model.ErrUnsupportedVersion),
		&model.StructuralError{Op: "split", Detail: "entry not found"},
	} {
		calls := 0
		err := Do(context.Background(), 5, time.Millisecond, func(context.Context) error {
			calls++
			return perm
		})
		if err == nil || calls != 1 {
			t.Fatalf("%v: expected a single failed call, got %d calls and err %v", perm, calls, err)
		}
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, 5, time.Hour, func(context.Context) error {
		return errors.New("timeout")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

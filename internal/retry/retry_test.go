package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errTransient = errors.New("temporary failure")
	errPermanent = errors.New("invalid request")
)

func transientOnly(err error) bool {
	return errors.Is(err, errTransient)
}

func TestSessionCreatePolicy(t *testing.T) {
	p := SessionCreate()
	if p.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", p.MaxAttempts)
	}
	if p.Delay != 2*time.Second {
		t.Errorf("expected 2s delay, got %v", p.Delay)
	}
}

func TestExecuteSuccessAfterRetries(t *testing.T) {
	policy := Policy{MaxAttempts: 3, Delay: time.Millisecond}
	calls := 0

	err := policy.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}, transientOnly)

	if err != nil {
		t.Errorf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestExecuteNonRetryable(t *testing.T) {
	policy := Policy{MaxAttempts: 3, Delay: time.Millisecond}
	calls := 0

	err := policy.Execute(context.Background(), func(context.Context) error {
		calls++
		return errPermanent
	}, transientOnly)

	if !errors.Is(err, errPermanent) {
		t.Errorf("expected permanent error, got %v", err)
	}
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		t.Error("non-retryable failure should not report exhaustion")
	}
	if calls != 1 {
		t.Errorf("expected 1 call for non-retryable error, got %d", calls)
	}
}

func TestExecuteAllFail(t *testing.T) {
	policy := Policy{MaxAttempts: 2, Delay: time.Millisecond}
	calls := 0

	err := policy.Execute(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	}, transientOnly)

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 2 {
		t.Errorf("expected 2 attempts recorded, got %d", exhausted.Attempts)
	}
	if !errors.Is(err, errTransient) {
		t.Error("ExhaustedError should unwrap to the last error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestExecuteFixedDelay(t *testing.T) {
	policy := Policy{MaxAttempts: 3, Delay: 20 * time.Millisecond}
	var stamps []time.Time

	_ = policy.Execute(context.Background(), func(context.Context) error {
		stamps = append(stamps, time.Now())
		return errTransient
	}, transientOnly)

	if len(stamps) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(stamps))
	}
	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap < policy.Delay {
			t.Errorf("gap before attempt %d = %v, want >= %v", i+1, gap, policy.Delay)
		}
	}
}

func TestExecuteCancelledDuringDelay(t *testing.T) {
	policy := Policy{MaxAttempts: 3, Delay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	done := make(chan error, 1)
	go func() {
		done <- policy.Execute(ctx, func(context.Context) error {
			calls++
			return errTransient
		}, transientOnly)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if !errors.Is(err, errTransient) {
			t.Errorf("expected last attempt error to be kept, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Execute did not observe cancellation")
	}

	if calls != 1 {
		t.Errorf("expected no attempts after cancellation, got %d calls", calls)
	}
}

func TestExecuteZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Policy{}.Execute(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	}, transientOnly)

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestPolicyBound(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		per    time.Duration
		want   time.Duration
	}{
		{"session create", SessionCreate(), 15 * time.Second, 49 * time.Second},
		{"single attempt", Policy{MaxAttempts: 1, Delay: time.Second}, 5 * time.Second, 5 * time.Second},
		{"zero attempts", Policy{Delay: time.Second}, 5 * time.Second, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Bound(tt.per); got != tt.want {
				t.Errorf("Bound() = %v, want %v", got, tt.want)
			}
		})
	}
}

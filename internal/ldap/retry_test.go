package ldap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// fixedSelector always returns the same endpoint.
type fixedSelector struct{ endpoint string }

func (s fixedSelector) Next() string { return s.endpoint }

// newTestExecutor builds an executor with an instrumented sleep that records
// backoff delays instead of waiting.
func newTestExecutor(policy Policy, delays *[]time.Duration) *Executor {
	e := NewExecutor(fixedSelector{endpoint: "dc1"}, policy, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.sleep = func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		*delays = append(*delays, d)
		return nil
	}
	return e
}

func retryableErr() error {
	return &OpError{Op: "search", Category: CategoryConnection, Retryable: true, Err: errors.New("connection refused")}
}

func TestPolicyBackoff(t *testing.T) {
	p := Policy{MaxAttempts: 10, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 6 * time.Second},
		{15, 30 * time.Second},
		{100, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExecutorSucceedsAfterTransientFailures(t *testing.T) {
	var delays []time.Duration
	e := newTestExecutor(Policy{MaxAttempts: 5, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}, &delays)

	calls := 0
	err := e.Do(context.Background(), "search", func(ctx context.Context, endpoint string) error {
		calls++
		if calls < 4 {
			return retryableErr()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if calls != 4 {
		t.Errorf("operation ran %d times, want 4", calls)
	}

	want := []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("recorded %d delays %v, want %d", len(delays), delays, len(want))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestExecutorExhaustsAttempts(t *testing.T) {
	var delays []time.Duration
	e := newTestExecutor(Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}, &delays)

	calls := 0
	err := e.Do(context.Background(), "search", func(ctx context.Context, endpoint string) error {
		calls++
		return retryableErr()
	})

	var ue *UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("Do() = %v, want *UnavailableError", err)
	}
	if ue.Attempts != 3 {
		t.Errorf("UnavailableError.Attempts = %d, want 3", ue.Attempts)
	}
	if calls != 3 {
		t.Errorf("operation ran %d times, want 3", calls)
	}
	if !IsUnavailable(err) {
		t.Errorf("IsUnavailable() = false, want true")
	}
	// No sleep after the final attempt.
	if len(delays) != 2 {
		t.Errorf("recorded %d delays, want 2", len(delays))
	}
}

func TestExecutorDelayCappedAtMax(t *testing.T) {
	var delays []time.Duration
	e := newTestExecutor(Policy{MaxAttempts: 20, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}, &delays)

	_ = e.Do(context.Background(), "search", func(ctx context.Context, endpoint string) error {
		return retryableErr()
	})

	for i, d := range delays {
		if d > 30*time.Second {
			t.Errorf("delay %d = %v exceeds cap", i, d)
		}
	}
	if last := delays[len(delays)-1]; last != 30*time.Second {
		t.Errorf("final delay = %v, want cap of 30s", last)
	}
}

func TestExecutorNonRetryableStopsImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found sentinel", ErrNotFound},
		{"malformed request sentinel", ErrMalformedRequest},
		{
			"invalid credentials code",
			&ldap.Error{ResultCode: ldap.LDAPResultInvalidCredentials, Err: errors.New("invalid credentials")},
		},
		{
			"permission error",
			&OpError{Op: "modify", Category: CategoryPermission, Retryable: false, Err: errors.New("access denied")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var delays []time.Duration
			e := newTestExecutor(Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second}, &delays)

			calls := 0
			err := e.Do(context.Background(), "op", func(ctx context.Context, endpoint string) error {
				calls++
				return tt.err
			})
			if !errors.Is(err, tt.err) {
				t.Fatalf("Do() = %v, want %v", err, tt.err)
			}
			if calls != 1 {
				t.Errorf("operation ran %d times, want 1", calls)
			}
			if len(delays) != 0 {
				t.Errorf("recorded %d delays, want none", len(delays))
			}
			if IsUnavailable(err) {
				t.Errorf("non-retryable error classified as unavailability")
			}
		})
	}
}

func TestExecutorCancellationDuringBackoff(t *testing.T) {
	e := NewExecutor(fixedSelector{endpoint: "dc1"}, Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	e.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	calls := 0
	err := e.Do(ctx, "search", func(ctx context.Context, endpoint string) error {
		calls++
		return retryableErr()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("operation ran %d times, want 1", calls)
	}
}

func TestExecutorCancelledBeforeFirstAttempt(t *testing.T) {
	var delays []time.Duration
	e := newTestExecutor(DefaultPolicy(), &delays)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := e.Do(ctx, "search", func(ctx context.Context, endpoint string) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("operation ran %d times after cancellation, want 0", calls)
	}
}

func TestExecutorAttemptObserver(t *testing.T) {
	var delays []time.Duration
	e := newTestExecutor(Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}, &delays)

	type attempt struct {
		op     string
		n      int
		failed bool
	}
	var observed []attempt
	e.SetAttemptObserver(func(op string, n int, err error) {
		observed = append(observed, attempt{op: op, n: n, failed: err != nil})
	})

	calls := 0
	_ = e.Do(context.Background(), "search", func(ctx context.Context, endpoint string) error {
		calls++
		if calls == 1 {
			return retryableErr()
		}
		return nil
	})

	want := []attempt{{"search", 1, true}, {"search", 2, false}}
	if len(observed) != len(want) {
		t.Fatalf("observed %d attempts, want %d", len(observed), len(want))
	}
	for i := range want {
		if observed[i] != want[i] {
			t.Errorf("attempt %d = %+v, want %+v", i, observed[i], want[i])
		}
	}
}

func TestExecuteReturnsValue(t *testing.T) {
	var delays []time.Duration
	e := newTestExecutor(Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}, &delays)

	calls := 0
	got, err := Execute(context.Background(), e, "find_user", func(ctx context.Context, endpoint string) (string, error) {
		calls++
		if calls == 1 {
			return "", retryableErr()
		}
		return "jdoe", nil
	})
	if err != nil {
		t.Fatalf("Execute() = %v, want nil", err)
	}
	if got != "jdoe" {
		t.Errorf("Execute() value = %q, want %q", got, "jdoe")
	}
}

func TestExecuteZeroValueOnFailure(t *testing.T) {
	var delays []time.Duration
	e := newTestExecutor(Policy{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: 30 * time.Second}, &delays)

	got, err := Execute(context.Background(), e, "find_user", func(ctx context.Context, endpoint string) (string, error) {
		return "partial", retryableErr()
	})
	if err == nil {
		t.Fatal("Execute() error = nil, want unavailability")
	}
	if got != "" {
		t.Errorf("Execute() value = %q, want zero value", got)
	}
}

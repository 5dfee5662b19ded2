package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingSleep struct{ delays []time.Duration }

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.MaxRetries != 2 || p.BaseDelay != time.Second {
		t.Fatalf("default policy = %+v", p)
	}
	if p.Attempts() != 3 {
		t.Fatalf("attempts = %d, want 3", p.Attempts())
	}
	want := []time.Duration{0, time.Second, 2 * time.Second, 4 * time.Second}
	for n, d := range want {
		if got := p.Delay(n); got != d {
			t.Errorf("delay(%d) = %v, want %v", n, got, d)
		}
	}
}

func TestNewPolicyFallbacks(t *testing.T) {
	p := NewPolicy(-1, 0)
	if p != DefaultPolicy() {
		t.Errorf("policy = %+v, want defaults", p)
	}
	p = NewPolicy(0, 50*time.Millisecond)
	if p.Attempts() != 1 || p.BaseDelay != 50*time.Millisecond {
		t.Errorf("policy = %+v", p)
	}
	if err := (Policy{BaseDelay: 0}).Validate(); err == nil {
		t.Error("zero base delay should fail validation")
	}
}

func TestExecute_FailsTwiceThenSucceeds(t *testing.T) {
	rec := &recordingSleep{}
	h := New(DefaultPolicy(), WithSleep(rec.sleep))

	calls := 0
	res := h.Execute(context.Background(), func(context.Context, int) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if !res.Success || res.Attempts != 3 {
		t.Fatalf("result = %+v, want success after 3 attempts", res)
	}
	if len(res.Errors) != 2 {
		t.Errorf("errors = %v, want both failures retained", res.Errors)
	}
	if len(rec.delays) != 2 || rec.delays[0] != 1000*time.Millisecond || rec.delays[1] != 2000*time.Millisecond {
		t.Errorf("sleep delays = %v, want [1s 2s]", rec.delays)
	}
	if res.Err() != nil {
		t.Errorf("Err() = %v on success", res.Err())
	}
}

func TestExecute_Exhausted(t *testing.T) {
	rec := &recordingSleep{}
	var observed []int
	h := New(DefaultPolicy(), WithSleep(rec.sleep), WithObserver(func(a int, _ error) { observed = append(observed, a) }))

	sentinel := errors.New("always")
	res := h.Execute(context.Background(), func(context.Context, int) error { return sentinel })

	if res.Success || res.Attempts != 3 || len(res.Errors) != 3 {
		t.Fatalf("result = %+v", res)
	}
	if len(rec.delays) != 2 {
		t.Errorf("slept %d times, want 2", len(rec.delays))
	}
	if len(observed) != 3 {
		t.Errorf("observer calls = %v", observed)
	}
	err := res.Err()
	var ex *ExhaustedError
	if !errors.As(err, &ex) || ex.Attempts != 3 {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(err, sentinel) {
		t.Error("exhausted error does not expose attempt errors")
	}
}

func TestExecute_PermanentStopsImmediately(t *testing.T) {
	rec := &recordingSleep{}
	h := New(DefaultPolicy(), WithSleep(rec.sleep))
	notFound := errors.New("404")

	res := h.Execute(context.Background(), func(context.Context, int) error { return Permanent(notFound) })
	if res.Attempts != 1 || len(rec.delays) != 0 {
		t.Errorf("attempts = %d, sleeps = %d", res.Attempts, len(rec.delays))
	}
	if !errors.Is(res.Err(), notFound) {
		t.Errorf("err = %v", res.Err())
	}
}

func TestExecute_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New(DefaultPolicy(), WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))
	res := h.Execute(ctx, func(context.Context, int) error { return errors.New("x") })
	if res.Success || res.Attempts != 1 {
		t.Errorf("result = %+v", res)
	}
	if !errors.Is(res.Err(), context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", res.Err())
	}
}

func TestSleep_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if err := Sleep(context.Background(), 0); err != nil {
		t.Errorf("zero sleep err = %v", err)
	}
}

package deploy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock"
	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/morezero/inference-client/pkg/apierr"
	"github.com/morezero/inference-client/pkg/backoff"
	"github.com/morezero/inference-client/pkg/events"
	"github.com/morezero/inference-client/pkg/ref"
	"github.com/morezero/inference-client/pkg/transport"
)

const driverTestPrefix = "deploy:driver_test"

// fakeClock advances its own time by every delay it is asked to wait.
type fakeClock struct {
	clock.Clock

	mu     sync.Mutex
	now    time.Time
	waited []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.waited = append(c.waited, d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// blockingClock never fires.
type blockingClock struct{ clock.Clock }

func (blockingClock) Now() time.Time                       { return time.Unix(0, 0) }
func (blockingClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

var testOp = Op{
	Name:      "Model Predict",
	Operation: transport.OpPredict,
	Resource:  ref.Ref{UserID: "meta", AppID: "Llama-3", Kind: ref.KindModel, ResourceID: "llama-3-8b"},
}

// scripted returns the given status codes in order, repeating the last one.
func scripted(codes ...int) (AttemptFunc, *int) {
	calls := 0
	return func(context.Context) (*transport.Response, error) {
		code := codes[len(codes)-1]
		if calls < len(codes) {
			code = codes[calls]
		}
		calls++
		return &transport.Response{ID: "r", Status: transport.Status{Code: code, Description: "status"}}, nil
	}, &calls
}

func TestCall_SuccessFirstAttempt(t *testing.T) {
	clk := newFakeClock()
	d := &Driver{Clock: clk}
	attempt, calls := scripted(transport.StatusSuccess)

	resp, err := d.Call(context.Background(), testOp, attempt)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", driverTestPrefix, err)
	}
	if resp.Status.Code != transport.StatusSuccess || *calls != 1 {
		t.Errorf("%s - resp=%+v calls=%d", driverTestPrefix, resp, *calls)
	}
	if len(clk.waited) != 0 {
		t.Errorf("%s - should not wait on success, waited %v", driverTestPrefix, clk.waited)
	}
}

func TestCall_RetriesWhileDeploying(t *testing.T) {
	clk := newFakeClock()
	var published []*events.DeployingEvent
	d := &Driver{
		Clock: clk,
		Publisher: events.NewCallbackPublisher(func(_ context.Context, e *events.DeployingEvent) error {
			published = append(published, e)
			return nil
		}),
	}
	attempt, calls := scripted(transport.StatusModelDeploying, transport.StatusModelDeploying, transport.StatusSuccess)

	if _, err := d.Call(context.Background(), testOp, attempt); err != nil {
		t.Fatalf("%s - unexpected error: %v", driverTestPrefix, err)
	}
	if *calls != 3 {
		t.Errorf("%s - calls = %d, want 3", driverTestPrefix, *calls)
	}
	want := []time.Duration{100 * time.Millisecond, 320 * time.Millisecond}
	if len(clk.waited) != len(want) || clk.waited[0] != want[0] || clk.waited[1] != want[1] {
		t.Errorf("%s - waited %v, want %v", driverTestPrefix, clk.waited, want)
	}
	if len(published) != 2 || published[1].Attempt != 1 || published[1].DelayMs != 320 || published[0].ResourceID != "llama-3-8b" {
		t.Errorf("%s - published %+v", driverTestPrefix, published)
	}
}

func TestCall_GivesUpAtCeiling(t *testing.T) {
	clk := newFakeClock()
	d := &Driver{Clock: clk}
	attempt, calls := scripted(transport.StatusModelDeploying)

	_, err := d.Call(context.Background(), testOp, attempt)
	if !errors.Is(err, apierr.ErrRemoteStatus) {
		t.Fatalf("%s - expected REMOTE_STATUS_FAILURE, got %v", driverTestPrefix, err)
	}
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("%s - expected *apierr.Error", driverTestPrefix)
	}
	st, ok := apiErr.Details.(transport.Status)
	if !ok || st.Code != transport.StatusModelDeploying {
		t.Errorf("%s - details = %#v, want the deploying status", driverTestPrefix, apiErr.Details)
	}

	// 0.1+0.32+...+10.24 = 20.26s over the first 7 waits, then 10.24s each
	// until the elapsed time first reaches 600s.
	if *calls != 65 {
		t.Errorf("%s - calls = %d, want 65", driverTestPrefix, *calls)
	}
	var total time.Duration
	for _, w := range clk.waited {
		total += w
	}
	if total < DefaultCeiling || total-backoff.Cap >= DefaultCeiling {
		t.Errorf("%s - total wait %v should first cross %v", driverTestPrefix, total, DefaultCeiling)
	}
}

func TestCall_CustomCeiling(t *testing.T) {
	clk := newFakeClock()
	d := &Driver{Clock: clk, Ceiling: time.Second}
	attempt, calls := scripted(transport.StatusModelDeploying)

	if _, err := d.Call(context.Background(), testOp, attempt); !errors.Is(err, apierr.ErrRemoteStatus) {
		t.Fatalf("%s - expected REMOTE_STATUS_FAILURE, got %v", driverTestPrefix, err)
	}
	// waits 0.1, 0.32, 0.64 reach 1.06s
	if *calls != 4 {
		t.Errorf("%s - calls = %d, want 4", driverTestPrefix, *calls)
	}
}

func TestCall_FailureStatusNotRetried(t *testing.T) {
	clk := newFakeClock()
	d := &Driver{Clock: clk}
	attempt, calls := scripted(21200)

	_, err := d.Call(context.Background(), testOp, attempt)
	if !errors.Is(err, apierr.ErrRemoteStatus) {
		t.Fatalf("%s - expected REMOTE_STATUS_FAILURE, got %v", driverTestPrefix, err)
	}
	if *calls != 1 {
		t.Errorf("%s - calls = %d, want 1", driverTestPrefix, *calls)
	}
	if want := "REMOTE_STATUS_FAILURE: Model Predict failed with response status"; err.Error() != want {
		t.Errorf("%s - message = %q, want %q", driverTestPrefix, err.Error(), want)
	}
}

func TestCall_TransportErrorNotRetried(t *testing.T) {
	clk := newFakeClock()
	d := &Driver{Clock: clk}
	cause := errors.New("connection reset")
	calls := 0

	_, err := d.Call(context.Background(), testOp, func(context.Context) (*transport.Response, error) {
		calls++
		return nil, cause
	})
	if !errors.Is(err, apierr.ErrTransport) || !errors.Is(err, cause) {
		t.Fatalf("%s - expected TRANSPORT_FAILURE wrapping cause, got %v", driverTestPrefix, err)
	}
	if calls != 1 {
		t.Errorf("%s - calls = %d, want 1", driverTestPrefix, calls)
	}
}

func TestCall_CancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Driver{
		Clock: blockingClock{},
		Publisher: events.NewCallbackPublisher(func(context.Context, *events.DeployingEvent) error {
			cancel()
			return nil
		}),
	}
	attempt, calls := scripted(transport.StatusModelDeploying)

	_, err := d.Call(ctx, testOp, attempt)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("%s - expected context.Canceled, got %v", driverTestPrefix, err)
	}
	if *calls != 1 {
		t.Errorf("%s - calls = %d, want 1", driverTestPrefix, *calls)
	}
}

func TestCall_TestClock(t *testing.T) {
	clk := testclock.NewClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	d := &Driver{Clock: clk}
	attempt, _ := scripted(transport.StatusModelDeploying, transport.StatusSuccess)

	done := make(chan error, 1)
	go func() {
		_, err := d.Call(context.Background(), testOp, attempt)
		done <- err
	}()

	if err := clk.WaitAdvance(backoff.First, 5*time.Second, 1); err != nil {
		t.Fatalf("%s - driver never waited: %v", driverTestPrefix, err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("%s - unexpected error: %v", driverTestPrefix, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - call did not finish after the clock advanced", driverTestPrefix)
	}
}

func TestCall_IndependentCallsDoNotShareBackoff(t *testing.T) {
	d := &Driver{}
	for i := 0; i < 2; i++ {
		clk := newFakeClock()
		d.Clock = clk
		attempt, _ := scripted(transport.StatusModelDeploying, transport.StatusSuccess)
		if _, err := d.Call(context.Background(), testOp, attempt); err != nil {
			t.Fatalf("%s - unexpected error: %v", driverTestPrefix, err)
		}
		if len(clk.waited) != 1 || clk.waited[0] != backoff.First {
			t.Errorf("%s - call %d waited %v, want [%v]", driverTestPrefix, i, clk.waited, backoff.First)
		}
	}
}

func TestCall_MetricsAndSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	reg := prometheus.NewRegistry()
	m := NewMetrics("inference", reg)
	d := &Driver{Clock: newFakeClock(), Metrics: m, Tracer: tp.Tracer("test")}
	attempt, _ := scripted(transport.StatusModelDeploying, transport.StatusModelDeploying, transport.StatusSuccess)

	if _, err := d.Call(context.Background(), testOp, attempt); err != nil {
		t.Fatalf("%s - unexpected error: %v", driverTestPrefix, err)
	}

	if got := testutil.ToFloat64(m.AttemptsTotal().WithLabelValues("Model Predict", OutcomeDeploying)); got != 2 {
		t.Errorf("%s - deploying attempts = %v, want 2", driverTestPrefix, got)
	}
	if got := testutil.ToFloat64(m.CallsTotal().WithLabelValues("Model Predict", OutcomeSuccess)); got != 1 {
		t.Errorf("%s - successful calls = %v, want 1", driverTestPrefix, got)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("%s - got %d spans, want 1", driverTestPrefix, len(spans))
	}
	if spans[0].Name() != "Model Predict" {
		t.Errorf("%s - span name = %q", driverTestPrefix, spans[0].Name())
	}
	if n := len(spans[0].Events()); n != 2 {
		t.Errorf("%s - span events = %d, want 2", driverTestPrefix, n)
	}
}

func TestCall_WaitsFollowBackoffSequence(t *testing.T) {
	clk := newFakeClock()
	d := &Driver{Clock: clk}
	codes := make([]int, 0, 10)
	for i := 0; i < 9; i++ {
		codes = append(codes, transport.StatusModelDeploying)
	}
	attempt, calls := scripted(append(codes, transport.StatusSuccess)...)

	if _, err := d.Call(context.Background(), testOp, attempt); err != nil {
		t.Fatalf("%s - unexpected error: %v", driverTestPrefix, err)
	}
	if *calls != 10 {
		t.Errorf("%s - calls = %d, want 10", driverTestPrefix, *calls)
	}
	if len(clk.waited) != 9 {
		t.Fatalf("%s - waited %d times, want 9", driverTestPrefix, len(clk.waited))
	}
	for i, w := range clk.waited {
		if w != backoff.Delay(i) {
			t.Errorf("%s - wait %d = %v, want %v", driverTestPrefix, i, w, backoff.Delay(i))
		}
	}
}

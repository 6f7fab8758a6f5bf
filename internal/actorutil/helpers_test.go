package actorutil

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/rotorgo/internal/baselib/actor"
)

// doubleRequest asks a doublerBehavior to double value.
type doubleRequest struct {
	actor.BaseMessage
	actor.RequestMeta
	value int
}

func (doubleRequest) MessageType() string { return "test_double_request" }

// doubleResponse answers a doubleRequest.
type doubleResponse struct {
	actor.BaseMessage
	actor.ResponseMeta
	value int
}

func (doubleResponse) MessageType() string { return "test_double_response" }

// doublerBehavior doubles whatever value it is asked with, optionally
// after a delay or by failing with a fixed error.
type doublerBehavior struct {
	delay    time.Duration
	failWith *actor.ExtendedError
	received *atomic.Int64
}

func newDoublerBehavior() *doublerBehavior {
	return &doublerBehavior{received: &atomic.Int64{}}
}

func (b *doublerBehavior) OnActorInit(core *actor.ActorCore) error {
	_, _ = core.Subscribe(actor.NewHandler[*doubleRequest](core.Address(),
		func(ctx context.Context, req *doubleRequest, sender *actor.Address) {
			b.received.Add(1)

			if b.delay > 0 {
				select {
				case <-time.After(b.delay):
				case <-ctx.Done():
					return
				}
			}

			if b.failWith != nil {
				actor.ReplyError(core, req, b.failWith)
				return
			}

			actor.Reply(core, req, func(meta actor.ResponseMeta) actor.Response {
				return &doubleResponse{ResponseMeta: meta, value: req.value * 2}
			})
		}))
	return nil
}

// testHarness wires a System, a goroutine-backed Loop, and one root
// Supervisor for a test to spawn actors against.
type testHarness struct {
	sys    *actor.System
	sup    *actor.Supervisor
	cancel context.CancelFunc
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	sys := actor.NewSystem(nil)
	loop := actor.NewGoroutineLoop()
	sup := actor.NewRootSupervisor(sys, loop, actor.DefaultSupervisorConfig())
	sup.Start(ctx)

	h := &testHarness{sys: sys, sup: sup, cancel: cancel}
	t.Cleanup(h.close)
	return h
}

func (h *testHarness) close() {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	h.sys.Shutdown(shutdownCtx, actor.NewExtendedError("test finished", actor.CodeUnknown))
	h.cancel()
}

func unpackDouble(t *testing.T, resp actor.Response, err error) (int, error) {
	t.Helper()
	if err != nil {
		return 0, err
	}
	d, ok := resp.(*doubleResponse)
	if !ok {
		t.Fatalf("unexpected response type %T", resp)
	}
	return d.value, nil
}

// TestAskAwait tests the AskAwait helper function.
func TestAskAwait(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	behavior := newDoublerBehavior()
	callee := h.sup.CreateActor("callee", behavior, actor.DefaultChildPolicy())
	caller := h.sup.CreateActor("caller", nil, actor.DefaultChildPolicy())

	ctx := context.Background()
	resp, err := AskAwait(ctx, caller, callee.Address(), time.Second,
		func(meta actor.RequestMeta) actor.Request {
			return &doubleRequest{RequestMeta: meta, value: 21}
		})

	val, err := unpackDouble(t, resp, err)
	if err != nil {
		t.Fatalf("AskAwait returned error: %v", err)
	}
	if val != 42 {
		t.Errorf("expected 42, got %d", val)
	}
	if behavior.received.Load() != 1 {
		t.Errorf("expected 1 received message, got %d", behavior.received.Load())
	}
}

// TestAskAwait_Error tests AskAwait when the actor replies with a failure.
func TestAskAwait_Error(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	behavior := newDoublerBehavior()
	behavior.failWith = actor.NewExtendedError("intentional failure", actor.CodeUnknown)

	callee := h.sup.CreateActor("callee", behavior, actor.DefaultChildPolicy())
	caller := h.sup.CreateActor("caller", nil, actor.DefaultChildPolicy())

	ctx := context.Background()
	_, err := AskAwait(ctx, caller, callee.Address(), time.Second,
		func(meta actor.RequestMeta) actor.Request {
			return &doubleRequest{RequestMeta: meta, value: 10}
		})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// TestAskAwait_ContextCancelled tests AskAwait with a cancelled context.
func TestAskAwait_ContextCancelled(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	behavior := newDoublerBehavior()
	behavior.delay = 100 * time.Millisecond

	callee := h.sup.CreateActor("callee", behavior, actor.DefaultChildPolicy())
	caller := h.sup.CreateActor("caller", nil, actor.DefaultChildPolicy())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := AskAwait(ctx, caller, callee.Address(), time.Second,
		func(meta actor.RequestMeta) actor.Request {
			return &doubleRequest{RequestMeta: meta, value: 10}
		})
	if err == nil {
		t.Fatal("expected error due to context cancellation")
	}
}

// TestAskAwaitTyped tests the AskAwaitTyped helper function.
func TestAskAwaitTyped(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	behavior := newDoublerBehavior()
	callee := h.sup.CreateActor("callee", behavior, actor.DefaultChildPolicy())
	caller := h.sup.CreateActor("caller", nil, actor.DefaultChildPolicy())

	ctx := context.Background()
	resp, err := AskAwaitTyped[*doubleResponse](ctx, caller, callee.Address(), time.Second,
		func(meta actor.RequestMeta) actor.Request {
			return &doubleRequest{RequestMeta: meta, value: 5}
		})
	if err != nil {
		t.Fatalf("AskAwaitTyped returned error: %v", err)
	}
	if resp.value != 10 {
		t.Errorf("expected 10, got %d", resp.value)
	}
}

// TestTellAll tests the TellAll helper function.
func TestTellAll(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	const numActors = 3
	behaviors := make([]*doublerBehavior, numActors)
	addrs := make([]*actor.Address, numActors)

	for i := 0; i < numActors; i++ {
		behaviors[i] = newDoublerBehavior()
		core := h.sup.CreateActor("tell-all", behaviors[i], actor.DefaultChildPolicy())
		addrs[i] = core.Address()
	}
	caller := h.sup.CreateActor("caller", nil, actor.DefaultChildPolicy())

	TellAll(caller, addrs, &doubleRequest{
		RequestMeta: actor.NewRequestMeta(0, caller.Address()),
		value:       100,
	})

	time.Sleep(50 * time.Millisecond)

	for i, b := range behaviors {
		if b.received.Load() != 1 {
			t.Errorf("actor %d: expected 1 received message, got %d", i, b.received.Load())
		}
	}
}

// TestParallelAsk tests the ParallelAsk helper function.
func TestParallelAsk(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	const numActors = 3
	addrs := make([]*actor.Address, numActors)
	buildReqs := make([]func(actor.RequestMeta) actor.Request, numActors)

	for i := 0; i < numActors; i++ {
		core := h.sup.CreateActor("parallel-ask", newDoublerBehavior(), actor.DefaultChildPolicy())
		addrs[i] = core.Address()
		v := (i + 1) * 10
		buildReqs[i] = func(meta actor.RequestMeta) actor.Request {
			return &doubleRequest{RequestMeta: meta, value: v}
		}
	}
	caller := h.sup.CreateActor("caller", nil, actor.DefaultChildPolicy())

	ctx := context.Background()
	results := ParallelAsk(ctx, caller, addrs, time.Second, buildReqs)

	if len(results) != numActors {
		t.Fatalf("expected %d results, got %d", numActors, len(results))
	}

	for i, r := range results {
		resp, err := r.Unpack()
		if err != nil {
			t.Errorf("result %d: unexpected error: %v", i, err)
			continue
		}
		d := resp.(*doubleResponse)
		expected := (i + 1) * 10 * 2
		if d.value != expected {
			t.Errorf("result %d: expected %d, got %d", i, expected, d.value)
		}
	}
}

// TestParallelAsk_Panic tests that ParallelAsk panics when dests and
// buildReqs have different lengths.
func TestParallelAsk_Panic(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for mismatched slice lengths")
		}
	}()

	h := newTestHarness(t)
	callee := h.sup.CreateActor("callee", newDoublerBehavior(), actor.DefaultChildPolicy())
	caller := h.sup.CreateActor("caller", nil, actor.DefaultChildPolicy())

	dests := []*actor.Address{callee.Address()}
	buildReqs := []func(actor.RequestMeta) actor.Request{
		func(meta actor.RequestMeta) actor.Request { return &doubleRequest{RequestMeta: meta, value: 1} },
		func(meta actor.RequestMeta) actor.Request { return &doubleRequest{RequestMeta: meta, value: 2} },
	}

	ParallelAsk(context.Background(), caller, dests, time.Second, buildReqs)
}

// TestParallelAskSame tests the ParallelAskSame helper function.
func TestParallelAskSame(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	const numActors = 3
	addrs := make([]*actor.Address, numActors)
	for i := 0; i < numActors; i++ {
		core := h.sup.CreateActor("parallel-same", newDoublerBehavior(), actor.DefaultChildPolicy())
		addrs[i] = core.Address()
	}
	caller := h.sup.CreateActor("caller", nil, actor.DefaultChildPolicy())

	ctx := context.Background()
	results := ParallelAskSame(ctx, caller, addrs, time.Second,
		func(meta actor.RequestMeta) actor.Request {
			return &doubleRequest{RequestMeta: meta, value: 50}
		})

	if len(results) != numActors {
		t.Fatalf("expected %d results, got %d", numActors, len(results))
	}

	for i, r := range results {
		resp, err := r.Unpack()
		if err != nil {
			t.Errorf("result %d: unexpected error: %v", i, err)
			continue
		}
		d := resp.(*doubleResponse)
		if d.value != 100 {
			t.Errorf("result %d: expected 100, got %d", i, d.value)
		}
	}
}

// TestFirstSuccess tests the FirstSuccess helper function.
func TestFirstSuccess(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	failErr := actor.NewExtendedError("intentional failure", actor.CodeUnknown)

	b1 := newDoublerBehavior()
	b1.failWith = failErr
	b1.delay = 20 * time.Millisecond

	b2 := newDoublerBehavior()
	b2.failWith = failErr
	b2.delay = 20 * time.Millisecond

	b3 := newDoublerBehavior()
	b3.delay = 10 * time.Millisecond

	addrs := []*actor.Address{
		h.sup.CreateActor("fail-1", b1, actor.DefaultChildPolicy()).Address(),
		h.sup.CreateActor("fail-2", b2, actor.DefaultChildPolicy()).Address(),
		h.sup.CreateActor("success", b3, actor.DefaultChildPolicy()).Address(),
	}
	caller := h.sup.CreateActor("caller", nil, actor.DefaultChildPolicy())

	ctx := context.Background()
	resp, err := FirstSuccess(ctx, caller, addrs, time.Second,
		func(meta actor.RequestMeta) actor.Request {
			return &doubleRequest{RequestMeta: meta, value: 25}
		})
	if err != nil {
		t.Fatalf("FirstSuccess returned error: %v", err)
	}
	if resp.(*doubleResponse).value != 50 {
		t.Errorf("expected 50, got %d", resp.(*doubleResponse).value)
	}
}

// TestFirstSuccess_AllFail tests FirstSuccess when all actors fail.
func TestFirstSuccess_AllFail(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	failErr := actor.NewExtendedError("intentional failure", actor.CodeUnknown)

	b1 := newDoublerBehavior()
	b1.failWith = failErr
	b2 := newDoublerBehavior()
	b2.failWith = failErr

	addrs := []*actor.Address{
		h.sup.CreateActor("fail-all-1", b1, actor.DefaultChildPolicy()).Address(),
		h.sup.CreateActor("fail-all-2", b2, actor.DefaultChildPolicy()).Address(),
	}
	caller := h.sup.CreateActor("caller", nil, actor.DefaultChildPolicy())

	ctx := context.Background()
	_, err := FirstSuccess(ctx, caller, addrs, time.Second,
		func(meta actor.RequestMeta) actor.Request {
			return &doubleRequest{RequestMeta: meta, value: 10}
		})
	if err == nil {
		t.Fatal("expected error when all actors fail")
	}
}

// TestFirstSuccess_NoActors tests FirstSuccess with an empty address slice.
func TestFirstSuccess_NoActors(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	caller := h.sup.CreateActor("caller", nil, actor.DefaultChildPolicy())

	ctx := context.Background()
	_, err := FirstSuccess(ctx, caller, nil, time.Second,
		func(meta actor.RequestMeta) actor.Request {
			return &doubleRequest{RequestMeta: meta, value: 10}
		})
	if err == nil {
		t.Fatal("expected error for empty address slice")
	}
}

// TestMapResponses tests the MapResponses helper function.
func TestMapResponses(t *testing.T) {
	t.Parallel()

	testErr := errors.New("test error")
	results := []fn.Result[int]{fn.Ok(10), fn.Err[int](testErr), fn.Ok(20)}

	mapped := MapResponses(results, func(v int) int { return v * 2 })
	if len(mapped) != 3 {
		t.Fatalf("expected 3 mapped results, got %d", len(mapped))
	}

	v1, err := mapped[0].Unpack()
	if err != nil || v1 != 20 {
		t.Errorf("mapped[0]: expected (20, nil), got (%d, %v)", v1, err)
	}

	_, err = mapped[1].Unpack()
	if !errors.Is(err, testErr) {
		t.Errorf("mapped[1] expected test error, got %v", err)
	}

	v3, err := mapped[2].Unpack()
	if err != nil || v3 != 40 {
		t.Errorf("mapped[2]: expected (40, nil), got (%d, %v)", v3, err)
	}
}

// TestCollectSuccesses tests the CollectSuccesses helper function.
func TestCollectSuccesses(t *testing.T) {
	t.Parallel()

	testErr := errors.New("test error")
	results := []fn.Result[int]{
		fn.Ok(10), fn.Err[int](testErr), fn.Ok(20), fn.Err[int](testErr), fn.Ok(30),
	}

	successes := CollectSuccesses(results)
	expected := []int{10, 20, 30}
	if len(successes) != len(expected) {
		t.Fatalf("expected %d successes, got %d", len(expected), len(successes))
	}
	for i, v := range successes {
		if v != expected[i] {
			t.Errorf("successes[%d]: expected %d, got %d", i, expected[i], v)
		}
	}
}

// TestAllSucceeded tests the AllSucceeded helper function.
func TestAllSucceeded(t *testing.T) {
	t.Parallel()

	testErr := errors.New("test error")
	tests := []struct {
		name     string
		results  []fn.Result[int]
		expected bool
	}{
		{"all success", []fn.Result[int]{fn.Ok(1), fn.Ok(2), fn.Ok(3)}, true},
		{"one failure", []fn.Result[int]{fn.Ok(1), fn.Err[int](testErr), fn.Ok(3)}, false},
		{"all failures", []fn.Result[int]{fn.Err[int](testErr), fn.Err[int](testErr)}, false},
		{"empty", []fn.Result[int]{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := AllSucceeded(tc.results); got != tc.expected {
				t.Errorf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

// TestFirstError tests the FirstError helper function.
func TestFirstError(t *testing.T) {
	t.Parallel()

	err1 := errors.New("error 1")
	err2 := errors.New("error 2")
	tests := []struct {
		name     string
		results  []fn.Result[int]
		expected error
	}{
		{"all success", []fn.Result[int]{fn.Ok(1), fn.Ok(2)}, nil},
		{"first is error", []fn.Result[int]{fn.Err[int](err1), fn.Ok(2)}, err1},
		{"second is error", []fn.Result[int]{fn.Ok(1), fn.Err[int](err2)}, err2},
		{"empty", []fn.Result[int]{}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FirstError(tc.results)
			if !errors.Is(got, tc.expected) {
				t.Errorf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

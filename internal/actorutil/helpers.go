// Package actorutil provides convenience wrappers over
// internal/baselib/actor's Ask/Send primitives for the common cases of
// awaiting a single request and fanning a request out to many
// destinations concurrently.
package actorutil

import (
	"context"
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/rotorgo/internal/baselib/actor"
)

// AskAwait sends a request built by buildReq to dest and blocks until the
// response arrives, ctx is done, or timeout elapses (0 disables the
// synthetic timeout), unpacking the fn.Result directly into (response,
// error).
func AskAwait(
	ctx context.Context,
	core *actor.ActorCore,
	dest *actor.Address,
	timeout time.Duration,
	buildReq func(actor.RequestMeta) actor.Request,
) (actor.Response, error) {

	future := actor.Ask(core, dest, timeout, buildReq)
	result := future.Await(ctx)
	return result.Unpack()
}

// AskAwaitTyped is like AskAwait but asserts the response to a concrete
// type T, returning an error if the actor replied with something else.
func AskAwaitTyped[T actor.Response](
	ctx context.Context,
	core *actor.ActorCore,
	dest *actor.Address,
	timeout time.Duration,
	buildReq func(actor.RequestMeta) actor.Request,
) (T, error) {

	resp, err := AskAwait(ctx, core, dest, timeout, buildReq)
	if err != nil {
		var zero T
		return zero, err
	}

	typed, ok := resp.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf(
			"unexpected response type: got %T, want %T", resp, zero)
	}
	return typed, nil
}

// TellAll sends msg to every address in dests, fire-and-forget.
func TellAll(core *actor.ActorCore, dests []*actor.Address, msg actor.Message) {
	for _, dest := range dests {
		core.Send(dest, msg)
	}
}

// ParallelAsk sends a distinct request (via buildReqs[i]) to each address
// in dests concurrently and awaits every response, returning results in
// the same order as dests. len(dests) and len(buildReqs) must match.
func ParallelAsk(
	ctx context.Context,
	core *actor.ActorCore,
	dests []*actor.Address,
	timeout time.Duration,
	buildReqs []func(actor.RequestMeta) actor.Request,
) []fn.Result[actor.Response] {

	if len(dests) != len(buildReqs) {
		panic("dests and buildReqs must have same length")
	}

	futures := make([]actor.Future[actor.Response], len(dests))
	for i, dest := range dests {
		futures[i] = actor.Ask(core, dest, timeout, buildReqs[i])
	}

	results := make([]fn.Result[actor.Response], len(futures))
	for i, f := range futures {
		results[i] = f.Await(ctx)
	}
	return results
}

// ParallelAskSame sends the same request (built fresh per destination, so
// each gets its own correlation id) to every address in dests
// concurrently, returning results in the same order as dests.
func ParallelAskSame(
	ctx context.Context,
	core *actor.ActorCore,
	dests []*actor.Address,
	timeout time.Duration,
	buildReq func(actor.RequestMeta) actor.Request,
) []fn.Result[actor.Response] {

	futures := make([]actor.Future[actor.Response], len(dests))
	for i, dest := range dests {
		futures[i] = actor.Ask(core, dest, timeout, buildReq)
	}

	results := make([]fn.Result[actor.Response], len(futures))
	for i, f := range futures {
		results[i] = f.Await(ctx)
	}
	return results
}

// FirstSuccess sends the same request to every address in dests
// concurrently and returns the first successful response, canceling the
// rest. If every address fails, the last error observed is returned.
func FirstSuccess(
	ctx context.Context,
	core *actor.ActorCore,
	dests []*actor.Address,
	timeout time.Duration,
	buildReq func(actor.RequestMeta) actor.Request,
) (actor.Response, error) {

	if len(dests) == 0 {
		return nil, fmt.Errorf("no destinations provided")
	}

	type indexedResult struct {
		result fn.Result[actor.Response]
		idx    int
	}
	resultCh := make(chan indexedResult, len(dests))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i, dest := range dests {
		go func(idx int, dest *actor.Address) {
			future := actor.Ask(core, dest, timeout, buildReq)
			result := future.Await(ctx)
			select {
			case resultCh <- indexedResult{result: result, idx: idx}:
			case <-ctx.Done():
			}
		}(i, dest)
	}

	var lastErr error
	received := 0
	for received < len(dests) {
		select {
		case res := <-resultCh:
			received++
			val, err := res.result.Unpack()
			if err == nil {
				cancel()
				return val, nil
			}
			lastErr = err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// MapResponses transforms a slice of results using mapFn, passing error
// results through unchanged.
func MapResponses[R any, T any](results []fn.Result[R], mapFn func(R) T) []fn.Result[T] {
	mapped := make([]fn.Result[T], len(results))
	for i, r := range results {
		val, err := r.Unpack()
		if err != nil {
			mapped[i] = fn.Err[T](err)
		} else {
			mapped[i] = fn.Ok(mapFn(val))
		}
	}
	return mapped
}

// CollectSuccesses returns only the successful values from results,
// discarding errors.
func CollectSuccesses[R any](results []fn.Result[R]) []R {
	var successes []R
	for _, r := range results {
		if val, err := r.Unpack(); err == nil {
			successes = append(successes, val)
		}
	}
	return successes
}

// AllSucceeded reports whether every result in results is successful.
func AllSucceeded[R any](results []fn.Result[R]) bool {
	for _, r := range results {
		if _, err := r.Unpack(); err != nil {
			return false
		}
	}
	return true
}

// FirstError returns the first error in results, or nil if all succeeded.
func FirstError[R any](results []fn.Result[R]) error {
	for _, r := range results {
		if _, err := r.Unpack(); err != nil {
			return err
		}
	}
	return nil
}

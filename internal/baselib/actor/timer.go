package actor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// pendingRequest tracks one in-flight Request/Ask exchange: the callback
// that completes the promise a caller is Await-ing, the timer token
// guarding it, and when it was created. The timeout failure itself is
// built by the timer callback Ask arms, which holds the original request.
type pendingRequest struct {
	id        uint64
	complete  func(fn.Result[Response])
	timerTok  string
	createdAt time.Time
}

// requestTable is the per-locality map from request id to pendingRequest,
// guarded by its own mutex since timeouts fire from the loop goroutine
// while replies can arrive from any locality's delivery path.
type requestTable struct {
	mu      sync.Mutex
	pending map[uint64]*pendingRequest
	nextID  atomic.Uint64
	session uuid.UUID
}

func newRequestTable() *requestTable {
	return &requestTable{
		pending: make(map[uint64]*pendingRequest),
		session: uuid.New(),
	}
}

// allocate reserves a fresh request id and records the in-flight entry.
func (t *requestTable) allocate(complete func(fn.Result[Response])) uint64 {
	id := t.nextID.Add(1)
	t.mu.Lock()
	t.pending[id] = &pendingRequest{id: id, complete: complete, createdAt: time.Now()}
	t.mu.Unlock()
	return id
}

func (t *requestTable) attachTimer(id uint64, token string) {
	t.mu.Lock()
	if p, ok := t.pending[id]; ok {
		p.timerTok = token
	}
	t.mu.Unlock()
}

// resolve completes and removes the pending request for id, returning
// false if it was already resolved (reply raced a timeout, or a duplicate
// reply arrived).
func (t *requestTable) resolve(id uint64, result fn.Result[Response]) bool {
	t.mu.Lock()
	p, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	p.complete(result)
	return true
}

// cancelAll fails every still-pending request with err, used when a
// locality's leader shuts down with in-flight requests outstanding.
func (t *requestTable) cancelAll(err error) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[uint64]*pendingRequest)
	t.mu.Unlock()

	for _, p := range pending {
		p.complete(fn.Err[Response](err))
	}
}

func (t *requestTable) timerTokenFor(id uint64) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[id]
	if !ok {
		return "", false
	}
	return p.timerTok, true
}

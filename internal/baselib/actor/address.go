package actor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"weak"
)

// Locality is the unit of concurrency: exactly one goroutine (the leader's
// Loop) ever touches a Locality's queue, inbound MPSC, subscription map and
// request table. Every Address belongs to exactly one Locality.
type Locality struct {
	tag    uint64
	leader *Supervisor

	subs    *SubscriptionMap
	queue   *msgQueue // local work queue, leader-owned
	inbound *msgQueue // cross-locality MPSC, safe for concurrent push

	loop     Loop
	reqTable *requestTable

	nextAddrID atomic.Uint64

	actorsMu sync.RWMutex
	actors   map[uint64]*ActorCore

	onDeadLetter func(Envelope)
}

var nextLocalityTag atomic.Uint64

// newLocality allocates a fresh Locality for the given leader supervisor
// and loop backend. The leader itself is responsible for driving loop's
// Run/Drain calls against queue and inbound.
func newLocality(loop Loop) *Locality {
	return &Locality{
		tag:      nextLocalityTag.Add(1),
		subs:     newSubscriptionMap(),
		queue:    newMsgQueue(16),
		inbound:  newMsgQueue(16),
		loop:     loop,
		reqTable: newRequestTable(),
	}
}

// Leader returns the supervisor that owns this locality's loop.
func (l *Locality) Leader() *Supervisor { return l.leader }

func (l *Locality) setLeader(s *Supervisor) { l.leader = s }

func (l *Locality) nextAddressID() uint64 { return l.nextAddrID.Add(1) }

// Address identifies a single actor within a locality. Addresses are
// produced only by a Supervisor (via CreateActor), are comparable by
// identity (always handed out as *Address), and hold only a weak
// back-reference to the supervisor that minted them so that an Address
// outliving its supervisor (held by a foreign locality's subscription map,
// say) never keeps that supervisor's resources alive.
type Address struct {
	id         uint64
	locality   *Locality
	supervisor weak.Pointer[Supervisor]
	label      string
}

func newAddress(loc *Locality, sup *Supervisor, label string) *Address {
	return &Address{
		id:         loc.nextAddressID(),
		locality:   loc,
		supervisor: weak.Make(sup),
		label:      label,
	}
}

// Locality returns the locality this address belongs to.
func (a *Address) Locality() *Locality { return a.locality }

// Supervisor resolves the weak back-reference, returning ok=false if the
// owning supervisor has since been collected.
func (a *Address) Supervisor() (*Supervisor, bool) {
	s := a.supervisor.Value()
	return s, s != nil
}

// SameLocality reports whether a and b were minted by the same locality's
// leader, i.e. whether dispatch between them never crosses a goroutine
// boundary.
func (a *Address) SameLocality(b *Address) bool {
	return a.locality == b.locality
}

// Label returns the human-readable tag the address was created with, used
// only for logging.
func (a *Address) Label() string { return a.label }

func (a *Address) String() string {
	if a.label != "" {
		return fmt.Sprintf("%s#%d@loc%d", a.label, a.id, a.locality.tag)
	}
	return fmt.Sprintf("addr#%d@loc%d", a.id, a.locality.tag)
}

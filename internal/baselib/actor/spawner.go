package actor

import (
	"strconv"
	"sync/atomic"
)

// Spawner wraps Supervisor.CreateActor with escalation semantics for the
// case the plain CreateActor path can't express: construction of the
// child's behavior value itself failing, before there is even an
// ActorCore to run through the normal INIT-gate failure path. A spawner
// that can't produce a working child at all escalates by shutting down
// its owning supervisor, rather than looping on CreateActor calls that
// will only fail the same way again.
type Spawner struct {
	sup    *Supervisor
	policy ChildPolicy
	label  string

	spawned atomic.Uint64
	failed  atomic.Uint64
}

// NewSpawner registers a Spawner under s, labeling the children it
// produces with label (each gets a numeric suffix).
func (s *Supervisor) NewSpawner(label string, policy ChildPolicy) *Spawner {
	sp := &Spawner{sup: s, policy: policy, label: label}
	s.spawners[uint64(len(s.spawners))+1] = sp
	return sp
}

// Spawn constructs a behavior via factory and, on success, creates a child
// actor from it under the spawner's supervisor and policy. On failure it
// escalates: the owning supervisor begins shutting down with a
// CodeSpawnFailed error wrapping factory's error.
func (sp *Spawner) Spawn(factory func() (any, error), extraPlugins ...Plugin) (*ActorCore, error) {
	behavior, err := factory()
	if err != nil {
		sp.failed.Add(1)
		escalated := NewExtendedError("spawner could not construct child behavior",
			CodeSpawnFailed).WithCause(err)
		sp.sup.RequestShutdown(escalated)
		return nil, escalated
	}

	n := sp.spawned.Add(1)
	label := sp.label
	if label != "" {
		label = label + "-" + strconv.FormatUint(n, 10)
	}
	return sp.sup.CreateActor(label, behavior, sp.policy, extraPlugins...), nil
}

// Stats reports how many children this spawner has produced and how many
// factory calls failed outright.
func (sp *Spawner) Stats() (spawned, failed uint64) {
	return sp.spawned.Load(), sp.failed.Load()
}

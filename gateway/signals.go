package gateway

import "sync"

// SignalKind tags what a Signal is asking the shard's run loop to do,
// mirroring ShardSignal in original_source/src/gateway/shard.rs.
type SignalKind uint8

const (
	SignalReconnect SignalKind = iota
	SignalSendPresenceUpdate
	SignalSendRequestGuildMembers
)

// Signal is one entry on a shard's control queue.
type Signal struct {
	Kind    SignalKind
	Request *GuildMembersRequest // only set for SignalSendRequestGuildMembers
}

// SignalQueue is the multi-producer, single-consumer queue a shard drains
// once per run-loop pass. Any goroutine may enqueue; only the owning shard
// goroutine ever dequeues. It is genuinely unbounded: a producer like
// Controller.SetPresence or RequestGuildMembers must never block on, or
// silently lose a signal to, a shard that is slow to drain.
type SignalQueue struct {
	mu      sync.Mutex
	pending []Signal
}

// NewSignalQueue constructs an empty queue.
func NewSignalQueue() *SignalQueue {
	return &SignalQueue{}
}

// Push enqueues a signal. Never blocks and never drops.
func (q *SignalQueue) Push(s Signal) {
	q.mu.Lock()
	q.pending = append(q.pending, s)
	q.mu.Unlock()
}

// DrainInto appends every currently-queued signal onto out and clears the
// queue, without blocking.
func (q *SignalQueue) DrainInto(out []Signal) []Signal {
	q.mu.Lock()
	out = append(out, q.pending...)
	q.pending = q.pending[:0]
	q.mu.Unlock()
	return out
}

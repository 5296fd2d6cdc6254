package gateway

import "sync"

// envelopePool recycles decoded Envelopes: every inbound frame decodes
// into one, and the connection loop returns it once dispatch for that
// frame is done.
var envelopePool sync.Pool

// getEnvelope returns a zeroed Envelope from the pool, or a fresh one.
func getEnvelope() *Envelope {
	if e := envelopePool.Get(); e != nil {
		return e.(*Envelope) //nolint:forcetypeassert
	}
	return new(Envelope)
}

// putEnvelope resets env and returns it to the pool.
func putEnvelope(env *Envelope) {
	env.Op = 0
	env.Sequence = nil
	env.EventType = ""
	env.Data = nil
	envelopePool.Put(env)
}

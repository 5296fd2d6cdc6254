package gateway

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"

	"github.com/corvidlabs/raven/errs"
	"github.com/corvidlabs/raven/model"
	"github.com/corvidlabs/raven/telemetry"
	"github.com/corvidlabs/raven/wire"
)

// connPhase is the shard's connection-phase state.
type connPhase uint8

const (
	phaseInitial connPhase = iota
	phaseAuthenticating
	phaseResuming
	phaseConnected
)

// connStatus is what one connection attempt (runConnection) resolves to,
// used by Run's outer reconnect loop to decide what happens next.
type connStatus uint8

const (
	statusDisconnect connStatus = iota
	statusShutdown
	statusReconnect
	statusReconnectWithBackoff
)

// GatewayState is shared across every shard belonging to one Controller:
// the negotiated gateway URL, the compression mode, and the manager-wide
// presence/config the shards read on every connection attempt.
type GatewayState struct {
	isShutdown int32 // atomic bool

	GatewayURL  string
	Compression wire.CompressionMode

	mu       sync.RWMutex
	presence model.PresenceUpdate
	config   ShardConfig
}

// NewGatewayState constructs shared state for a freshly discovered gateway.
func NewGatewayState(gatewayURL string, compression wire.CompressionMode, cfg ShardConfig) *GatewayState {
	return &GatewayState{GatewayURL: gatewayURL, Compression: compression, config: cfg}
}

func (g *GatewayState) Shutdown()          { atomic.StoreInt32(&g.isShutdown, 1) }
func (g *GatewayState) IsShutdown() bool   { return atomic.LoadInt32(&g.isShutdown) == 1 }
func (g *GatewayState) Presence() model.PresenceUpdate {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.presence
}
func (g *GatewayState) SetPresence(p model.PresenceUpdate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.presence = p
}
func (g *GatewayState) Config() ShardConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.config
}
func (g *GatewayState) SetConfig(c ShardConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.config = c
}

// Shard is a handle to one running (or not-yet-started) gateway shard.
type Shard struct {
	ID model.ShardID

	started     int32 // atomic bool
	isShutdown  int32 // atomic bool
	isConnected int32 // atomic bool

	Signals *SignalQueue
	Gateway *GatewayState

	Token   string
	Handler Handler
}

// NewShard constructs a not-yet-started shard handle.
func NewShard(id model.ShardID, gateway *GatewayState, token string, handler Handler) *Shard {
	return &Shard{
		ID:      id,
		Signals: NewSignalQueue(),
		Gateway: gateway,
		Token:   token,
		Handler: handler,
	}
}

func (s *Shard) IsShutdown() bool  { return atomic.LoadInt32(&s.isShutdown) == 1 }
func (s *Shard) IsConnected() bool { return atomic.LoadInt32(&s.isConnected) == 1 }

// Reconnect asks the shard to drop its current session and reconnect.
func (s *Shard) Reconnect() { s.Signals.Push(Signal{Kind: SignalReconnect}) }

// NotifyPresenceUpdate asks the shard to send its current shared presence.
func (s *Shard) NotifyPresenceUpdate() { s.Signals.Push(Signal{Kind: SignalSendPresenceUpdate}) }

// RequestGuildMembers asks the shard to forward a guild-members request.
func (s *Shard) RequestGuildMembers(req GuildMembersRequest) {
	s.Signals.Push(Signal{Kind: SignalSendRequestGuildMembers, Request: &req})
}

// Run drives the shard's outer reconnect loop (shard_main_loop in
// original_source/src/gateway/shard.rs): it repeatedly runs one connection
// attempt and decides, from the attempt's connStatus, whether to exit,
// shut down the whole gateway, or reconnect with or without backoff.
// Run blocks until the shard is shut down; callers start it in its own
// goroutine.
func (s *Shard) Run(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		panic("raven: shard " + s.ID.String() + " already started")
	}
	defer atomic.StoreInt32(&s.isShutdown, 1)

	cfg := s.Gateway.Config()
	reconnectDelay := cfg.BackoffInitial
	session := &Session{}

	for {
		status := s.runConnection(ctx, session)
		atomic.StoreInt32(&s.isConnected, 0)
		cfg = s.Gateway.Config()

		switch status {
		case statusDisconnect:
			telemetry.Logger.Info().Str(telemetry.LogCtxShard, s.ID.String()).Msg("shard disconnected")
			return
		case statusShutdown:
			telemetry.Logger.Info().Str(telemetry.LogCtxShard, s.ID.String()).Msg("shard requested gateway shutdown")
			s.Gateway.Shutdown()
			return
		case statusReconnect:
			reconnectDelay = cfg.BackoffInitial
		case statusReconnectWithBackoff:
			if !interruptibleSleep(ctx, reconnectDelay, s.Gateway) {
				return
			}
			variation := time.Duration(rand.Float64() * float64(cfg.BackoffVariation))
			next := time.Duration(float64(reconnectDelay)*cfg.BackoffFactor) + variation
			if next > cfg.BackoffCap {
				next = cfg.BackoffCap
			}
			reconnectDelay = next
		}
	}
}

// interruptibleSleep sleeps for d, waking early if ctx is cancelled or the
// shared shutdown flag is set, so a long backoff never outlives a
// requested shutdown.
func interruptibleSleep(ctx context.Context, d time.Duration, gw *GatewayState) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-timer.C:
			return true
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if gw.IsShutdown() {
				return false
			}
		}
	}
}

// runConnection runs a single WebSocket connection attempt end to end:
// dial, Hello, Identify/Resume, and the main receive/signal/heartbeat
// loop, until it disconnects, is told to shut down, or needs to
// reconnect. This is running_shard from original_source/src/gateway/shard.rs
// translated into a goroutine-local state machine instead of an async fn.
func (s *Shard) runConnection(ctx context.Context, session *Session) connStatus {
	if s.Gateway.IsShutdown() {
		return statusDisconnect
	}

	connSuccessful := false
	emitErr := func(kind errs.Kind, format string, args ...interface{}) connStatus {
		err := errs.New(kind, format, args...)
		resp := resolveResponse(kind, s.Handler.OnError(err))
		if !s.Handler.CanResume(err) {
			session.Clear()
		}
		switch resp {
		case ResponseShutdown:
			return statusShutdown
		case ResponseIgnore:
			// Only reachable here for ignorable kinds; resolveResponse
			// already promoted non-ignorable kinds to Reconnect.
			return connStatus(255) // sentinel: "keep looping", handled by caller
		default:
			if connSuccessful {
				return statusReconnect
			}
			return statusReconnectWithBackoff
		}
	}

	conn, err := wire.Dial(ctx, s.Gateway.GatewayURL, s.Gateway.Compression)
	if err != nil {
		return emitErr(errs.IoError, "%v", err)
	}
	defer conn.Close(1000, "")

	phase := phaseInitial
	connStart := time.Now()
	lastHeartbeat := time.Now()
	var heartbeatInterval time.Duration
	heartbeatAck := true

	for {
		if s.Gateway.IsShutdown() {
			return statusDisconnect
		}

		needConnect := false
		resp := conn.Receive(ctx, time.Second)
		switch resp.Kind {
		case wire.ResponseDisconnected:
			return emitErr(errs.IoError, "remote host disconnected: %v", resp.CloseFrame)
		case wire.ResponseParseError:
			if st := s.handleParseError(resp.Err, emitErr); st != connStatus(255) {
				return st
			}
		case wire.ResponseTimeout:
			// fall through to signal/timer handling below
		case wire.ResponsePacket:
			env, perr := ParseEnvelope(resp.Data, s.Handler.IgnoresEvent)
			if perr != nil {
				if st := s.handleParseError(perr, emitErr); st != connStatus(255) {
					return st
				}
				break
			}
			if st, nc := s.dispatchEnvelope(env, phase, session, &connSuccessful, &heartbeatInterval, &heartbeatAck, emitErr); st != connStatus(255) {
				return st
			} else if nc {
				needConnect = true
			}
			if env.Op == OpDispatch && phase != phaseInitial {
				phase = phaseConnected
				atomic.StoreInt32(&s.isConnected, 1)
			}
			putEnvelope(env)
		}

		if needConnect {
			if session.Inactive() {
				telemetry.Logger.Info().Str(telemetry.LogCtxShard, s.ID.String()).Msg("identifying")
				pkt := s.buildIdentify()
				if err := s.send(ctx, conn, OpIdentify, pkt); err != nil {
					return emitErr(errs.IoError, "%v", err)
				}
				phase = phaseAuthenticating
			} else {
				telemetry.Logger.Info().Str(telemetry.LogCtxShard, s.ID.String()).Msg("resuming")
				pkt := Resume{Token: s.Token, SessionID: session.SessionID(), Sequence: session.sequence}
				if err := s.send(ctx, conn, OpResume, pkt); err != nil {
					return emitErr(errs.IoError, "%v", err)
				}
				phase = phaseResuming
			}
		}

		// Drain the signal queue once per pass.
		signals := s.Signals.DrainInto(make([]Signal, 0, 4))
		doReconnect := false
		doPresence := false
		var memberRequests []GuildMembersRequest
		for _, sig := range signals {
			switch sig.Kind {
			case SignalReconnect:
				doReconnect = true
			case SignalSendPresenceUpdate:
				doPresence = true
			case SignalSendRequestGuildMembers:
				if sig.Request != nil {
					memberRequests = append(memberRequests, *sig.Request)
				}
			}
		}
		if doReconnect {
			session.Clear()
			return statusReconnect
		}
		if doPresence {
			if err := s.send(ctx, conn, OpStatusUpdate, s.Gateway.Presence()); err != nil {
				return emitErr(errs.IoError, "%v", err)
			}
		}
		for _, req := range memberRequests {
			if err := s.send(ctx, conn, OpRequestGuildMembers, req); err != nil {
				return emitErr(errs.IoError, "%v", err)
			}
		}

		now := time.Now()
		if phase == phaseInitial {
			if now.Sub(connStart) > 10*time.Second {
				return emitErr(errs.IoError, "timed out waiting for Hello")
			}
		} else if heartbeatInterval > 0 && now.Sub(lastHeartbeat) > heartbeatInterval {
			if !heartbeatAck {
				return emitErr(errs.IoError, "heartbeat timeout")
			}
			if err := s.send(ctx, conn, OpHeartbeat, session.SequenceID()); err != nil {
				return emitErr(errs.IoError, "%v", err)
			}
			lastHeartbeat = now
			heartbeatAck = false
		}
	}
}

// handleParseError routes a parse/IO error from Receive through emitErr,
// returning connStatus(255) ("ignorable, keep looping") when applicable.
func (s *Shard) handleParseError(err error, emitErr func(errs.Kind, string, ...interface{}) connStatus) connStatus {
	if e, ok := err.(*errs.Error); ok {
		return emitErr(e.Kind, "%s", e.Detail)
	}
	return emitErr(errs.IoError, "%v", err)
}

// dispatchEnvelope applies the per-(packet,phase) dispatch table. It
// returns (status, needConnect); status is connStatus(255) when
// processing should simply continue to the next loop pass.
func (s *Shard) dispatchEnvelope(
	env *Envelope,
	phase connPhase,
	session *Session,
	connSuccessful *bool,
	heartbeatInterval *time.Duration,
	heartbeatAck *bool,
	emitErr func(errs.Kind, string, ...interface{}) connStatus,
) (connStatus, bool) {
	switch env.Op {
	case OpHello:
		if phase != phaseInitial {
			return connStatus(255), false
		}
		var hello Hello
		if err := json.Unmarshal(env.Data, &hello); err != nil {
			return emitErr(errs.DiscordBadResponse, "malformed Hello: %v", err), false
		}
		*heartbeatInterval = time.Duration(hello.HeartbeatIntervalMillis) * time.Millisecond
		*heartbeatAck = true
		return connStatus(255), true

	case OpInvalidSession:
		if phase == phaseInitial {
			return connStatus(255), false
		}
		var canResume bool
		_ = json.Unmarshal(env.Data, &canResume)
		if phase == phaseAuthenticating {
			return emitErr(errs.AuthenticationFailure, "authentication failure"), false
		}
		if !canResume {
			session.Clear()
		}
		wait := time.Duration(1000+rand.Float64()*4000) * time.Millisecond
		time.Sleep(wait)
		return connStatus(255), true

	case OpDispatch:
		if phase == phaseInitial {
			return connStatus(255), false
		}
		*connSuccessful = true
		if env.EventType == "READY" && env.Data != nil {
			var ready Ready
			if err := json.Unmarshal(env.Data, &ready); err == nil && env.Sequence != nil {
				session.Start(ready.SessionID, *env.Sequence)
			}
		} else if env.Sequence != nil {
			session.AdvanceSequence(*env.Sequence)
		}
		if env.Data != nil {
			st := s.invokeHandler(env, emitErr)
			if st != connStatus(255) {
				return st, false
			}
		}
		return connStatus(255), false

	case OpHeartbeatAck:
		*heartbeatAck = true
		return connStatus(255), false

	case OpReconnect:
		return statusReconnect, false

	default:
		err := ValidateDirection(env.Op, DirRecv)
		if err == nil {
			// Known, direction-valid opcode with no case above: nothing in
			// this client's dispatch table handles it yet.
			return emitErr(errs.UnknownOpcode, "unhandled opcode %d in phase", env.Op), false
		}
		e := err.(*errs.Error)
		return emitErr(e.Kind, "%s", e.Detail), false
	}
}

// invokeHandler calls the user's OnEvent callback inside a panic barrier,
// so a handler panic is caught and reported but never unwinds the
// shard's run loop.
func (s *Shard) invokeHandler(env *Envelope, emitErr func(errs.Kind, string, ...interface{}) connStatus) (status connStatus) {
	status = connStatus(255)
	defer func() {
		if r := recover(); r != nil {
			status = emitErr(errs.Panicked, "panic in event handler: %v", r)
		}
	}()
	if err := s.Handler.OnEvent(env.EventType, env.Data); err != nil {
		status = emitErr(errs.InternalError, "event handling failed: %v", err)
	}
	return status
}

func (s *Shard) send(ctx context.Context, conn *wire.Conn, op Opcode, data interface{}) error {
	return conn.Send(ctx, gatewayCommand{Op: int(op), Data: data})
}

type gatewayCommand struct {
	Op   int         `json:"op"`
	Data interface{} `json:"d"`
}

func (s *Shard) buildIdentify() Identify {
	cfg := s.Gateway.Config()
	presence := s.Gateway.Presence()
	id := s.ID
	return Identify{
		Token: s.Token,
		Properties: ConnectionProperties{
			OS:      "linux",
			Browser: "raven",
			Device:  "raven",
		},
		Compress:       cfg.Compression == CompressionOverridePacket,
		LargeThreshold: cfg.LargeThreshold,
		Shard:          &id,
		Presence:       &presence,
		Intents:        cfg.Intents,
	}
}

package gateway

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/corvidlabs/raven/errs"
	"github.com/corvidlabs/raven/model"
	"github.com/corvidlabs/raven/telemetry"
	"github.com/corvidlabs/raven/wire"
)

// Discoverer resolves the current gateway URL and session-start limit,
// the one REST call (`GET /gateway/bot`) the Controller needs. Kept as
// an interface so gateway never imports the REST/ratelimit stack
// directly — the root package supplies a concrete implementation.
type Discoverer interface {
	DiscoverGateway(ctx context.Context) (url string, recommendedShards int, limit SessionStartLimit, err error)
}

// gatewaySet is one atomically-swapped generation of running shards.
type gatewaySet struct {
	state  *GatewayState
	shards []*Shard
	index  map[model.ShardID]int
	cancel context.CancelFunc
	done   sync.WaitGroup
}

// Controller owns the bot-wide gateway connection: discovery, shard
// construction respecting max_concurrency, and fan-out operations
// (presence broadcast, guild-member request routing, reconnect by
// predicate) across whatever shard set is currently live.
type Controller struct {
	Token       string
	Manager     ShardManager
	Discoverer  Discoverer
	Compression wire.CompressionMode
	Config      ShardConfig
	NewHandler  func(shard model.ShardID) Handler

	mu      sync.RWMutex
	current *gatewaySet
}

// NewController constructs a Controller. If manager is nil, every shard
// runs on this process instance (InstanceShardManager).
func NewController(token string, manager ShardManager, discoverer Discoverer, newHandler func(model.ShardID) Handler) *Controller {
	if manager == nil {
		manager = InstanceShardManager{}
	}
	return &Controller{
		Token:       token,
		Manager:     manager,
		Discoverer:  discoverer,
		Compression: wire.CompressionTransport,
		Config:      DefaultShardConfig(),
		NewHandler:  newHandler,
	}
}

// Connect discovers the gateway, builds the shard list this instance
// owns (filtered through Manager.Owns), atomically swaps it in as the
// current generation (shutting down any previous generation first), and
// starts every shard — honoring max_concurrency by starting shards that
// share a `shard_id % max_concurrency` bucket one second apart.
func (c *Controller) Connect(ctx context.Context) error {
	url, recommended, limit := "", 0, SessionStartLimit{}
	var err error
	if c.Discoverer != nil {
		url, recommended, limit, err = c.Discoverer.DiscoverGateway(ctx)
		if err != nil {
			return errs.Wrap(errs.IoError, err, "failed to discover gateway")
		}
	}
	if limit.MaxConcurrency <= 0 {
		limit.MaxConcurrency = 1
	}

	total := c.Manager.NumShards(recommended)
	if total <= 0 {
		total = 1
	}

	gatewayURL, err := wire.BuildGatewayURL(url, c.Compression)
	if err != nil {
		return err
	}

	state := NewGatewayState(gatewayURL, c.Compression, c.Config)
	set := &gatewaySet{state: state, index: make(map[model.ShardID]int)}

	for i := 0; i < total; i++ {
		id := model.ShardID{Index: uint32(i), Total: uint32(total)}
		if !c.Manager.Owns(id.Index, id.Total) {
			continue
		}
		handler := Handler(DefaultHandler{})
		if c.NewHandler != nil {
			handler = c.NewHandler(id)
		}
		shard := NewShard(id, state, c.Token, handler)
		set.index[id] = len(set.shards)
		set.shards = append(set.shards, shard)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	set.cancel = cancel

	c.mu.Lock()
	previous := c.current
	c.current = set
	c.mu.Unlock()

	if previous != nil {
		c.shutdown(previous)
	}

	telemetry.Logger.Info().Int("shards", len(set.shards)).Int("max_concurrency", limit.MaxConcurrency).Msg("connecting gateway")
	c.startShards(runCtx, set, limit.MaxConcurrency)

	return nil
}

// startShards starts shards in waves of max_concurrency consecutive
// indices: a wave holds at most one shard per `shard_id % max_concurrency`
// bucket and starts concurrently, and successive waves are staggered a
// second apart, so shards sharing a bucket start one after another,
// matching Discord's documented max_concurrency contract for the
// Identify rate limit.
func (c *Controller) startShards(ctx context.Context, set *gatewaySet, maxConcurrency int) {
	waves := make(map[int][]*Shard)
	lastWave := 0
	for _, shard := range set.shards {
		wave := int(shard.ID.Index) / maxConcurrency
		waves[wave] = append(waves[wave], shard)
		if wave > lastWave {
			lastWave = wave
		}
	}

	for wave := 0; wave <= lastWave; wave++ {
		for _, shard := range waves[wave] {
			set.done.Add(1)
			go func(s *Shard) {
				defer set.done.Done()
				s.Run(ctx)
			}(shard)
		}
		if wave < lastWave {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

// Disconnect shuts down the current generation of shards without
// waiting for their goroutines to exit.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	set := c.current
	c.current = nil
	c.mu.Unlock()
	if set != nil {
		c.shutdown(set)
	}
}

// DisconnectWait shuts down the current generation and polls every
// 100ms until every shard reports IsShutdown, or ctx is cancelled.
func (c *Controller) DisconnectWait(ctx context.Context) {
	c.mu.Lock()
	set := c.current
	c.current = nil
	c.mu.Unlock()
	if set == nil {
		return
	}
	c.shutdown(set)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		allDown := true
		for _, s := range set.shards {
			if !s.IsShutdown() {
				allDown = false
				break
			}
		}
		if allDown {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Controller) shutdown(set *gatewaySet) {
	set.state.Shutdown()
	set.cancel()
}

// ReconnectShardsPartial sends a Reconnect signal to every currently
// live shard matched by predicate (nil matches every shard).
func (c *Controller) ReconnectShardsPartial(predicate Predicate) {
	set := c.snapshot()
	if set == nil {
		return
	}
	for _, s := range set.shards {
		if predicate == nil || predicate(s.ID.Index, s.ID.Total) {
			s.Reconnect()
		}
	}
}

// SetPresence replaces the shared presence and broadcasts a
// SendPresenceUpdate signal to every active shard.
func (c *Controller) SetPresence(p model.PresenceUpdate) {
	set := c.snapshot()
	if set == nil {
		return
	}
	set.state.SetPresence(p)
	for _, s := range set.shards {
		s.NotifyPresenceUpdate()
	}
}

// RequestGuildMembers forwards req to the shard owning id, or to a
// uniformly-chosen active shard when id is nil. It panics if id names a
// shard not present in the current gateway: a caller passing an unknown
// shard id is a programmer error, not a runtime condition to recover from.
func (c *Controller) RequestGuildMembers(id *model.ShardID, req GuildMembersRequest) {
	set := c.snapshot()
	if set == nil || len(set.shards) == 0 {
		panic("raven: RequestGuildMembers called with no active gateway")
	}
	if id == nil {
		shard := set.shards[rand.Intn(len(set.shards))]
		shard.RequestGuildMembers(req)
		return
	}
	idx, ok := set.index[*id]
	if !ok {
		panic("raven: RequestGuildMembers: shard " + id.String() + " is not in the current gateway")
	}
	set.shards[idx].RequestGuildMembers(req)
}

func (c *Controller) snapshot() *gatewaySet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

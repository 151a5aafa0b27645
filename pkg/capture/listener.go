package capture

import (
	"context"
	"errors"
	"net/netip"
	"sync/atomic"

	"routelistener-go/pkg/config"
	"routelistener-go/pkg/metrics"
	"routelistener-go/pkg/ndp"
	"routelistener-go/pkg/route"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// State describes where the listener is in its lifecycle.
type State int32

const (
	StateIdle State = iota
	StateListening
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Configurer requests installation of one route and reports the outcome.
// *route.Configurator implements it; tests substitute fakes.
type Configurer interface {
	Configure(key route.Key) route.Result
}

// Listener consumes captured Router Advertisements one at a time. Each
// packet is fully processed (decode, classify, dedup, configure) before the
// next one is read, which gives a total order over route decisions without
// any locking beyond the store's own.
type Listener struct {
	cfg        *config.Config
	store      *route.Store
	configurer Configurer
	rec        metrics.Recorder
	logger     zerolog.Logger
	ignoredLog *rate.Limiter
	state      atomic.Int32
}

// NewListener wires a listener to its collaborators. The store is injected
// rather than global so tests can run isolated listeners side by side.
func NewListener(cfg *config.Config, store *route.Store, configurer Configurer, rec metrics.Recorder, logger zerolog.Logger) *Listener {
	return &Listener{
		cfg:        cfg,
		store:      store,
		configurer: configurer,
		rec:        rec,
		logger:     logger.With().Str("component", "listener").Str("iface", cfg.Interface).Logger(),
		ignoredLog: rate.NewLimiter(rate.Limit(cfg.Logging.IgnoredRate), cfg.Logging.IgnoredBurst),
	}
}

// State returns the listener's current lifecycle state.
func (l *Listener) State() State {
	return State(l.state.Load())
}

// Run processes packets until ctx is cancelled or the packet channel is
// closed. A configuration action already in flight when ctx is cancelled
// runs to completion; cancellation is only observed between packets.
func (l *Listener) Run(ctx context.Context, packets <-chan gopacket.Packet) {
	l.state.Store(int32(StateListening))
	defer l.state.Store(int32(StateStopped))

	l.logger.Info().Msg("Listening for Router Advertisements")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("Capture loop stopping")
			return
		case pkt, ok := <-packets:
			if !ok {
				l.logger.Info().Msg("Capture source closed")
				return
			}
			l.processPacket(pkt)
		}
	}
}

// processPacket runs one packet through decode, classification and
// configuration. Nothing in here terminates the process: malformed input
// drops the packet, failed configuration leaves the route pending.
func (l *Listener) processPacket(pkt gopacket.Packet) {
	l.rec.PacketReceived()

	ipv6Layer := pkt.Layer(layers.LayerTypeIPv6)
	if ipv6Layer == nil {
		l.rec.DecodeError("not_ra")
		l.logger.Debug().Msg("Ignoring packet without IPv6 layer")
		return
	}
	ipv6 := ipv6Layer.(*layers.IPv6)

	router, ok := netip.AddrFromSlice(ipv6.SrcIP)
	if !ok {
		l.rec.DecodeError("not_ra")
		l.logger.Debug().Msg("Ignoring packet with unparseable source address")
		return
	}

	ra, err := ndp.Decode(router, ipv6.Payload)

	var truncated *ndp.TruncatedOptionError
	switch {
	case err == nil:
	case errors.As(err, &truncated):
		// Options decoded before the bad one are still usable.
		l.rec.DecodeError("truncated_option")
		l.logger.Warn().
			Str("router", router.String()).
			Uint8("option_type", truncated.Type).
			Int("declared", truncated.Declared).
			Int("remaining", truncated.Remaining).
			Msg("Dropping rest of advertisement after truncated option")
	case errors.Is(err, ndp.ErrNotRouterAdvertisement):
		// The BPF filter should have excluded these already.
		l.rec.DecodeError("not_ra")
		l.logger.Debug().Str("src", router.String()).Msg("Ignoring non-RA ICMPv6 packet")
		return
	default:
		l.rec.DecodeError("short_header")
		l.logger.Warn().Err(err).Str("src", router.String()).Msg("Dropping malformed Router Advertisement")
		return
	}

	l.logger.Debug().
		Str("router", router.String()).
		Int("options", len(ra.Options)).
		Hex("payload", ipv6.Payload).
		Msg("Router Advertisement received")

	for _, opt := range ra.Options {
		switch o := opt.(type) {
		case ndp.PrefixInformation:
			l.rec.OptionDecoded("prefix_info")
			l.logger.Debug().
				Str("prefix", o.Prefix.String()).
				Uint8("length", o.PrefixLength).
				Bool("on_link", o.OnLink).
				Bool("autonomous", o.Autonomous).
				Msg("Prefix Information option")
			l.handleCandidate(o.Prefix, o.PrefixLength, router)
		case ndp.RouteInformation:
			l.rec.OptionDecoded("route_info")
			l.logger.Debug().
				Str("prefix", o.Prefix.String()).
				Uint8("length", o.PrefixLength).
				Msg("Route Information option")
			l.handleCandidate(o.Prefix, o.PrefixLength, router)
		case ndp.RawOption:
			l.rec.OptionDecoded("other")
		}
	}
}

// handleCandidate takes one announced prefix through classification, the
// dedup store and, when warranted, the external configuration action.
func (l *Listener) handleCandidate(prefix netip.Addr, length uint8, router netip.Addr) {
	if !ndp.IsULA(prefix) {
		l.rec.PrefixIgnored()
		if l.cfg.Logging.LogIgnored && l.ignoredLog.Allow() {
			l.logger.Info().
				Str("prefix", prefix.String()).
				Uint8("length", length).
				Str("router", router.String()).
				Msg("Ignoring non-ULA prefix")
		}
		return
	}

	key := route.Key{
		Prefix: netip.PrefixFrom(prefix, int(length)),
		Router: router,
	}
	log := l.logger.With().
		Str("prefix", key.Prefix.String()).
		Str("router", key.Router.String()).
		Logger()

	state, seen := l.store.Lookup(key)
	if seen && state == route.StateConfigured {
		l.rec.DuplicateRoute()
		log.Info().Msg("Route already configured")
		return
	}

	if !seen {
		if prev, ok := l.store.PreviousRouter(key.Prefix); ok && prev != router {
			log.Info().Str("previous_router", prev.String()).Msg("Updating route to new router")
		} else {
			log.Info().Msg("Configuring new route")
		}
		l.store.RecordPending(key)
	} else {
		log.Info().Msg("Retrying route configuration")
	}

	res := l.configurer.Configure(key)
	l.rec.ConfigureAttempt(res.OK)
	if !res.OK {
		// The key stays pending; the next identical advertisement
		// retries.
		log.Error().Str("output", res.Output).Msg("Route configuration failed")
		return
	}

	if err := l.store.MarkConfigured(key); err != nil {
		log.Error().Err(err).Msg("Dedup store lost a pending route record")
		return
	}
	log.Info().Str("output", res.Output).Msg("Route configured")
}

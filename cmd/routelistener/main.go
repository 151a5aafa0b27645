package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"routelistener-go/pkg/capture"
	"routelistener-go/pkg/cmdsock"
	"routelistener-go/pkg/config"
	"routelistener-go/pkg/metrics"
	"routelistener-go/pkg/route"
	"routelistener-go/pkg/status"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Version and build information.
const (
	version = "0.1.0"
	build   = "1"
)

func main() {
	// Setup structured logging
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Command-line flags
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
	iface := flag.String("interface", "", "Network interface to monitor (overrides config)")
	logIgnored := flag.Bool("log-ignored", false, "Log ignored non-ULA prefixes")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("routelistener %s (build %s)\n", version, build)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading configuration")
	}
	if *iface != "" {
		cfg.Interface = *iface
	}
	if *logIgnored {
		cfg.Logging.LogIgnored = true
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}
	applyLogLevel(cfg.Logging.Level)

	log.Info().
		Str("version", version).
		Str("build", build).
		Str("iface", cfg.Interface).
		Bool("log_ignored", cfg.Logging.LogIgnored).
		Msg("Starting ICMPv6 RA route listener")
	log.Info().Strs("interfaces", interfaceNames()).Msg("Available interfaces")

	rec := metrics.Recorder(metrics.NewNoopRecorder())
	if cfg.Metrics.Enabled {
		rec = metrics.NewPrometheusRecorder()
	}

	store := route.NewStore()
	configurator := route.NewConfigurator(cfg, log.Logger)
	listener := capture.NewListener(cfg, store, configurator, rec, log.Logger)

	// Interface or permission problems abort here, before the listener
	// ever reaches the listening state.
	source, err := capture.NewSource(cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening capture source")
	}
	defer source.Close()

	statusServer := status.NewServer(cfg, store, listener, rec, log.Logger)
	go statusServer.Start()
	defer statusServer.Stop()

	cmdSock := cmdsock.NewListener(cfg.CmdSocket, commandHandler(cfg, store, listener), log.Logger)
	go cmdSock.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Prompt routers for an immediate advertisement instead of waiting
	// for their periodic timer.
	if err := source.SendRouterSolicitation(); err != nil {
		log.Warn().Err(err).Msg("Failed to send Router Solicitation")
	}
	if cfg.SolicitInterval > 0 {
		go solicitLoop(ctx, source, cfg.SolicitInterval)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		listener.Run(ctx, source.Packets())
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down...")
	cancel()
	// An in-flight configuration action finishes before the loop exits.
	<-done
}

func applyLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "", "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		log.Warn().Str("level", level).Msg("Unknown log level, using info")
	}
}

func interfaceNames() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(ifaces))
	for _, ifi := range ifaces {
		names = append(names, ifi.Name)
	}
	return names
}

func solicitLoop(ctx context.Context, source *capture.Source, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := source.SendRouterSolicitation(); err != nil {
				log.Warn().Err(err).Msg("Failed to send Router Solicitation")
			}
		}
	}
}

// commandHandler serves the inspection commands on the command socket.
func commandHandler(cfg *config.Config, store *route.Store, listener *capture.Listener) cmdsock.Handler {
	return func(cmd string) string {
		switch cmd {
		case "routes":
			records := store.Snapshot()
			if len(records) == 0 {
				return "no routes recorded"
			}
			var b strings.Builder
			for _, rec := range records {
				fmt.Fprintf(&b, "%s [%s]\n", rec.Key, rec.State)
			}
			return strings.TrimRight(b.String(), "\n")
		case "stats":
			return fmt.Sprintf("iface=%s state=%s routes=%d", cfg.Interface, listener.State(), store.Len())
		case "version":
			return fmt.Sprintf("routelistener %s (build %s)", version, build)
		default:
			return "ERROR: unknown command (try: routes, stats, version)"
		}
	}
}

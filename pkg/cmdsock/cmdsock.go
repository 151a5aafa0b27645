// Package cmdsock provides a line-oriented Unix socket for inspecting the
// running listener, e.g. with `echo routes | nc -U /run/routelistener.sock`.
package cmdsock

import (
	"bufio"
	"net"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Handler turns one command line into a response. It must be safe for
// concurrent use; connections are served on separate goroutines.
type Handler func(cmd string) string

// Listener serves commands on a Unix socket.
type Listener struct {
	path    string
	handler Handler
	logger  zerolog.Logger
}

// NewListener creates a command socket listener at path.
func NewListener(path string, handler Handler, logger zerolog.Logger) *Listener {
	return &Listener{
		path:    path,
		handler: handler,
		logger:  logger.With().Str("component", "cmdsock").Logger(),
	}
}

// Start accepts connections until the process exits. Intended to be called
// on its own goroutine.
func (l *Listener) Start() {
	if l.path == "" {
		l.logger.Info().Msg("Command socket path is not configured, listener disabled")
		return
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		l.logger.Error().Err(err).Msg("Failed to remove old command socket")
		return
	}

	listener, err := net.Listen("unix", l.path)
	if err != nil {
		l.logger.Error().Err(err).Msg("Failed to start command socket listener")
		return
	}
	defer listener.Close()

	l.logger.Info().Str("path", l.path).Msg("Command socket listener started")

	for {
		conn, err := listener.Accept()
		if err != nil {
			l.logger.Error().Err(err).Msg("Failed to accept command socket connection")
			continue
		}
		go l.handleConnection(conn)
	}
}

func (l *Listener) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		if cmd == "" {
			continue
		}
		l.logger.Debug().Str("cmd", cmd).Msg("Received command")

		resp := l.handler(cmd)
		if !strings.HasSuffix(resp, "\n") {
			resp += "\n"
		}
		if _, err := conn.Write([]byte(resp)); err != nil {
			l.logger.Error().Err(err).Msg("Failed to write command response")
			return
		}
	}

	if err := scanner.Err(); err != nil {
		l.logger.Error().Err(err).Msg("Error reading from command socket")
	}
}

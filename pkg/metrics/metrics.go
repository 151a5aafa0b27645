// Package metrics provides a standard interface for instrumenting the
// listener. A Prometheus-backed implementation and a no-op implementation
// are provided; the no-op one is used when metrics are disabled so callers
// never need nil checks.
package metrics

import "net/http"

// Recorder counts the events the listener cares about.
type Recorder interface {
	// PacketReceived counts one captured advertisement packet.
	PacketReceived()

	// DecodeError counts a packet or option that failed to decode.
	// kind is "not_ra", "short_header" or "truncated_option".
	DecodeError(kind string)

	// OptionDecoded counts one decoded option. kind is "prefix_info",
	// "route_info" or "other".
	OptionDecoded(kind string)

	// PrefixIgnored counts a non-ULA prefix that was classified away.
	PrefixIgnored()

	// DuplicateRoute counts an advertisement for an already configured
	// route.
	DuplicateRoute()

	// ConfigureAttempt counts one invocation of the external action and
	// its outcome.
	ConfigureAttempt(ok bool)

	// Handler returns an http.Handler exposing the metrics for scraping,
	// or nil if the backend has nothing to expose.
	Handler() http.Handler
}

// noopRecorder discards every event.
type noopRecorder struct{}

// NewNoopRecorder returns a recorder that does nothing.
func NewNoopRecorder() Recorder { return noopRecorder{} }

func (noopRecorder) PacketReceived()       {}
func (noopRecorder) DecodeError(string)    {}
func (noopRecorder) OptionDecoded(string)  {}
func (noopRecorder) PrefixIgnored()        {}
func (noopRecorder) DuplicateRoute()       {}
func (noopRecorder) ConfigureAttempt(bool) {}
func (noopRecorder) Handler() http.Handler { return nil }

package route

import (
	"os"
	"os/exec"
	"strings"

	"routelistener-go/pkg/config"

	"github.com/rs/zerolog"
)

// Result is the outcome of one configuration attempt. Output carries the
// action's combined stdout and stderr verbatim, for both outcomes.
type Result struct {
	OK     bool
	Output string
}

// Configurator invokes the external route configuration action. Parameters
// are passed as discrete environment variables, never interpolated into a
// command line, so prefix or router strings cannot be reinterpreted by a
// shell.
type Configurator struct {
	scriptPath string
	iface      string
	logger     zerolog.Logger
}

// NewConfigurator creates a configurator bound to the configured script and
// capture interface.
func NewConfigurator(cfg *config.Config, logger zerolog.Logger) *Configurator {
	return &Configurator{
		scriptPath: cfg.RouteScript,
		iface:      cfg.Interface,
		logger:     logger.With().Str("component", "configurator").Logger(),
	}
}

// Configure runs the external action for key and blocks until it exits.
// Every failure mode of the action, including a script that cannot be
// started at all, maps to a Result with OK=false; Configure never panics
// and never terminates the process.
//
// No timeout is applied: a hung action stalls the capture loop. That is an
// accepted limitation, advertisements repeat and nothing is lost but time.
func (c *Configurator) Configure(key Key) Result {
	env := append(os.Environ(),
		"PREFIX="+key.Prefix.String(),
		"ROUTER="+key.Router.String(),
		"IFACE="+c.iface,
	)

	c.logger.Debug().
		Str("prefix", key.Prefix.String()).
		Str("router", key.Router.String()).
		Str("iface", c.iface).
		Str("script", c.scriptPath).
		Msg("Invoking route configuration action")

	cmd := exec.Command(c.scriptPath)
	cmd.Env = env

	output, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(output))
	if err != nil {
		if text == "" {
			text = err.Error()
		} else {
			text = text + ": " + err.Error()
		}
		return Result{OK: false, Output: text}
	}
	return Result{OK: true, Output: text}
}

package system

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/bft-labs/frameship/internal/ports"
)

// DefaultCommandTimeout bounds supervisor and network commands.
const DefaultCommandTimeout = 30 * time.Second

// CommandRestarter implements ports.Restarter by running a shell command,
// typically "systemctl reboot". With no command it only logs; the daemon
// exits non-zero afterwards and the supervisor restarts it.
type CommandRestarter struct {
	command string
	timeout time.Duration
	logger  ports.Logger
	run     func(ctx context.Context, command string) ([]byte, error)
}

// NewCommandRestarter creates a restarter for command.
func NewCommandRestarter(command string, logger ports.Logger) *CommandRestarter {
	return &CommandRestarter{
		command: strings.TrimSpace(command),
		timeout: DefaultCommandTimeout,
		logger:  logger,
		run:     RunShell,
	}
}

// Restart runs the restart command.
func (r *CommandRestarter) Restart(ctx context.Context, reason string) error {
	if r.command == "" {
		r.logger.Warn("no restart command configured, exiting for supervisor restart",
			ports.String("reason", reason))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.logger.Error("restarting device",
		ports.String("reason", reason),
		ports.String("command", r.command),
	)
	if out, err := r.run(ctx, r.command); err != nil {
		return fmt.Errorf("restart command %q: %w: %s", r.command, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// RunShell runs command through /bin/sh and returns its combined output.
func RunShell(ctx context.Context, command string) ([]byte, error) {
	return exec.CommandContext(ctx, "/bin/sh", "-c", command).CombinedOutput()
}

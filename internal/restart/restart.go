// internal/restart/restart.go
package restart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// Rebooter restarts the device.
type Rebooter interface {
	Reboot() error
}

// Command reboots by running an external command, e.g. systemctl reboot.
type Command struct {
	Argv    []string
	Timeout time.Duration
}

func (c Command) Reboot() error {
	if len(c.Argv) == 0 {
		return errors.New("restart: empty command")
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	slog.Warn("rebooting", "component", "restart", "cmd", c.Argv)
	out, err := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("restart: %s: %w: %s", c.Argv[0], err, out)
	}
	return nil
}

// Exit stops the process with Code and lets the supervisor start the new image.
type Exit struct {
	Code int

	exit func(int)
}

func (e Exit) Reboot() error {
	slog.Warn("exiting for restart", "component", "restart", "code", e.Code)
	f := e.exit
	if f == nil {
		f = os.Exit
	}
	f(e.Code)
	return nil
}

// New picks Command when argv is set, otherwise Exit.
func New(argv []string) Rebooter {
	if len(argv) > 0 {
		return Command{Argv: argv}
	}
	// 75 (EX_TEMPFAIL) tells the unit file to restart
	return Exit{Code: 75}
}

package system

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-systemd/daemon"

	"github.com/bft-labs/frameship/pkg/log"
)

type notifyRecorder struct{ states []string }

func (n *notifyRecorder) notify(state string) (bool, error) {
	n.states = append(n.states, state)
	return true, nil
}

func TestWatchdog_RateLimitsPings(t *testing.T) {
	rec := &notifyRecorder{}
	now := time.Unix(0, 0)
	w := newWatchdog(30*time.Second, rec.notify, log.NewNoopLogger(), func() time.Time { return now })

	for i := 0; i < 30; i++ {
		w.Service()
		now = now.Add(time.Second)
	}

	// Pings at 0s, 10s and 20s.
	if len(rec.states) != 3 {
		t.Fatalf("pings = %d, want 3", len(rec.states))
	}
	for _, s := range rec.states {
		if s != daemon.SdNotifyWatchdog {
			t.Errorf("state = %q, want %q", s, daemon.SdNotifyWatchdog)
		}
	}
}

func TestWatchdog_Disabled(t *testing.T) {
	rec := &notifyRecorder{}
	w := newWatchdog(0, rec.notify, log.NewNoopLogger(), time.Now)

	w.Service()
	if w.Enabled() || len(rec.states) != 0 {
		t.Errorf("disabled watchdog pinged: %v", rec.states)
	}

	w.Ready()
	w.Stopping()
	if len(rec.states) != 2 || rec.states[0] != daemon.SdNotifyReady || rec.states[1] != daemon.SdNotifyStopping {
		t.Errorf("notifications = %v", rec.states)
	}
}

func TestCommandRestarter(t *testing.T) {
	var ran []string
	r := NewCommandRestarter(" systemctl reboot ", log.NewNoopLogger())
	r.run = func(ctx context.Context, command string) ([]byte, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("restart command has no deadline")
		}
		ran = append(ran, command)
		return nil, nil
	}

	if err := r.Restart(context.Background(), "reinit_failures"); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	if len(ran) != 1 || ran[0] != "systemctl reboot" {
		t.Errorf("ran = %v", ran)
	}
}

func TestCommandRestarter_Failure(t *testing.T) {
	r := NewCommandRestarter("reboot", log.NewNoopLogger())
	r.run = func(ctx context.Context, command string) ([]byte, error) {
		return []byte("permission denied\n"), errors.New("exit status 1")
	}

	err := r.Restart(context.Background(), "test")
	if err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("Restart() error = %v, want command output", err)
	}
}

func TestCommandRestarter_NoCommand(t *testing.T) {
	r := NewCommandRestarter("", log.NewNoopLogger())
	r.run = func(ctx context.Context, command string) ([]byte, error) {
		t.Fatal("command run with none configured")
		return nil, nil
	}
	if err := r.Restart(context.Background(), "test"); err != nil {
		t.Errorf("Restart() error = %v", err)
	}
}

func TestRunShell(t *testing.T) {
	out, err := RunShell(context.Background(), "echo frameship")
	if err != nil {
		t.Skipf("no shell available: %v", err)
	}
	if strings.TrimSpace(string(out)) != "frameship" {
		t.Errorf("output = %q", out)
	}
}

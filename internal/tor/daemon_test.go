package tor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeProcess struct {
	addr    string
	stopped atomic.Int32
}

func (p *fakeProcess) SocksAddr() string { return p.addr }

func (p *fakeProcess) Stop() error {
	p.stopped.Add(1)
	return nil
}

func newTestDaemon(launch launchFunc) *Daemon {
	d := NewDaemon()
	d.launch = launch
	return d
}

func TestNewDaemon(t *testing.T) {
	t.Parallel()

	t.Run("uses the default startup timeout", func(t *testing.T) {
		t.Parallel()

		if d := NewDaemon(); d.startupTimeout != DefaultStartupTimeout {
			t.Errorf("startupTimeout = %v, want %v", d.startupTimeout, DefaultStartupTimeout)
		}
	})

	t.Run("applies WithStartupTimeout", func(t *testing.T) {
		t.Parallel()

		if d := NewDaemon(WithStartupTimeout(time.Minute)); d.startupTimeout != time.Minute {
			t.Errorf("startupTimeout = %v, want 1m", d.startupTimeout)
		}
	})

	t.Run("is not running before Start", func(t *testing.T) {
		t.Parallel()

		d := NewDaemon()
		if d.Running() {
			t.Error("expected a fresh daemon not to run")
		}
		if _, err := d.ProxyURL(); !errors.Is(err, ErrNotRunning) {
			t.Errorf("ProxyURL() error = %v, want %v", err, ErrNotRunning)
		}
		if err := d.Stop(); err != nil {
			t.Errorf("Stop() on an unstarted daemon = %v", err)
		}
	})
}

func TestDaemonStart(t *testing.T) {
	t.Parallel()

	t.Run("exposes the SOCKS port as proxy URL", func(t *testing.T) {
		t.Parallel()

		proc := &fakeProcess{addr: "127.0.0.1:42715"}
		d := newTestDaemon(func(time.Duration) (process, error) { return proc, nil })
		if err := d.Start(context.Background()); err != nil {
			t.Fatalf("Start() = %v", err)
		}

		got, err := d.ProxyURL()
		if err != nil || got != "socks5://127.0.0.1:42715" {
			t.Errorf("ProxyURL() = %q, %v", got, err)
		}

		if err := d.Stop(); err != nil {
			t.Fatalf("Stop() = %v", err)
		}
		if err := d.Stop(); err != nil {
			t.Fatalf("second Stop() = %v", err)
		}
		if n := proc.stopped.Load(); n != 1 {
			t.Errorf("process stopped %d times, want 1", n)
		}
	})

	t.Run("fills in loopback for a wildcard listener", func(t *testing.T) {
		t.Parallel()

		d := newTestDaemon(func(time.Duration) (process, error) { return &fakeProcess{addr: ":9150"}, nil })
		if err := d.Start(context.Background()); err != nil {
			t.Fatalf("Start() = %v", err)
		}
		if got, _ := d.ProxyURL(); got != "socks5://127.0.0.1:9150" {
			t.Errorf("ProxyURL() = %q", got)
		}
	})

	t.Run("starts only once", func(t *testing.T) {
		t.Parallel()

		var launches atomic.Int32
		d := newTestDaemon(func(time.Duration) (process, error) {
			launches.Add(1)
			return &fakeProcess{addr: "127.0.0.1:1"}, nil
		})
		for range 2 {
			if err := d.Start(context.Background()); err != nil {
				t.Fatalf("Start() = %v", err)
			}
		}
		if n := launches.Load(); n != 1 {
			t.Errorf("launched %d times, want 1", n)
		}
	})

	t.Run("passes the startup timeout to the launcher", func(t *testing.T) {
		t.Parallel()

		var got time.Duration
		d := newTestDaemon(func(timeout time.Duration) (process, error) {
			got = timeout
			return &fakeProcess{addr: "127.0.0.1:1"}, nil
		})
		d.startupTimeout = 42 * time.Second
		if err := d.Start(context.Background()); err != nil {
			t.Fatalf("Start() = %v", err)
		}
		if got != 42*time.Second {
			t.Errorf("launcher timeout = %v, want 42s", got)
		}
	})

	t.Run("wraps launch failures", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("tor binary not found")
		d := newTestDaemon(func(time.Duration) (process, error) { return nil, boom })
		if err := d.Start(context.Background()); !errors.Is(err, boom) {
			t.Errorf("Start() = %v, want wrapped %v", err, boom)
		}
		if d.Running() {
			t.Error("expected daemon not to run after a failed launch")
		}
	})

	t.Run("stops a daemon that bootstraps after cancellation", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		proc := &fakeProcess{addr: "127.0.0.1:1"}
		d := newTestDaemon(func(time.Duration) (process, error) {
			<-release
			return proc, nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := d.Start(ctx); !errors.Is(err, context.Canceled) {
			t.Fatalf("Start() = %v, want %v", err, context.Canceled)
		}
		close(release)

		deadline := time.Now().Add(5 * time.Second)
		for proc.stopped.Load() == 0 {
			if time.Now().After(deadline) {
				t.Fatal("late process was not stopped")
			}
			time.Sleep(5 * time.Millisecond)
		}
		if d.Running() {
			t.Error("expected daemon not to run after a cancelled start")
		}
	})
}

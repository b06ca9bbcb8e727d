package tor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/nao1215/tornago"
)

// ErrNotRunning is returned when the proxy address of a daemon that has
// not been started is requested.
var ErrNotRunning = errors.New("embedded Tor daemon is not running")

// DefaultStartupTimeout bounds the bootstrap.
const DefaultStartupTimeout = 3 * time.Minute

// process is the part of a running Tor daemon the Daemon uses.
type process interface {
	SocksAddr() string
	Stop() error
}

// launchFunc starts a Tor daemon and blocks until it has bootstrapped.
type launchFunc func(startupTimeout time.Duration) (process, error)

// Daemon owns one embedded Tor process.
type Daemon struct {
	mu             sync.Mutex
	proc           process
	startupTimeout time.Duration
	launch         launchFunc
	logger         *slog.Logger
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithStartupTimeout sets the maximum bootstrap time.
func WithStartupTimeout(timeout time.Duration) Option {
	return func(d *Daemon) {
		if timeout > 0 {
			d.startupTimeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Daemon) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDaemon returns a Daemon. Call Start to launch Tor.
func NewDaemon(opts ...Option) *Daemon {
	d := &Daemon{
		startupTimeout: DefaultStartupTimeout,
		launch:         launchTornago,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// launchTornago starts Tor on OS-assigned SOCKS and control ports.
func launchTornago(startupTimeout time.Duration) (process, error) {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(startupTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Tor launch config: %w", err)
	}
	proc, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return nil, err
	}
	return proc, nil
}

type launchResult struct {
	proc process
	err  error
}

// Start launches Tor and waits until it has bootstrapped or ctx is done.
// A daemon that finishes bootstrapping after ctx is done is stopped.
// Starting a running Daemon is a no-op.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.proc != nil {
		return nil
	}

	d.logger.Info("starting embedded Tor daemon", "timeout", d.startupTimeout)
	started := time.Now()

	done := make(chan launchResult, 1)
	go func() {
		proc, err := d.launch(d.startupTimeout)
		done <- launchResult{proc: proc, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if res := <-done; res.err == nil {
				_ = res.proc.Stop()
			}
		}()
		return ctx.Err()
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("failed to start embedded Tor daemon: %w", res.err)
		}
		d.proc = res.proc
	}

	d.logger.Info("embedded Tor daemon ready",
		"socks", d.proc.SocksAddr(),
		"elapsed", time.Since(started).Round(time.Second))
	return nil
}

// Stop shuts Tor down. It is safe on a stopped or unstarted Daemon.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.proc == nil {
		return nil
	}
	err := d.proc.Stop()
	d.proc = nil
	return err
}

// Running reports whether the daemon has bootstrapped and not stopped.
func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.proc != nil
}

// ProxyURL returns the SOCKS5 proxy URL of the running daemon, suitable
// for both the HTTP client and Chrome's --proxy-server.
func (d *Daemon) ProxyURL() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.proc == nil {
		return "", ErrNotRunning
	}
	return "socks5://" + loopback(d.proc.SocksAddr()), nil
}

// loopback fills in 127.0.0.1 for a listener address without a host.
func loopback(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || (host != "" && host != "0.0.0.0" && host != "::") {
		return addr
	}
	return net.JoinHostPort("127.0.0.1", port)
}

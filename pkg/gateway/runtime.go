package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coralrelay/pkg/channel"
)

const (
	defaultHost          = "0.0.0.0"
	defaultProbeInterval = 30 * time.Second
	shutdownTimeout      = 5 * time.Second
)

// Runtime serves one tier: its HTTP surface, the periodic downstream probe
// and any chat channels bound to it.
type Runtime struct {
	Name          string
	Host          string
	Port          int
	Handler       http.Handler
	Monitor       *Monitor
	ProbeInterval time.Duration

	Channels       []channel.Adapter
	ChannelHandler channel.Handler

	Log *slog.Logger
}

// Address joins host and port, defaulting the host to all interfaces.
func Address(host string, port int) string {
	host = strings.TrimSpace(host)
	if host == "" {
		host = defaultHost
	}

	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Run blocks until ctx ends or a component fails. A failing initial probe is
// logged but does not stop the tier; /readyz reports it instead.
func (r *Runtime) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.Handler == nil {
		return errors.New("handler is required")
	}
	if len(r.Channels) > 0 && r.ChannelHandler == nil {
		return errors.New("channel handler is required")
	}

	log := r.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "gateway.runtime", "tier", r.Name)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.Monitor != nil {
		if err := r.Monitor.Check(ctx); err != nil {
			log.Warn("Initial downstream probe failed", "error", err)
		}

		interval := r.ProbeInterval
		if interval <= 0 {
			interval = defaultProbeInterval
		}
		go r.Monitor.Watch(ctx, interval)
	}

	errCh := make(chan error, len(r.Channels)+1)
	go func() {
		if err := Serve(ctx, Address(r.Host, r.Port), r.Handler, log); err != nil {
			errCh <- err
		}
	}()

	for _, adapter := range r.Channels {
		r.setChannelState(adapter.Name(), ChannelState{Running: true})

		go func() {
			err := adapter.Run(ctx, r.ChannelHandler)
			r.setChannelState(adapter.Name(), ChannelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (r *Runtime) setChannelState(name string, state ChannelState) {
	if r.Monitor != nil {
		r.Monitor.SetChannelState(name, state)
	}
}

// Serve runs an HTTP server on addr until ctx ends, then shuts it down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, log *slog.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	return ServeListener(ctx, listener, handler, log)
}

// ServeListener is Serve over an existing listener.
func ServeListener(ctx context.Context, listener net.Listener, handler http.Handler, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("HTTP server started", "address", listener.Addr().String())
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}

	return nil
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}

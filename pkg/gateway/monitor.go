package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"coralrelay/pkg/relay"
)

// ProbeFunc checks the tier's downstream dependency.
type ProbeFunc func(ctx context.Context) error

// ChannelState reports whether one chat channel adapter is running.
type ChannelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

// StatusResponse is served by /healthz, /readyz and /status.
type StatusResponse struct {
	Status             string                  `json:"status"`
	Tier               string                  `json:"tier"`
	UptimeSeconds      int64                   `json:"uptime_seconds"`
	DownstreamLastOKAt string                  `json:"downstream_last_ok_at,omitempty"`
	DownstreamLastErr  string                  `json:"downstream_last_error,omitempty"`
	Channels           map[string]ChannelState `json:"channels,omitempty"`
	View               any                     `json:"view,omitempty"`
}

// Monitor tracks uptime, the outcome of the last downstream probe and the
// state of attached channels.
type Monitor struct {
	tier  string
	probe ProbeFunc
	view  func() any
	log   *slog.Logger

	mu            sync.RWMutex
	startedAt     time.Time
	lastOKAt      time.Time
	lastErr       string
	channelStates map[string]ChannelState
}

func NewMonitor(tier string, probe ProbeFunc, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}

	return &Monitor{
		tier:          tier,
		probe:         probe,
		log:           log.With("component", "gateway.monitor", "tier", tier),
		startedAt:     time.Now().UTC(),
		channelStates: make(map[string]ChannelState),
	}
}

// SetView attaches extra state reported under "view" by /status.
func (m *Monitor) SetView(view func() any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view = view
}

// Check runs the probe and records its outcome.
func (m *Monitor) Check(ctx context.Context) error {
	if m.probe == nil {
		m.Record(nil)
		return nil
	}

	err := m.probe(ctx)
	m.Record(err)
	return err
}

// Record stores a probe outcome observed elsewhere, such as a passthrough
// health request.
func (m *Monitor) Record(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		if m.lastErr == "" {
			m.log.Warn("Downstream probe failed", "error", relay.MessageFromError(err))
		}
		m.lastErr = relay.MessageFromError(err)
		return
	}

	if m.lastErr != "" {
		m.log.Info("Downstream probe recovered")
	}
	m.lastErr = ""
	m.lastOKAt = time.Now().UTC()
}

// Watch re-probes every interval until ctx ends.
func (m *Monitor) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = m.Check(ctx)
		}
	}
}

func (m *Monitor) SetChannelState(name string, state ChannelState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelStates[name] = state
}

// IsReady reports whether the last probe succeeded and, when channels are
// attached, at least one of them is running.
func (m *Monitor) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastOKAt.IsZero() || m.lastErr != "" {
		return false
	}
	if len(m.channelStates) == 0 {
		return true
	}

	for _, state := range m.channelStates {
		if state.Running {
			return true
		}
	}

	return false
}

func (m *Monitor) Snapshot(status string) StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()

	response := StatusResponse{
		Status:            status,
		Tier:              m.tier,
		UptimeSeconds:     int64(time.Since(m.startedAt).Seconds()),
		DownstreamLastErr: m.lastErr,
	}
	if !m.lastOKAt.IsZero() {
		response.DownstreamLastOKAt = m.lastOKAt.Format(time.RFC3339)
	}
	if len(m.channelStates) > 0 {
		response.Channels = make(map[string]ChannelState, len(m.channelStates))
		for name, state := range m.channelStates {
			response.Channels[name] = state
		}
	}
	if m.view != nil {
		response.View = m.view()
	}

	return response
}

// Register mounts the probe endpoints on mux.
func (m *Monitor) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", m.handleHealth)
	mux.HandleFunc("GET /readyz", m.handleReady)
	mux.HandleFunc("GET /status", m.handleStatus)
}

func (m *Monitor) handleHealth(w http.ResponseWriter, _ *http.Request) {
	relay.WriteJSON(w, m.log, http.StatusOK, m.Snapshot(relay.StatusOK))
}

func (m *Monitor) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !m.IsReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	relay.WriteJSON(w, m.log, statusCode, m.Snapshot(status))
}

func (m *Monitor) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := "ready"
	if !m.IsReady() {
		status = "not_ready"
	}

	relay.WriteJSON(w, m.log, http.StatusOK, m.Snapshot(status))
}

// Package http implements the transport session that uploads frames to the
// collector.
//
// Frame uploads are written as raw HTTP/1.1 on a net.Conn so every chunk can
// carry its own write deadline. Registration is an ordinary request through
// an injected ports.HTTPClient.
package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bft-labs/frameship/internal/backoff"
	"github.com/bft-labs/frameship/internal/domain"
	"github.com/bft-labs/frameship/internal/ports"
	"github.com/bft-labs/frameship/pkg/log"
)

// Transport defaults.
const (
	DefaultConnectTimeout    = 5 * time.Second
	DefaultConnectRetryDelay = 100 * time.Millisecond
	DefaultChunkSize         = 4096
	DefaultChunkTimeout      = 2 * time.Second
	DefaultTransferTimeout   = 10 * time.Second
	DefaultAckTimeout        = 500 * time.Millisecond
	DefaultRegisterTimeout   = 3 * time.Second
	DefaultDeviceType        = "camera"
)

// ConnState is the state of the upload connection.
type ConnState int

const (
	Closed ConnState = iota
	Connecting
	Open
	Draining
)

// String returns a human-readable representation of the connection state.
func (s ConnState) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Connecting:
		return "Connecting"
	case Open:
		return "Open"
	case Draining:
		return "Draining"
	default:
		return "Unknown"
	}
}

// DialFunc opens a connection. It matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Config configures a Session.
type Config struct {
	// ServiceURL is the collector base URL, e.g. http://192.168.4.1:8000.
	ServiceURL      string
	Mode            domain.Mode
	DeviceType      string
	RegisterTimeout time.Duration
	Tunables        domain.TransportTunables
}

// Deps are optional collaborators. Nil fields get defaults.
type Deps struct {
	Dial        DialFunc
	Client      ports.HTTPClient
	Housekeeper ports.Housekeeper
	Logger      ports.Logger
}

// Session implements ports.TunableTransport. It owns at most one upload
// connection and is not safe for concurrent SendFrame calls.
type Session struct {
	cfg     Config
	baseURL string
	host    string
	addr    string
	path    string

	dial   DialFunc
	client ports.HTTPClient
	house  ports.Housekeeper
	logger ports.Logger

	mu    sync.Mutex
	tun   domain.TransportTunables
	state ConnState

	// stream mode only
	stream       net.Conn
	streamDevice string
}

// NewSession validates cfg and creates a session. No connection is opened.
func NewSession(cfg Config, deps Deps) (*Session, error) {
	u, err := url.Parse(strings.TrimRight(cfg.ServiceURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse service url: %w", err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("service url %q: only http is supported", cfg.ServiceURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("service url %q: missing host", cfg.ServiceURL)
	}
	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "80")
	}

	switch cfg.Mode {
	case "":
		cfg.Mode = domain.ModeDiscrete
	case domain.ModeDiscrete, domain.ModeStream:
	default:
		return nil, fmt.Errorf("unknown transport mode %q", cfg.Mode)
	}
	if cfg.DeviceType == "" {
		cfg.DeviceType = DefaultDeviceType
	}
	if cfg.RegisterTimeout <= 0 {
		cfg.RegisterTimeout = DefaultRegisterTimeout
	}

	if deps.Dial == nil {
		deps.Dial = (&net.Dialer{}).DialContext
	}
	if deps.Client == nil {
		deps.Client = &http.Client{}
	}
	if deps.Logger == nil {
		deps.Logger = log.NewNoopLogger()
	}

	s := &Session{
		cfg:     cfg,
		baseURL: u.String(),
		host:    u.Host,
		addr:    addr,
		path:    u.EscapedPath(),
		dial:    deps.Dial,
		client:  deps.Client,
		house:   deps.Housekeeper,
		logger:  deps.Logger,
	}
	s.Configure(cfg.Tunables)
	return s, nil
}

// Configure replaces the transport tunables. Zero fields take defaults.
func (s *Session) Configure(t domain.TransportTunables) {
	if t.ConnectTimeout <= 0 {
		t.ConnectTimeout = DefaultConnectTimeout
	}
	if t.ConnectRetryDelay <= 0 {
		t.ConnectRetryDelay = DefaultConnectRetryDelay
	}
	if t.ChunkSize <= 0 {
		t.ChunkSize = DefaultChunkSize
	}
	if t.ChunkTimeout <= 0 {
		t.ChunkTimeout = DefaultChunkTimeout
	}
	if t.TransferTimeout <= 0 {
		t.TransferTimeout = DefaultTransferTimeout
	}
	if t.AckTimeout < 0 {
		t.AckTimeout = 0
	}

	s.mu.Lock()
	s.tun = t
	s.mu.Unlock()
}

// Tunables returns the effective transport tunables.
func (s *Session) Tunables() domain.TransportTunables {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tun
}

// State returns the connection state.
func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st ConnState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// SendFrame uploads one frame in the configured mode. It never releases the
// frame and keeps no reference to its bytes after returning.
func (s *Session) SendFrame(ctx context.Context, deviceID string, f *domain.Frame) domain.Delivery {
	start := time.Now()
	tun := s.Tunables()

	var d domain.Delivery
	if s.cfg.Mode == domain.ModeStream {
		d = s.sendStream(ctx, deviceID, f, tun)
	} else {
		d = s.sendDiscrete(ctx, deviceID, f, tun)
	}
	d.Total = f.Len()
	d.Duration = time.Since(start)
	return d
}

// Close drops any open connection.
func (s *Session) Close() error {
	if s.stream == nil {
		return nil
	}
	return s.closeStream(true)
}

func (s *Session) uploadPath(deviceID string) string {
	return s.path + "/upload/" + url.PathEscape(deviceID)
}

// connect dials the collector, retrying with a fixed delay until the connect
// deadline.
func (s *Session) connect(ctx context.Context, tun domain.TransportTunables) (net.Conn, error) {
	s.setState(Connecting)

	var conn net.Conn
	policy := backoff.Policy{
		Deadline:       tun.ConnectTimeout,
		AttemptTimeout: tun.ConnectTimeout,
		Delay:          backoff.Fixed(tun.ConnectRetryDelay),
	}
	err := backoff.Retry(ctx, policy, func(ctx context.Context, attempt int) error {
		if s.house != nil {
			s.house.Service()
		}
		c, err := s.dial(ctx, "tcp", s.addr)
		if err != nil {
			s.logger.Debug("connect attempt failed",
				ports.Int("attempt", attempt),
				ports.String("addr", s.addr),
				ports.Err(err),
			)
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		s.setState(Closed)
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrConnect, s.addr, err)
	}

	s.setState(Open)
	return conn, nil
}

// drop closes conn and returns the session to Closed.
func (s *Session) drop(conn net.Conn) {
	s.setState(Draining)
	if err := conn.Close(); err != nil {
		s.logger.Debug("close connection", ports.Err(err))
	}
	s.setState(Closed)
}

package chanstream

import (
	"time"

	"github.com/nats-io/nats.go"
)

// Defaults per spec §6.
const (
	Version                   = "1.0.0"
	DefaultNatsURL            = nats.DefaultURL
	DefaultConnectWait        = 2 * time.Second
	DefaultAckTimeout         = 30 * time.Second
	DefaultDiscoverPrefix     = "_STAN.discover"
	DefaultACKPrefix          = "_STAN.acks"
	DefaultMaxPubAcksInflight = 16384
	DefaultPingInterval       = 5 * time.Second
	DefaultPingMaxOut         = 3
	protocolVersion           = 1
)

// ConnectionLostHandler is invoked exactly once per session when the
// Pinger declares the session lost.
type ConnectionLostHandler func(conn *Connection, reason error)

// Options configures a Connect call. Build one with functional Option
// values rather than setting fields directly.
type Options struct {
	NatsURL            []string
	NatsConn           *nats.Conn
	ConnectTimeout     time.Duration
	AckTimeout         time.Duration
	DiscoverPrefix     string
	MaxPubAcksInFlight int
	// PubAckPendingMessageLimit bounds the in-flight message count
	// independently of MaxPubAcksInFlight admission; <0 means unlimited,
	// 0 is rejected at validation time.
	PubAckPendingMessageLimit int
	// PubAckPendingBytesLimit bounds the cumulative payload size of live
	// publish records; <0 means unlimited, 0 is rejected.
	PubAckPendingBytesLimit int64
	PingInterval            time.Duration
	PingMaxOut              int
	ConnectionLostHandler   ConnectionLostHandler
	Logger                  Logger
	AckWorkers              int

	natsExtra []nats.Option
}

// DefaultOptions is the base Options value every Connect starts from.
var DefaultOptions = Options{
	NatsURL:                   []string{DefaultNatsURL},
	ConnectTimeout:            DefaultConnectWait,
	AckTimeout:                DefaultAckTimeout,
	DiscoverPrefix:            DefaultDiscoverPrefix,
	MaxPubAcksInFlight:        DefaultMaxPubAcksInflight,
	PubAckPendingMessageLimit: DefaultMaxPubAcksInflight,
	PubAckPendingBytesLimit:   -1,
	PingInterval:              DefaultPingInterval,
	PingMaxOut:                DefaultPingMaxOut,
	Logger:                    noopLogger{},
}

func (o *Options) validate() error {
	if o.ConnectTimeout <= 0 {
		return &ConfigurationError{Field: "ConnectTimeout", Reason: "must be > 0"}
	}
	if o.AckTimeout <= 0 {
		return &ConfigurationError{Field: "AckTimeout", Reason: "must be > 0"}
	}
	if o.DiscoverPrefix == "" {
		return &ConfigurationError{Field: "DiscoverPrefix", Reason: "must not be empty"}
	}
	if o.MaxPubAcksInFlight <= 0 {
		return &ConfigurationError{Field: "MaxPubAcksInFlight", Reason: "must be > 0"}
	}
	if o.PubAckPendingMessageLimit == 0 {
		return &ConfigurationError{Field: "PubAckPendingMessageLimit", Reason: "must not be 0 (negative means unlimited)"}
	}
	if o.PubAckPendingBytesLimit == 0 {
		return &ConfigurationError{Field: "PubAckPendingBytesLimit", Reason: "must not be 0 (negative means unlimited)"}
	}
	if o.PingInterval <= 0 {
		return &ConfigurationError{Field: "PingInterval", Reason: "must be > 0"}
	}
	if o.PingMaxOut < 3 {
		return &ConfigurationError{Field: "PingMaxOut", Reason: "must be >= 3 so one lost ping can be ignored"}
	}
	return nil
}

// Option configures an Options value at Connect time.
type Option func(*Options) error

// NatsURL sets the bus URL(s) to dial when no user connection is supplied.
func NatsURL(urls ...string) Option {
	return func(o *Options) error {
		if len(urls) == 0 {
			return &ConfigurationError{Field: "NatsURL", Reason: "must supply at least one URL"}
		}
		o.NatsURL = urls
		return nil
	}
}

// NatsConn injects a pre-built bus connection. Its reconnect buffering
// must already be disabled (see ValidateUserBusConn); the library never
// closes a connection it didn't create.
func NatsConn(nc *nats.Conn) Option {
	return func(o *Options) error {
		o.NatsConn = nc
		return nil
	}
}

// ConnectWait sets the handshake reply deadline.
func ConnectWait(t time.Duration) Option {
	return func(o *Options) error {
		o.ConnectTimeout = t
		return nil
	}
}

// PubAckWait sets the per-publish ack deadline.
func PubAckWait(t time.Duration) Option {
	return func(o *Options) error {
		o.AckTimeout = t
		return nil
	}
}

// DiscoverPrefix overrides the discovery subject prefix; it must match
// the server's configuration.
func DiscoverPrefix(prefix string) Option {
	return func(o *Options) error {
		o.DiscoverPrefix = prefix
		return nil
	}
}

// MaxPubAcksInflight bounds the number of publishes outstanding at once.
func MaxPubAcksInflight(n int) Option {
	return func(o *Options) error {
		o.MaxPubAcksInFlight = n
		o.PubAckPendingMessageLimit = n
		return nil
	}
}

// PubAckPendingMessageLimit independently bounds in-flight message count;
// a negative value means unlimited.
func PubAckPendingMessageLimit(n int) Option {
	return func(o *Options) error {
		o.PubAckPendingMessageLimit = n
		return nil
	}
}

// PubAckPendingBytesLimit bounds cumulative in-flight payload size; a
// negative value means unlimited.
func PubAckPendingBytesLimit(n int64) Option {
	return func(o *Options) error {
		o.PubAckPendingBytesLimit = n
		return nil
	}
}

// PingInterval sets the cadence of the Pinger's liveness checks. The
// server may negotiate this down at handshake time.
func PingInterval(d time.Duration) Option {
	return func(o *Options) error {
		o.PingInterval = d
		return nil
	}
}

// PingMaxOut sets how many consecutive failed pings declare the session
// lost; must be >= 3 so a single lost ping doesn't flap the session.
func PingMaxOut(n int) Option {
	return func(o *Options) error {
		o.PingMaxOut = n
		return nil
	}
}

// SetConnectionLostHandler registers the callback invoked exactly once
// when the Pinger declares the session lost.
func SetConnectionLostHandler(h ConnectionLostHandler) Option {
	return func(o *Options) error {
		o.ConnectionLostHandler = h
		return nil
	}
}

// SetLogger installs a Logger for the session's internal diagnostics.
func SetLogger(l Logger) Option {
	return func(o *Options) error {
		if l == nil {
			l = noopLogger{}
		}
		o.Logger = l
		return nil
	}
}

// SetAckWorkers overrides the ack-dispatcher worker pool size (Q1);
// defaults to runtime.GOMAXPROCS(0), minimum 2.
func SetAckWorkers(n int) Option {
	return func(o *Options) error {
		if n <= 0 {
			return &ConfigurationError{Field: "AckWorkers", Reason: "must be > 0"}
		}
		o.AckWorkers = n
		return nil
	}
}

package chanstream

import (
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

// errBusRequestTimeout is the internal marker translated into the
// taxonomy's *TimeoutError types at each call site; callers never see it
// directly.
var errBusRequestTimeout = errors.New("chanstream: core bus request timeout")

// BusMsg is the narrow, bus-agnostic shape the session works with instead
// of reaching into *nats.Msg directly, per the external-interface contract
// in spec §6.
type BusMsg struct {
	Subject string
	Reply   string
	Data    []byte
}

// BusSubscription is the handle returned by BusConn.Subscribe.
type BusSubscription interface {
	Unsubscribe() error
}

// BusConn is the narrow contract the session requires of the underlying
// core-bus connection: publish, request/reply, subscribe-with-callback,
// inbox generation, and liveness flags. Outside of this file, nats.go is
// used only to dial and hand back the connection (client.go), for option
// types (options.go), and for NKey auth (auth.go).
type BusConn interface {
	Publish(subject string, data []byte) error
	PublishRequest(subject, reply string, data []byte) error
	Request(subject string, data []byte, timeout time.Duration) (*BusMsg, error)
	Subscribe(subject string, cb func(*BusMsg)) (BusSubscription, error)
	NewInbox() string
	IsClosed() bool
	IsReconnecting() bool
	Close()
}

type natsBusConn struct {
	nc *nats.Conn
}

// WrapNatsConn adapts a *nats.go Conn to the BusConn contract. Used both
// for connections the library dials itself and for a caller-supplied
// connection passed via NatsConn(nc).
func WrapNatsConn(nc *nats.Conn) BusConn {
	return &natsBusConn{nc: nc}
}

func (b *natsBusConn) Publish(subject string, data []byte) error {
	return b.nc.Publish(subject, data)
}

func (b *natsBusConn) PublishRequest(subject, reply string, data []byte) error {
	return b.nc.PublishRequest(subject, reply, data)
}

func (b *natsBusConn) Request(subject string, data []byte, timeout time.Duration) (*BusMsg, error) {
	m, err := b.nc.Request(subject, data, timeout)
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) {
			return nil, errBusRequestTimeout
		}
		return nil, err
	}
	return &BusMsg{Subject: m.Subject, Reply: m.Reply, Data: m.Data}, nil
}

func (b *natsBusConn) Subscribe(subject string, cb func(*BusMsg)) (BusSubscription, error) {
	sub, err := b.nc.Subscribe(subject, func(m *nats.Msg) {
		cb(&BusMsg{Subject: m.Subject, Reply: m.Reply, Data: m.Data})
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (b *natsBusConn) NewInbox() string { return b.nc.NewInbox() }
func (b *natsBusConn) IsClosed() bool   { return b.nc.IsClosed() }

func (b *natsBusConn) IsReconnecting() bool { return b.nc.IsReconnecting() }
func (b *natsBusConn) Close()               { b.nc.Close() }

// ValidateUserBusConn enforces the one configuration requirement spec §6
// places on a caller-supplied bus connection: reconnect buffering must be
// disabled, since buffered publishes during a reconnect defeat both
// ack-wait semantics and publish-on-closed detection.
func ValidateUserBusConn(nc *nats.Conn) error {
	if nc == nil {
		return &ConfigurationError{Field: "NatsConn", Reason: "nil connection"}
	}
	if nc.Opts.ReconnectBufSize != 0 {
		return &ConfigurationError{
			Field:  "NatsConn",
			Reason: "reconnect buffering must be disabled; dial with nats.ReconnectBufSize(0)",
		}
	}
	return nil
}

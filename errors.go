package chanstream

import (
	"errors"
	"fmt"
)

// Sentinel errors. Most operations on a torn-down session or subscription
// return one of these directly; a handful of conditions carry structured
// detail and are returned as the typed errors below instead. Every typed
// error except ConnectRequestError Unwrap()s to one of these, so errors.Is
// still matches across the dynamic fields; ConnectRequestError has no
// sentinel and is matched with errors.As.
var (
	ErrConnectionClosed = errors.New("chanstream: connection closed")
	ErrBadSubscription  = errors.New("chanstream: invalid subscription")
	ErrManualAck        = errors.New("chanstream: cannot manually ack a message in auto-ack mode")
	ErrNilMessage       = errors.New("chanstream: nil message")
	ErrNoServerSupport  = errors.New("chanstream: feature not supported by the server")
	ErrConnectTimeout   = errors.New("chanstream: connect request timed out")
	ErrConnectionLost   = errors.New("chanstream: connection lost")
	ErrPublishTimeout   = errors.New("chanstream: publish ack timeout")
	ErrConfiguration    = errors.New("chanstream: invalid option")
)

// ConnectRequestTimeoutError is returned when the discovery handshake gets
// no reply within ConnectTimeout.
type ConnectRequestTimeoutError struct {
	ClusterID string
}

func (e *ConnectRequestTimeoutError) Error() string {
	return fmt.Sprintf("chanstream: connect request to cluster %q timed out", e.ClusterID)
}

func (e *ConnectRequestTimeoutError) Unwrap() error { return ErrConnectTimeout }

// ConnectRequestError is returned when the server rejects the handshake
// (e.g. a duplicate clientID).
type ConnectRequestError struct {
	ClusterID string
	Reason    string
}

func (e *ConnectRequestError) Error() string {
	return fmt.Sprintf("chanstream: connect request for cluster %q rejected: %s", e.ClusterID, e.Reason)
}

// ConnectionLostError is reported exactly once per session by the Pinger
// when the server stops answering pings, or relays the server's own
// "replaced" rejection.
type ConnectionLostError struct {
	Reason string
}

func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("chanstream: connection lost: %s", e.Reason)
}

func (e *ConnectionLostError) Unwrap() error { return ErrConnectionLost }

// PublishTimeoutError is returned when a publish's ack-wait timer fires,
// either while waiting for admission into the in-flight set or while
// waiting for the server's ack.
type PublishTimeoutError struct {
	Guid    string
	Subject string
}

func (e *PublishTimeoutError) Error() string {
	if e.Guid == "" {
		return fmt.Sprintf("chanstream: publish ack timeout waiting for admission on subject %q", e.Subject)
	}
	return fmt.Sprintf("chanstream: publish ack timeout for guid %s on subject %q", e.Guid, e.Subject)
}

func (e *PublishTimeoutError) Unwrap() error { return ErrPublishTimeout }

// NoServerSupportError is returned when a feature the handshake didn't
// advertise is invoked, e.g. durable Subscription.Close() against a server
// that reported no sub-close subject.
type NoServerSupportError struct {
	Feature string
}

func (e *NoServerSupportError) Error() string {
	return fmt.Sprintf("chanstream: server does not support %s", e.Feature)
}

func (e *NoServerSupportError) Unwrap() error { return ErrNoServerSupport }

// ConfigurationError is returned when an Option or SubscriptionOption is
// out of range or contradictory, at the time it is applied.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("chanstream: invalid option %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

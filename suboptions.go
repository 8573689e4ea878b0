package chanstream

import (
	"time"

	"github.com/chanstream/chanstream-go/pb"
)

// Defaults for subscription options.
const (
	DefaultAckWait     = 30 * time.Second
	DefaultMaxInflight = 1024
)

// SubscriptionOptions controls a Subscription's delivery and ack
// behavior. Build one with SubscriptionOption values rather than setting
// fields directly.
type SubscriptionOptions struct {
	DurableName string
	LeaveOpen   bool
	MaxInflight int
	AckWait     time.Duration
	ManualAcks  bool

	StartAt        pb.StartPosition
	StartSequence  uint64
	startTime      time.Time
	startTimeSet   bool
	startTimeDelta time.Duration
}

// DefaultSubscriptionOptions is the base value every Subscribe call
// starts from.
var DefaultSubscriptionOptions = SubscriptionOptions{
	MaxInflight: DefaultMaxInflight,
	AckWait:     DefaultAckWait,
}

func (o *SubscriptionOptions) validate() error {
	if o.MaxInflight <= 0 {
		return &ConfigurationError{Field: "MaxInflight", Reason: "must be > 0"}
	}
	if o.AckWait < time.Second {
		return &ConfigurationError{Field: "AckWait", Reason: "must be >= 1s"}
	}
	return nil
}

// startPositionDelta resolves the wire-level "nanoseconds before now"
// value for StartPosition_TimeDeltaStart, converting a UTC wall-clock
// StartAtTime at subscribe time so the server only ever sees a duration
// (spec §4.4).
func (o *SubscriptionOptions) startPositionDelta() time.Duration {
	if o.startTimeSet {
		return time.Now().UTC().Sub(o.startTime.UTC())
	}
	return o.startTimeDelta
}

// SubscriptionOption is a function on the options for a Subscribe call.
type SubscriptionOption func(*SubscriptionOptions) error

// MaxInflight bounds the number of messages the server will have
// in-flight to this subscription without an ack.
func MaxInflight(n int) SubscriptionOption {
	return func(o *SubscriptionOptions) error {
		if n <= 0 {
			return &ConfigurationError{Field: "MaxInflight", Reason: "must be > 0"}
		}
		o.MaxInflight = n
		return nil
	}
}

// AckWait sets how long the server waits for an ack before redelivering.
func AckWait(t time.Duration) SubscriptionOption {
	return func(o *SubscriptionOptions) error {
		if t < time.Second {
			return &ConfigurationError{Field: "AckWait", Reason: "must be >= 1s"}
		}
		o.AckWait = t
		return nil
	}
}

// StartAtSequence starts delivery at a specific sequence number.
// SequenceStart(0) on an empty channel degenerates to "from the
// beginning".
func StartAtSequence(seq uint64) SubscriptionOption {
	return func(o *SubscriptionOptions) error {
		o.StartAt = pb.StartPosition_SequenceStart
		o.StartSequence = seq
		return nil
	}
}

// StartAtTime starts delivery at the first message published at or after
// t. t is converted to a duration-before-now at subscribe time.
func StartAtTime(t time.Time) SubscriptionOption {
	return func(o *SubscriptionOptions) error {
		o.StartAt = pb.StartPosition_TimeDeltaStart
		o.startTime = t
		o.startTimeSet = true
		return nil
	}
}

// StartAtTimeDelta starts delivery d before now. TimeDeltaStart(0) on an
// empty channel degenerates to "from the beginning".
func StartAtTimeDelta(d time.Duration) SubscriptionOption {
	return func(o *SubscriptionOptions) error {
		o.StartAt = pb.StartPosition_TimeDeltaStart
		o.startTimeDelta = d
		o.startTimeSet = false
		return nil
	}
}

// StartWithLastReceived starts delivery at the channel's last message.
// On an empty channel this is valid and waits for the next message.
func StartWithLastReceived() SubscriptionOption {
	return func(o *SubscriptionOptions) error {
		o.StartAt = pb.StartPosition_LastReceived
		return nil
	}
}

// DeliverAllAvailable replays the entire channel from sequence 1.
func DeliverAllAvailable() SubscriptionOption {
	return func(o *SubscriptionOptions) error {
		o.StartAt = pb.StartPosition_First
		return nil
	}
}

// SetManualAckMode disables auto-ack; the application must call
// Message.Ack() on every delivered message.
func SetManualAckMode() SubscriptionOption {
	return func(o *SubscriptionOptions) error {
		o.ManualAcks = true
		return nil
	}
}

// DurableName makes the subscription durable: a later Subscribe from the
// same client ID with the same subject and DurableName resumes from where
// acks stopped, as long
// as the prior subscription was torn down with Close() rather than
// Unsubscribe().
func DurableName(name string) SubscriptionOption {
	return func(o *SubscriptionOptions) error {
		if name == "" {
			return &ConfigurationError{Field: "DurableName", Reason: "must not be empty"}
		}
		o.DurableName = name
		return nil
	}
}

// LeaveOpen marks this subscription's local bus subscription as exempt
// from detachment when the session closes (Connection.Close() /
// connection-lost teardown) on a caller-supplied bus connection that the
// library does not own. It has no effect when the library dialed the bus
// connection itself, since that connection is closed outright afterward
// regardless.
func LeaveOpen() SubscriptionOption {
	return func(o *SubscriptionOptions) error {
		o.LeaveOpen = true
		return nil
	}
}

package chanstream

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/chanstream/chanstream-go/pb"
)

// MsgHandler processes a message delivered to a Subscription.
type MsgHandler func(msg *Message)

// Message is a single delivered, immutable message (spec §3 "Delivered
// message"). Sequence numbers are monotonically increasing per channel.
type Message struct {
	Sequence        uint64
	Subject         string
	Data            []byte
	Timestamp       time.Time
	Redelivered     bool
	RedeliveryCount uint32

	sub   *Subscription
	acked int32
}

// Subscription returns the local subscription this message was delivered
// on, letting an application tell apart deliveries to queue-group
// siblings it owns (spec §4.4 "Queue-group property").
func (m *Message) Subscription() *Subscription { return m.sub }

// Ack manually acknowledges delivery. Valid only when the owning
// subscription was created with SetManualAckMode(); returns ErrManualAck
// otherwise. Safe to call more than once — later calls are no-ops
// (spec §4.4).
func (m *Message) Ack() error {
	if m == nil {
		return ErrNilMessage
	}
	s := m.sub
	if s == nil {
		return ErrBadSubscription
	}

	s.mu.RLock()
	manual := s.opts.ManualAcks
	ackInbox := s.ackInbox
	subject := s.subject
	conn := s.conn
	closed := s.closed
	s.mu.RUnlock()

	if closed {
		return ErrBadSubscription
	}
	if !manual {
		return ErrManualAck
	}
	if !atomic.CompareAndSwapInt32(&m.acked, 0, 1) {
		return nil
	}
	return ackMsg(conn, ackInbox, subject, m.Sequence)
}

// ackMsg publishes an Ack for sequence to ackInbox. Subject must match the
// channel the subscription was created on: the server looks the channel up
// by ack.Subject before matching the sub to it (spec §4.4/§6), so an Ack
// missing it is silently dropped server-side. Failures here are swallowed
// per spec §7: the server will simply redeliver after ackWait, and the
// caller (auto-ack path, or an application that already got a nil Ack()
// return) is past the point of usefully reacting to a transport blip.
func ackMsg(c *Connection, ackInbox, subject string, sequence uint64) error {
	if ackInbox == "" {
		return nil
	}
	nc := c.busConn()
	if nc == nil {
		return nil
	}
	a := &pb.Ack{Subject: subject, Sequence: sequence}
	b, err := a.Marshal()
	if err != nil {
		c.errorf("subscription: marshal ack: %v", err)
		return nil
	}
	if err := nc.Publish(ackInbox, b); err != nil {
		c.errorf("subscription: publish ack: %v", err)
	}
	return nil
}

// Subscription represents a live subscription to a channel (spec §3
// "Subscription record"). Delivery and ack-inbox/handler lookups are
// overwhelmingly the hot path; subscribe/unsubscribe/close are rare. A
// single RWMutex (held across neither user callbacks nor network I/O)
// reflects that, per the design notes' "reader/writer lock" guidance.
type Subscription struct {
	mu sync.RWMutex

	conn       *Connection
	subject    string
	queueGroup string
	inbox      string
	ackInbox   string
	opts       SubscriptionOptions
	handler    MsgHandler
	busSub     BusSubscription
	closed     bool

	deliverCh chan *Message
	doneCh    chan struct{}
}

// Subject is the channel this subscription delivers from.
func (s *Subscription) Subject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subject
}

// QueueGroup is the queue group this subscription shares load-balanced
// delivery with, or "" if it is not a queue subscriber.
func (s *Subscription) QueueGroup() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queueGroup
}

func newSubscription(c *Connection, subject, qgroup, inbox string, opts SubscriptionOptions, handler MsgHandler) *Subscription {
	s := &Subscription{
		conn:       c,
		subject:    subject,
		queueGroup: qgroup,
		inbox:      inbox,
		opts:       opts,
		handler:    handler,
		deliverCh:  make(chan *Message, 4096),
		doneCh:     make(chan struct{}),
	}
	go s.deliverLoop()
	return s
}

// onBusMsg is the bus-subscribe callback: it decodes the wire message and
// enqueues it for the subscription's own delivery goroutine, never
// invoking the user handler inline. This decouples the user's handler
// from the bus client's dispatch goroutine per spec §5 ("no callback runs
// the session lock" / dispatcher-owns-a-queue, design note Q1) while
// guaranteeing per-subscription delivery order: one goroutine, one queue.
func (s *Subscription) onBusMsg(raw *BusMsg) {
	mp := &pb.MsgProto{}
	if err := mp.Unmarshal(raw.Data); err != nil {
		s.conn.errorf("subscription %s: malformed MsgProto: %v", s.subject, err)
		return
	}
	msg := &Message{
		Sequence:        mp.Sequence,
		Subject:         mp.Subject,
		Data:            mp.Data,
		Timestamp:       time.Unix(0, mp.Timestamp),
		Redelivered:     mp.Redelivered,
		RedeliveryCount: mp.RedeliveryCount,
		sub:             s,
	}
	select {
	case s.deliverCh <- msg:
	case <-s.doneCh:
	}
}

func (s *Subscription) deliverLoop() {
	for {
		select {
		case msg, ok := <-s.deliverCh:
			if !ok {
				return
			}
			s.deliverOne(msg)
		case <-s.doneCh:
			return
		}
	}
}

func (s *Subscription) deliverOne(msg *Message) {
	s.mu.RLock()
	handler := s.handler
	manual := s.opts.ManualAcks
	ackInbox := s.ackInbox
	conn := s.conn
	closed := s.closed
	s.mu.RUnlock()

	if closed || handler == nil {
		return
	}

	// Auto-ack fires after the handler returns, success or panic alike
	// (spec §4.4, design note "Ack on handler exception"): the server
	// interprets silence as back-pressure, so swallowing only the ack
	// would stall the subscription even though the handler itself failed.
	// The panic is not recovered — it propagates out of this goroutine —
	// only the auto-ack is guaranteed to run first.
	defer func() {
		if !manual && !closed {
			ackMsg(conn, ackInbox, msg.Subject, msg.Sequence)
		}
	}()
	handler(msg)
}

// Unsubscribe removes the subscription at the server: its durable state,
// if any, is forgotten. Further operations on it fail with
// ErrBadSubscription.
func (s *Subscription) Unsubscribe() error {
	return s.teardown(teardownUnsubscribe)
}

// Close detaches the subscription locally and on the server but preserves
// durable state, so a later Subscribe with the same DurableName resumes.
// Returns a *NoServerSupportError if the handshake reported no
// sub-close-subject.
func (s *Subscription) Close() error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return ErrBadSubscription
	}
	if conn.subCloseRequestsSubject() == "" {
		return &NoServerSupportError{Feature: "durable subscription close"}
	}
	return s.teardown(teardownClose)
}

type teardownKind int

const (
	teardownUnsubscribe teardownKind = iota
	teardownClose
)

func (s *Subscription) teardown(kind teardownKind) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrBadSubscription
	}
	s.closed = true
	close(s.doneCh)
	busSub := s.busSub
	subject := s.subject
	ackInbox := s.ackInbox
	durable := s.opts.DurableName
	inbox := s.inbox
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		conn.registry.remove(inbox)
	}
	if busSub != nil {
		busSub.Unsubscribe()
	}

	if conn == nil || conn.isClosed() {
		return nil
	}

	var reqSubject string
	var payload []byte
	var err error
	switch kind {
	case teardownUnsubscribe:
		reqSubject = conn.unsubRequestsSubject()
		r := &pb.UnsubscribeRequest{ClientID: conn.clientID, Subject: subject, Inbox: ackInbox, DurableName: durable}
		payload, err = r.Marshal()
	case teardownClose:
		reqSubject = conn.subCloseRequestsSubject()
		r := &pb.SubscriptionCloseRequest{ClientID: conn.clientID, Subject: subject, Inbox: ackInbox, DurableName: durable}
		payload, err = r.Marshal()
	}
	if err != nil {
		return err
	}

	reply, err := conn.nc.Request(reqSubject, payload, 2*time.Second)
	if err != nil {
		return mapRequestErr(err, conn.clusterID)
	}
	resp := &pb.SubscriptionResponse{}
	if err := resp.Unmarshal(reply.Data); err != nil {
		return err
	}
	if resp.Error != "" {
		return &ConnectRequestError{ClusterID: conn.clusterID, Reason: resp.Error}
	}
	return nil
}

// closeLocally tears the subscription down without any server round trip:
// used by the Pinger on declared session loss and by Connection.Close()
// before its own best-effort CloseRequest. When leaveOpen is honored (only
// meaningful for a caller-supplied, still-alive bus connection) the local
// bus subscription is left attached.
func (s *Subscription) closeLocally() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.doneCh)
	busSub := s.busSub
	leaveOpen := s.opts.LeaveOpen
	s.mu.Unlock()

	if busSub != nil && !leaveOpen {
		busSub.Unsubscribe()
	}
}

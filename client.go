package chanstream

import (
	"crypto/rand"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/chanstream/chanstream-go/pb"
)

type connState int32

const (
	stateOpening connState = iota
	stateOpen
	stateClosing
	stateClosed
)

// Connection is a single session against the streaming server: a
// handshake-negotiated set of subjects, a Publisher, an AckDispatcher, a
// SubscriptionRegistry, and a Pinger, all sharing the one underlying
// BusConn (spec §3 "Connection"). The zero value is not usable; obtain one
// from Connect.
type Connection struct {
	mu    sync.RWMutex
	state connState

	opts      Options
	clusterID string
	clientID  string
	connID    []byte

	nc      BusConn
	ownsBus bool

	pubPrefix        string
	subRequests      string
	unsubRequests    string
	closeRequests    string
	subCloseRequests string
	pingRequests     string
	ackInbox         string

	pub      *publisher
	ackDisp  *ackDispatcher
	registry *subscriptionRegistry
	pinger   *pinger

	lostOnce sync.Once
}

// Connect opens a session against clusterID, identifying itself as
// clientID, per the Handshake component (spec §4.1). clientID must be
// unique within clusterID; a duplicate either rejects the request or
// revokes the earlier session's connection, at the server's discretion.
func Connect(clusterID, clientID string, options ...Option) (*Connection, error) {
	opts := DefaultOptions
	for _, o := range options {
		if err := o(&opts); err != nil {
			return nil, err
		}
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if clusterID == "" {
		return nil, &ConfigurationError{Field: "clusterID", Reason: "must not be empty"}
	}
	if clientID == "" {
		return nil, &ConfigurationError{Field: "clientID", Reason: "must not be empty"}
	}

	c := &Connection{
		opts:      opts,
		clusterID: clusterID,
		clientID:  clientID,
		state:     stateOpening,
		registry:  newSubscriptionRegistry(),
		connID:    newConnID(),
	}

	if opts.NatsConn != nil {
		if err := ValidateUserBusConn(opts.NatsConn); err != nil {
			return nil, err
		}
		c.nc = WrapNatsConn(opts.NatsConn)
		c.ownsBus = false
	} else {
		natsOpts := append([]nats.Option{nats.ReconnectBufSize(0)}, opts.natsExtra...)
		nc, err := nats.Connect(joinURLs(opts.NatsURL), natsOpts...)
		if err != nil {
			return nil, err
		}
		c.nc = WrapNatsConn(nc)
		c.ownsBus = true
	}

	if err := c.handshake(); err != nil {
		if c.ownsBus {
			c.nc.Close()
		}
		return nil, err
	}

	c.pub = newPublisher(c)
	c.ackDisp = newAckDispatcher(c, c.pub, c.ackWorkers())
	if err := c.ackDisp.start(c.ackInbox); err != nil {
		c.teardownAfterFailedConnect()
		return nil, err
	}

	c.pinger = newPinger(c, c.pingRequests, c.opts.PingInterval, c.opts.PingMaxOut, c.connID)
	c.pinger.start()

	c.mu.Lock()
	c.state = stateOpen
	c.mu.Unlock()

	return c, nil
}

func (c *Connection) ackWorkers() int {
	if c.opts.AckWorkers > 0 {
		return c.opts.AckWorkers
	}
	if n := runtime.GOMAXPROCS(0); n > 2 {
		return n
	}
	return 2
}

func joinURLs(urls []string) string {
	out := urls[0]
	for _, u := range urls[1:] {
		out += "," + u
	}
	return out
}

func newConnID() []byte {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return []byte(newGUID())
	}
	return b
}

// handshake implements spec §4.1: request-reply to
// "<DiscoverPrefix>.<clusterID>" carrying a heartbeat inbox, negotiating
// ping parameters, and recording the per-session subjects the rest of the
// Connection uses for the life of the session.
func (c *Connection) handshake() error {
	discoverSubject := c.opts.DiscoverPrefix + "." + c.clusterID

	req := &pb.ConnectRequest{
		ClientID:        c.clientID,
		HeartbeatInbox:  c.nc.NewInbox(),
		ProtocolVersion: protocolVersion,
		PingInterval:    int32(c.opts.PingInterval / time.Second),
		PingMaxOut:      int32(c.opts.PingMaxOut),
	}
	b, err := req.Marshal()
	if err != nil {
		return err
	}

	reply, err := c.nc.Request(discoverSubject, b, c.opts.ConnectTimeout)
	if err != nil {
		return &ConnectRequestTimeoutError{ClusterID: c.clusterID}
	}

	resp := &pb.ConnectResponse{}
	if err := resp.Unmarshal(reply.Data); err != nil {
		return err
	}
	if resp.Error != "" {
		return &ConnectRequestError{ClusterID: c.clusterID, Reason: resp.Error}
	}

	c.pubPrefix = resp.PubPrefix
	c.subRequests = resp.SubRequests
	c.unsubRequests = resp.UnsubRequests
	c.closeRequests = resp.CloseRequests
	c.subCloseRequests = resp.SubCloseRequests
	c.pingRequests = resp.PingRequests
	c.ackInbox = c.nc.NewInbox()

	if resp.PingInterval > 0 {
		c.opts.PingInterval = time.Duration(resp.PingInterval) * time.Second
	}
	if resp.PingMaxOut > 0 {
		c.opts.PingMaxOut = int(resp.PingMaxOut)
	}
	return nil
}

func (c *Connection) teardownAfterFailedConnect() {
	if c.ackDisp != nil {
		c.ackDisp.close()
	}
	if c.ownsBus {
		c.nc.Close()
	}
}

// NatsConn returns the underlying bus connection for advanced use (e.g.
// sharing it with unrelated core-bus subscriptions). Returns nil once
// Close has completed (Q2): the caller cannot be allowed to keep issuing
// bus calls against a connection the library may have already closed (a
// library-owned connection is closed by Close).
func (c *Connection) NatsConn() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == stateClosed {
		return nil
	}
	if nb, ok := c.nc.(*natsBusConn); ok {
		return nb.nc
	}
	return nil
}

func (c *Connection) busConn() BusConn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == stateClosed || c.state == stateClosing {
		return nil
	}
	return c.nc
}

func (c *Connection) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == stateClosed
}

func (c *Connection) pubSubject(subject string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pubPrefix + "." + subject
}

func (c *Connection) ackInboxSubject() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ackInbox
}

func (c *Connection) subRequestsSubject() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subRequests
}

func (c *Connection) unsubRequestsSubject() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unsubRequests
}

func (c *Connection) subCloseRequestsSubject() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subCloseRequests
}

func (c *Connection) debugf(format string, args ...interface{}) {
	c.opts.Logger.Debugf(format, args...)
}

func (c *Connection) errorf(format string, args ...interface{}) {
	c.opts.Logger.Errorf(format, args...)
}

// mapRequestErr turns the internal bus-timeout marker into the public
// taxonomy's ConnectRequestTimeoutError; every other error passes through.
func mapRequestErr(err error, clusterID string) error {
	if err == errBusRequestTimeout {
		return &ConnectRequestTimeoutError{ClusterID: clusterID}
	}
	return err
}

// reportConnectionLost runs the session-teardown-on-loss path exactly
// once (I4-style discipline): it tears everything down locally and then
// notifies ConnectionLostHandler, if one was registered. No CloseRequest
// is sent: the server is presumed gone or to have already discarded this
// session.
func (c *Connection) reportConnectionLost(reason error) {
	c.lostOnce.Do(func() {
		c.mu.Lock()
		if c.state == stateClosed || c.state == stateClosing {
			c.mu.Unlock()
			return
		}
		c.state = stateClosed
		handler := c.opts.ConnectionLostHandler
		c.mu.Unlock()

		c.pub.closeWith(reason)
		c.registry.closeAll()
		if c.ackDisp != nil {
			c.ackDisp.close()
		}
		if c.ownsBus {
			c.nc.Close()
		}
		if handler != nil {
			handler(c, reason)
		}
	})
}

// Close gracefully ends the session: it sends a best-effort CloseRequest,
// tears down every local subscription and the Publisher, and — if the
// library dialed the bus connection itself — closes it. Close is
// idempotent; calling it more than once returns nil for the later calls
// (spec §4.6 invariant I3, "closed is terminal").
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.state == stateClosed || c.state == stateClosing {
		c.mu.Unlock()
		return nil
	}
	c.state = stateClosing
	c.mu.Unlock()

	if c.pinger != nil {
		c.pinger.stop()
	}

	c.pub.closeWith(ErrConnectionClosed)
	c.registry.closeAll()

	var closeErr error
	if !c.nc.IsClosed() {
		req := &pb.CloseRequest{ClientID: c.clientID}
		b, err := req.Marshal()
		if err != nil {
			closeErr = err
		} else if reply, err := c.nc.Request(c.closeRequests, b, 2*time.Second); err != nil {
			closeErr = mapRequestErr(err, c.clusterID)
		} else {
			resp := &pb.CloseResponse{}
			if err := resp.Unmarshal(reply.Data); err != nil {
				closeErr = err
			} else if resp.Error != "" {
				closeErr = &ConnectRequestError{ClusterID: c.clusterID, Reason: resp.Error}
			}
		}
	}

	if c.ackDisp != nil {
		c.ackDisp.close()
	}
	if c.ownsBus {
		c.nc.Close()
	}

	c.mu.Lock()
	c.state = stateClosed
	c.mu.Unlock()

	return closeErr
}

// Publish sends data on subject and blocks until the server acks it or
// AckTimeout elapses (spec §4.2 "synchronous publish"). The returned guid
// identifies the publish regardless of outcome.
func (c *Connection) Publish(subject string, data []byte) (string, error) {
	if c.isClosed() {
		return "", ErrConnectionClosed
	}
	rec, err := c.pub.enqueue(subject, data, nil)
	if err != nil {
		return "", err
	}
	return rec.guid, <-rec.done
}

// PublishAsync sends data on subject and returns immediately; ah, if
// non-nil, is invoked exactly once (I4) with the terminal outcome.
func (c *Connection) PublishAsync(subject string, data []byte, ah AckHandler) (string, error) {
	if c.isClosed() {
		return "", ErrConnectionClosed
	}
	rec, err := c.pub.enqueue(subject, data, ah)
	if err != nil {
		return "", err
	}
	return rec.guid, nil
}

// PublishFuture is returned by PublishAwaitable: it behaves like an async
// publish until Wait is called, which then blocks for the terminal
// outcome.
type PublishFuture struct {
	Guid string
	done chan error
}

// Wait blocks until the publish this future was returned for reaches a
// terminal state and returns its outcome.
func (f *PublishFuture) Wait() error {
	return <-f.done
}

// PublishAwaitable sends data on subject and returns a PublishFuture the
// caller can Wait on later, without forcing the call site to block
// immediately the way Publish does.
func (c *Connection) PublishAwaitable(subject string, data []byte) (*PublishFuture, error) {
	if c.isClosed() {
		return nil, ErrConnectionClosed
	}
	rec, err := c.pub.enqueue(subject, data, nil)
	if err != nil {
		return nil, err
	}
	return &PublishFuture{Guid: rec.guid, done: rec.done}, nil
}

// Subscribe creates a (possibly durable) subscription on subject,
// delivering to handler (spec §4.4). The returned Subscription remains
// valid until Unsubscribe, Close, or session teardown.
func (c *Connection) Subscribe(subject string, handler MsgHandler, options ...SubscriptionOption) (*Subscription, error) {
	return c.subscribe(subject, "", handler, options...)
}

// QueueSubscribe creates a subscription sharing load-balanced delivery
// with every other subscription using the same qgroup on subject.
func (c *Connection) QueueSubscribe(subject, qgroup string, handler MsgHandler, options ...SubscriptionOption) (*Subscription, error) {
	if qgroup == "" {
		return nil, &ConfigurationError{Field: "qgroup", Reason: "must not be empty"}
	}
	return c.subscribe(subject, qgroup, handler, options...)
}

func (c *Connection) subscribe(subject, qgroup string, handler MsgHandler, options ...SubscriptionOption) (*Subscription, error) {
	if c.isClosed() {
		return nil, ErrConnectionClosed
	}
	if subject == "" {
		return nil, &ConfigurationError{Field: "subject", Reason: "must not be empty"}
	}
	if handler == nil {
		return nil, &ConfigurationError{Field: "handler", Reason: "must not be nil"}
	}

	opts := DefaultSubscriptionOptions
	for _, o := range options {
		if err := o(&opts); err != nil {
			return nil, err
		}
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	nc := c.busConn()
	if nc == nil {
		return nil, ErrConnectionClosed
	}

	inbox := nc.NewInbox()
	sub := newSubscription(c, subject, qgroup, inbox, opts, handler)

	busSub, err := nc.Subscribe(inbox, sub.onBusMsg)
	if err != nil {
		return nil, err
	}
	sub.busSub = busSub
	c.registry.add(inbox, sub)

	req := &pb.SubscriptionRequest{
		ClientID:       c.clientID,
		Subject:        subject,
		QGroup:         qgroup,
		Inbox:          inbox,
		MaxInFlight:    int32(opts.MaxInflight),
		AckWaitInSecs:  int32(opts.AckWait / time.Second),
		StartPosition:  opts.StartAt,
		StartSequence:  opts.StartSequence,
		StartTimeDelta: int64(opts.startPositionDelta()),
		DurableName:    opts.DurableName,
	}
	b, err := req.Marshal()
	if err != nil {
		c.registry.remove(inbox)
		busSub.Unsubscribe()
		return nil, err
	}

	reply, err := nc.Request(c.subRequestsSubject(), b, c.opts.ConnectTimeout)
	if err != nil {
		c.registry.remove(inbox)
		busSub.Unsubscribe()
		return nil, mapRequestErr(err, c.clusterID)
	}

	resp := &pb.SubscriptionResponse{}
	if err := resp.Unmarshal(reply.Data); err != nil {
		c.registry.remove(inbox)
		busSub.Unsubscribe()
		return nil, err
	}
	if resp.Error != "" {
		c.registry.remove(inbox)
		busSub.Unsubscribe()
		return nil, fmt.Errorf("chanstream: subscription request rejected: %s", resp.Error)
	}

	sub.mu.Lock()
	sub.ackInbox = resp.AckInbox
	sub.mu.Unlock()

	return sub, nil
}

// Package stantest embeds a real core-bus server and a minimal streaming
// responder for tests, following the teacher's own test package (run a
// throwaway server.go): in-process so the test suite never depends on an
// externally running service.
package stantest

import (
	"fmt"
	"sort"
	"sync"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nuid"

	"github.com/chanstream/chanstream-go/pb"
)

// Server is a throwaway core-bus server plus a hand-rolled, single-process
// streaming responder: just enough of the discover/pub/sub/ack/unsub/
// close/ping protocol (grounded on the teacher's connectCB,
// processClientPublish, processSubscriptionRequest, processAckMsg,
// processUnSubscribeRequest, processCloseRequest) to drive client tests
// without a full persistence/redelivery engine.
type Server struct {
	ClusterID      string
	DiscoverPrefix string

	bus *natsserver.Server
	nc  *nats.Conn

	mu       sync.Mutex
	channels map[string]*channel
	subs     map[string]*subState  // by ackInbox, only while actively attached
	durables map[string]*subState  // by clientID|subject|durableName, kept across Close
	queues   map[string]*queueGroup // by subject|qgroup
	clients  map[string]bool

	pubPrefix     string
	subRequests   string
	unsubRequests string
	closeRequests string
	subCloseReqs  string
	pingRequests  string

	RejectConnect   string // if non-empty, every ConnectRequest is rejected with this reason
	RejectPingAfter int    // if > 0, the Nth+ ping onward gets a "replaced" error
	pingCount       int
}

type storedMsg struct {
	seq  uint64
	data []byte
	ts   int64
}

type channel struct {
	mu   sync.Mutex
	msgs []storedMsg
	next uint64
}

type subState struct {
	clientID    string
	subject     string
	qgroup      string
	inbox       string
	ackInbox    string
	durableName string
	maxInflight int
	ackWait     time.Duration

	mu        sync.Mutex
	nextSeq   uint64
	pending   map[uint64]time.Time
	redeliver map[uint64]uint32
}

// queueGroup holds the dispatch position shared by every member of one
// queue group, mirroring the teacher's queueState: exactly one member
// receives each message, round-robin among those with room in their
// own in-flight window (findBestQueueSub).
type queueGroup struct {
	mu      sync.Mutex
	members []*subState
	nextSeq uint64
	rr      int
}

// New starts an embedded core-bus server and wires the streaming
// responder on top of it. clusterID is arbitrary; callers pass it to
// chanstream.Connect.
func New(clusterID string) (*Server, error) {
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true}
	bus, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, err
	}
	go bus.Start()
	if !bus.ReadyForConnections(5 * time.Second) {
		return nil, fmt.Errorf("stantest: embedded bus did not become ready")
	}

	nc, err := nats.Connect(bus.ClientURL())
	if err != nil {
		bus.Shutdown()
		return nil, err
	}

	s := &Server{
		ClusterID:      clusterID,
		DiscoverPrefix: "_STAN.discover",
		bus:            bus,
		nc:             nc,
		channels:       make(map[string]*channel),
		subs:           make(map[string]*subState),
		durables:       make(map[string]*subState),
		queues:         make(map[string]*queueGroup),
		clients:        make(map[string]bool),
		pubPrefix:      fmt.Sprintf("_STAN.pub.%s", nuid.Next()),
		subRequests:    fmt.Sprintf("_STAN.sub.%s", nuid.Next()),
		unsubRequests:  fmt.Sprintf("_STAN.unsub.%s", nuid.Next()),
		closeRequests:  fmt.Sprintf("_STAN.close.%s", nuid.Next()),
		subCloseReqs:   fmt.Sprintf("_STAN.subclose.%s", nuid.Next()),
		pingRequests:   fmt.Sprintf("_STAN.ping.%s", nuid.Next()),
	}

	if err := s.initSubscriptions(); err != nil {
		s.Shutdown()
		return nil, err
	}
	return s, nil
}

// ClientURL returns the URL a chanstream.Connect call should dial.
func (s *Server) ClientURL() string { return s.bus.ClientURL() }

// Shutdown tears down the responder's bus subscription and the embedded
// server.
func (s *Server) Shutdown() {
	if s.nc != nil {
		s.nc.Close()
	}
	if s.bus != nil {
		s.bus.Shutdown()
	}
}

func (s *Server) initSubscriptions() error {
	discover := fmt.Sprintf("%s.%s", s.DiscoverPrefix, s.ClusterID)
	subs := []struct {
		subject string
		cb      nats.MsgHandler
	}{
		{discover, s.onConnect},
		{s.subRequests, s.onSubscribe},
		{s.unsubRequests, s.onUnsubscribe},
		{s.subCloseReqs, s.onSubClose},
		{s.closeRequests, s.onClose},
		{s.pingRequests, s.onPing},
		{s.pubPrefix + ".>", s.onPublish},
	}
	for _, sub := range subs {
		if _, err := s.nc.Subscribe(sub.subject, sub.cb); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) onConnect(m *nats.Msg) {
	req := &pb.ConnectRequest{}
	if err := req.Unmarshal(m.Data); err != nil {
		return
	}

	resp := &pb.ConnectResponse{}
	if s.RejectConnect != "" {
		resp.Error = s.RejectConnect
	} else {
		s.mu.Lock()
		s.clients[req.ClientID] = true
		s.mu.Unlock()

		resp.PubPrefix = s.pubPrefix
		resp.SubRequests = s.subRequests
		resp.UnsubRequests = s.unsubRequests
		resp.CloseRequests = s.closeRequests
		resp.SubCloseRequests = s.subCloseReqs
		resp.PingRequests = s.pingRequests
		resp.PingInterval = req.PingInterval
		resp.PingMaxOut = req.PingMaxOut
	}

	b, err := resp.Marshal()
	if err != nil {
		return
	}
	s.nc.Publish(m.Reply, b)
}

func (s *Server) onPublish(m *nats.Msg) {
	pm := &pb.PubMsg{}
	if err := pm.Unmarshal(m.Data); err != nil {
		return
	}

	s.mu.Lock()
	ch, ok := s.channels[pm.Subject]
	if !ok {
		ch = &channel{}
		s.channels[pm.Subject] = ch
	}
	s.mu.Unlock()

	ch.mu.Lock()
	ch.next++
	seq := ch.next
	ch.msgs = append(ch.msgs, storedMsg{seq: seq, data: pm.Data, ts: time.Now().UnixNano()})
	ch.mu.Unlock()

	ack := &pb.PubAck{Guid: pm.Guid}
	b, err := ack.Marshal()
	if err == nil {
		s.nc.Publish(m.Reply, b)
	}

	s.deliver(pm.Subject, ch)
}

func durableKey(clientID, subject, durableName string) string {
	return clientID + "|" + subject + "|" + durableName
}

func (s *Server) onSubscribe(m *nats.Msg) {
	req := &pb.SubscriptionRequest{}
	if err := req.Unmarshal(m.Data); err != nil {
		return
	}

	ackInbox := fmt.Sprintf("_STAN.ack.%s", nuid.Next())

	s.mu.Lock()
	var sub *subState
	var dkey string
	if req.DurableName != "" {
		dkey = durableKey(req.ClientID, req.Subject, req.DurableName)
		if existing, ok := s.durables[dkey]; ok {
			sub = existing
		}
	}
	resuming := sub != nil
	if !resuming {
		sub = &subState{
			clientID:    req.ClientID,
			subject:     req.Subject,
			durableName: req.DurableName,
			pending:     make(map[uint64]time.Time),
			redeliver:   make(map[uint64]uint32),
		}
	}
	sub.qgroup = req.QGroup
	sub.inbox = req.Inbox
	sub.ackInbox = ackInbox
	sub.maxInflight = int(req.MaxInFlight)
	sub.ackWait = time.Duration(req.AckWaitInSecs) * time.Second
	if sub.maxInflight <= 0 {
		sub.maxInflight = 1024
	}

	s.subs[ackInbox] = sub
	if dkey != "" {
		s.durables[dkey] = sub
	}
	ch, ok := s.channels[req.Subject]
	if !ok {
		ch = &channel{}
		s.channels[req.Subject] = ch
	}
	var qg *queueGroup
	newQueue := false
	if req.QGroup != "" {
		qkey := req.Subject + "|" + req.QGroup
		var existed bool
		qg, existed = s.queues[qkey]
		if !existed {
			qg = &queueGroup{}
			s.queues[qkey] = qg
			newQueue = true
		}
	}
	s.mu.Unlock()

	if qg != nil {
		qg.mu.Lock()
		alreadyMember := false
		for _, m := range qg.members {
			if m == sub {
				alreadyMember = true
				break
			}
		}
		if !alreadyMember {
			qg.members = append(qg.members, sub)
		}
		qg.mu.Unlock()
	}

	if !resuming {
		switch req.StartPosition {
		case pb.StartPosition_SequenceStart:
			sub.nextSeq = req.StartSequence
		case pb.StartPosition_First:
			sub.nextSeq = 1
		case pb.StartPosition_LastReceived:
			ch.mu.Lock()
			sub.nextSeq = ch.next
			ch.mu.Unlock()
		case pb.StartPosition_TimeDeltaStart:
			cutoff := time.Now().Add(-time.Duration(req.StartTimeDelta)).UnixNano()
			ch.mu.Lock()
			sub.nextSeq = 1
			for _, sm := range ch.msgs {
				if sm.ts < cutoff {
					sub.nextSeq = sm.seq + 1
				}
			}
			ch.mu.Unlock()
		default: // NewOnly
			ch.mu.Lock()
			sub.nextSeq = ch.next + 1
			ch.mu.Unlock()
		}
	}
	if qg != nil && newQueue {
		qg.mu.Lock()
		qg.nextSeq = sub.nextSeq
		qg.mu.Unlock()
	}

	if _, err := s.nc.Subscribe(ackInbox, s.onAck); err != nil {
		return
	}

	resp := &pb.SubscriptionResponse{AckInbox: ackInbox}
	b, err := resp.Marshal()
	if err != nil {
		return
	}
	s.nc.Publish(m.Reply, b)

	s.deliver(req.Subject, ch)
}

// onAck mirrors the real server's processAckMsg: the channel is looked up
// by ack.Subject before the ack is matched to a sub on that channel, so a
// client that omits Subject gets silently dropped here exactly as it would
// against the real server.
func (s *Server) onAck(m *nats.Msg) {
	ack := &pb.Ack{}
	if err := ack.Unmarshal(m.Data); err != nil {
		return
	}

	s.mu.Lock()
	sub, ok := s.subs[m.Subject]
	s.mu.Unlock()
	if !ok || ack.Subject == "" || ack.Subject != sub.subject {
		return
	}

	sub.mu.Lock()
	delete(sub.pending, ack.Sequence)
	sub.mu.Unlock()

	s.mu.Lock()
	ch := s.channels[sub.subject]
	s.mu.Unlock()
	if ch != nil {
		s.deliver(sub.subject, ch)
	}
}

// onUnsubscribe forgets a subscription entirely, including any durable
// state (the teacher's processUnSubscribeRequest with durable=true).
func (s *Server) onUnsubscribe(m *nats.Msg) {
	req := &pb.UnsubscribeRequest{}
	if err := req.Unmarshal(m.Data); err != nil {
		return
	}
	s.mu.Lock()
	s.detachByInbox(req.Inbox, req.ClientID, req.Subject, req.DurableName, true)
	s.mu.Unlock()

	resp := &pb.SubscriptionResponse{}
	if b, err := resp.Marshal(); err == nil {
		s.nc.Publish(m.Reply, b)
	}
}

// onSubClose detaches a subscription locally but preserves its durable
// state so a later Subscribe with the same DurableName resumes.
func (s *Server) onSubClose(m *nats.Msg) {
	req := &pb.SubscriptionCloseRequest{}
	if err := req.Unmarshal(m.Data); err != nil {
		return
	}
	s.mu.Lock()
	s.detachByInbox(req.Inbox, req.ClientID, req.Subject, req.DurableName, req.DurableName == "")
	s.mu.Unlock()

	resp := &pb.SubscriptionResponse{}
	if b, err := resp.Marshal(); err == nil {
		s.nc.Publish(m.Reply, b)
	}
}

// detachByInbox removes the active registration keyed by ackInbox (the
// protocol's UnsubscribeRequest/SubscriptionCloseRequest "Inbox" field is
// the ack inbox, looked up the way the teacher's LookupByAckInbox does).
// When forgetDurable is true (a plain Unsubscribe, or a Close on a
// non-durable subscription) the durable record, if any, is dropped too.
// Caller holds s.mu.
func (s *Server) detachByInbox(ackInbox, clientID, subject, durableName string, forgetDurable bool) {
	delete(s.subs, ackInbox)
	if forgetDurable && durableName != "" {
		delete(s.durables, durableKey(clientID, subject, durableName))
	}
}

func (s *Server) onClose(m *nats.Msg) {
	req := &pb.CloseRequest{}
	if err := req.Unmarshal(m.Data); err != nil {
		return
	}
	s.mu.Lock()
	delete(s.clients, req.ClientID)
	for inbox, sub := range s.subs {
		if sub.clientID == req.ClientID {
			delete(s.subs, inbox)
		}
	}
	s.mu.Unlock()

	resp := &pb.CloseResponse{}
	if b, err := resp.Marshal(); err == nil {
		s.nc.Publish(m.Reply, b)
	}
}

func (s *Server) onPing(m *nats.Msg) {
	s.mu.Lock()
	s.pingCount++
	count := s.pingCount
	s.mu.Unlock()

	resp := &pb.PingResponse{}
	if s.RejectPingAfter > 0 && count >= s.RejectPingAfter {
		resp.Error = "stan: connection replaced"
	}
	if b, err := resp.Marshal(); err == nil {
		s.nc.Publish(m.Reply, b)
	}
}

// deliver pushes available messages to every non-queue subscriber on
// subject, and to the appropriate member of each queue group subscribed
// to it, mirroring the teacher's sendAvailableMessages/sendMsgToSub and
// sendMsgToQueueGroup but without persistence or crash-redelivery.
func (s *Server) deliver(subject string, ch *channel) {
	s.mu.Lock()
	var solo []*subState
	groups := map[string]*queueGroup{}
	for _, sub := range s.subs {
		if sub.subject != subject {
			continue
		}
		if sub.qgroup == "" {
			solo = append(solo, sub)
			continue
		}
		groups[subject+"|"+sub.qgroup] = s.queues[subject+"|"+sub.qgroup]
	}
	s.mu.Unlock()

	sort.Slice(solo, func(i, j int) bool { return solo[i].inbox < solo[j].inbox })
	for _, sub := range solo {
		s.deliverToSub(sub, ch)
	}
	for _, qg := range groups {
		if qg != nil {
			s.deliverToQueueGroup(qg, ch)
		}
	}
}

// deliverToQueueGroup hands each available message to exactly one member,
// round-robining among members with room in their own in-flight window.
func (s *Server) deliverToQueueGroup(qg *queueGroup, ch *channel) {
	ch.mu.Lock()
	msgs := make([]storedMsg, len(ch.msgs))
	copy(msgs, ch.msgs)
	ch.mu.Unlock()

	qg.mu.Lock()
	defer qg.mu.Unlock()

	for _, sm := range msgs {
		if sm.seq < qg.nextSeq {
			continue
		}
		if len(qg.members) == 0 {
			break
		}
		member := s.pickQueueMember(qg)
		if member == nil {
			break
		}
		if s.sendMsg(member, sm) {
			qg.nextSeq = sm.seq + 1
		} else {
			break
		}
	}
}

// pickQueueMember round-robins starting after the last pick, returning
// the first member with room in its in-flight window.
func (s *Server) pickQueueMember(qg *queueGroup) *subState {
	n := len(qg.members)
	for i := 0; i < n; i++ {
		idx := (qg.rr + 1 + i) % n
		m := qg.members[idx]
		m.mu.Lock()
		hasRoom := len(m.pending) < m.maxinflightSafe()
		m.mu.Unlock()
		if hasRoom {
			qg.rr = idx
			return m
		}
	}
	return nil
}

func (s *Server) deliverToSub(sub *subState, ch *channel) {
	ch.mu.Lock()
	msgs := make([]storedMsg, len(ch.msgs))
	copy(msgs, ch.msgs)
	ch.mu.Unlock()

	for _, sm := range msgs {
		sub.mu.Lock()
		skip := sm.seq < sub.nextSeq
		full := len(sub.pending) >= sub.maxinflightSafe()
		sub.mu.Unlock()
		if skip {
			continue
		}
		if full {
			break
		}
		if !s.sendMsg(sub, sm) {
			break
		}
	}
}

// sendMsg publishes sm to sub's delivery inbox and records it pending.
// Returns false if the publish itself failed (the message stays
// undelivered and will be retried on the next deliver() pass).
func (s *Server) sendMsg(sub *subState, sm storedMsg) bool {
	sub.mu.Lock()
	redelivered := sub.redeliver[sm.seq] > 0
	redeliveryCount := sub.redeliver[sm.seq]
	sub.mu.Unlock()

	mp := &pb.MsgProto{
		Sequence:        sm.seq,
		Subject:         sub.subject,
		Data:            sm.data,
		Timestamp:       sm.ts,
		Redelivered:     redelivered,
		RedeliveryCount: redeliveryCount,
	}
	b, err := mp.Marshal()
	if err != nil {
		return false
	}
	if err := s.nc.Publish(sub.inbox, b); err != nil {
		return false
	}

	sub.mu.Lock()
	sub.pending[sm.seq] = time.Now()
	if sm.seq >= sub.nextSeq {
		sub.nextSeq = sm.seq + 1
	}
	sub.mu.Unlock()
	return true
}

func (sub *subState) maxinflightSafe() int {
	if sub.maxInflight <= 0 {
		return 1024
	}
	return sub.maxInflight
}

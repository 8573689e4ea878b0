package chanstream

import (
	"sync"
	"time"

	"github.com/chanstream/chanstream-go/pb"
)

// AckHandler receives the terminal notification for a PublishAsync call:
// the guid it was given back and, if the publish failed, the error. A nil
// error means the streaming server accepted the message.
type AckHandler func(guid string, err error)

// publishRecord is the in-flight bookkeeping for one outstanding publish
// (spec §3 "Publish record"). It lives from enqueue until exactly one of:
// an ack arrives, the ack-wait timer fires, or the session is torn down.
type publishRecord struct {
	guid    string
	subject string
	size    int64

	timer *time.Timer
	onAck AckHandler
	done  chan error

	once sync.Once
}

// terminate delivers the (at most once, per I4) terminal notification for
// a record: it stops the ack-wait timer, invokes the AckHandler if one was
// given, and unblocks anyone waiting on done (the synchronous Publish path
// and PublishFuture.Wait).
func (r *publishRecord) terminate(err error) {
	r.once.Do(func() {
		if r.timer != nil {
			r.timer.Stop()
		}
		if r.onAck != nil {
			r.onAck(r.guid, err)
		}
		r.done <- err
		close(r.done)
	})
}

// publisher is the Publisher component (spec §4.2): it serialises
// publishes, assigns GUIDs, enforces bounded in-flight admission (count
// and cumulative byte size), and hands terminated records off for ack
// delivery.
//
// Admission is a ticket-based FIFO wait on a sync.Cond rather than the
// teacher's single buffered channel, so both the count limit and the byte
// limit gate the same queue of waiters fairly (spec §4.2 "Admission
// ordering").
type publisher struct {
	conn *Connection

	mu           sync.Mutex
	cond         *sync.Cond
	inFlight     map[string]*publishRecord
	count        int
	pendingBytes int64
	nextTicket   uint64
	nextServe    uint64
	abandoned    map[uint64]bool

	closed   bool
	closeErr error
}

func newPublisher(c *Connection) *publisher {
	p := &publisher{conn: c, inFlight: make(map[string]*publishRecord), abandoned: make(map[uint64]bool)}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// advanceServe drains nextServe past any tickets whose waiters already gave
// up, so a timed-out ticket can never permanently block every ticket behind
// it from ever satisfying fitsTurn (caller holds p.mu).
func (p *publisher) advanceServe() {
	for p.abandoned[p.nextServe] {
		delete(p.abandoned, p.nextServe)
		p.nextServe++
	}
}

// admit blocks the caller until a slot is available under both the count
// and byte limits, in the order callers arrived, or until deadline passes
// or the publisher is closed.
func (p *publisher) admit(size int64, deadline time.Time) error {
	p.mu.Lock()
	ticket := p.nextTicket
	p.nextTicket++

	// A goroutine broadcasts on the condition variable once, when the
	// deadline passes, so waiters can notice it even with nobody else
	// releasing a slot.
	stopTick := make(chan struct{})
	go func() {
		t := time.NewTimer(time.Until(deadline))
		defer t.Stop()
		select {
		case <-t.C:
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		case <-stopTick:
		}
	}()
	defer close(stopTick)

	for {
		if p.closed {
			err := p.closeErr
			p.mu.Unlock()
			return err
		}
		countLimit := p.conn.opts.MaxPubAcksInFlight
		msgLimit := p.conn.opts.PubAckPendingMessageLimit
		byteLimit := p.conn.opts.PubAckPendingBytesLimit

		fitsTurn := ticket == p.nextServe
		fitsCount := p.count < countLimit && (msgLimit < 0 || p.count < msgLimit)
		fitsBytes := byteLimit < 0 || p.pendingBytes+size <= byteLimit

		if fitsTurn && fitsCount && fitsBytes {
			p.count++
			p.pendingBytes += size
			p.nextServe++
			p.advanceServe()
			p.cond.Broadcast()
			p.mu.Unlock()
			return nil
		}
		if !time.Now().Before(deadline) {
			p.abandoned[ticket] = true
			p.advanceServe()
			p.cond.Broadcast()
			p.mu.Unlock()
			return &PublishTimeoutError{}
		}
		p.cond.Wait()
	}
}

func (p *publisher) release(size int64) {
	p.mu.Lock()
	p.count--
	p.pendingBytes -= size
	p.cond.Broadcast()
	p.mu.Unlock()
}

// remove takes a record out of the in-flight map and releases its
// admission slot. Returns nil if the guid is unknown (already terminated,
// or belongs to a prior session) — spec §4.3 "unknown GUIDs are silently
// dropped".
func (p *publisher) remove(guid string) *publishRecord {
	p.mu.Lock()
	rec, ok := p.inFlight[guid]
	if ok {
		delete(p.inFlight, guid)
	}
	p.mu.Unlock()
	if ok {
		p.release(rec.size)
	}
	return rec
}

// enqueue implements spec §4.2's Publish steps (a)-(f): validate, assign a
// GUID, block for admission, insert the record with an armed ack-wait
// timer, publish the wire message, and return the record so the caller
// can wait on it (Publish) or ignore it (PublishAsync/PublishAwaitable).
func (p *publisher) enqueue(subject string, data []byte, onAck AckHandler) (*publishRecord, error) {
	p.mu.Lock()
	if p.closed {
		err := p.closeErr
		p.mu.Unlock()
		return nil, err
	}
	p.mu.Unlock()

	size := int64(len(data))
	deadline := time.Now().Add(p.conn.opts.AckTimeout)
	if err := p.admit(size, deadline); err != nil {
		if te, ok := err.(*PublishTimeoutError); ok {
			te.Subject = subject
		}
		return nil, err
	}

	guid := newGUID()
	rec := &publishRecord{guid: guid, subject: subject, size: size, onAck: onAck, done: make(chan error, 1)}

	p.mu.Lock()
	if p.closed {
		err := p.closeErr
		p.mu.Unlock()
		p.release(size)
		return nil, err
	}
	p.inFlight[guid] = rec
	p.mu.Unlock()

	nc := p.conn.busConn()
	if nc == nil {
		p.remove(guid)
		return nil, ErrConnectionClosed
	}

	wire := &pb.PubMsg{ClientID: p.conn.clientID, Guid: guid, Subject: subject, Data: data}
	b, err := wire.Marshal()
	if err != nil {
		p.remove(guid)
		return nil, err
	}

	pubSubject := p.conn.pubSubject(subject)
	ackInbox := p.conn.ackInboxSubject()
	if err := nc.PublishRequest(pubSubject, ackInbox, b); err != nil {
		p.remove(guid)
		return nil, err
	}

	ackTimeout := p.conn.opts.AckTimeout
	rec.timer = time.AfterFunc(ackTimeout, func() {
		if r := p.remove(guid); r != nil {
			r.terminate(&PublishTimeoutError{Guid: guid, Subject: subject})
		}
	})

	return rec, nil
}

// closeWith terminates every live record with err and wakes every parked
// admission waiter with the same error (spec §4.2 "Session loss").
// Idempotent.
func (p *publisher) closeWith(err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.closeErr = err
	recs := make([]*publishRecord, 0, len(p.inFlight))
	for guid, r := range p.inFlight {
		recs = append(recs, r)
		delete(p.inFlight, guid)
	}
	p.count = 0
	p.pendingBytes = 0
	p.cond.Broadcast()
	p.mu.Unlock()

	for _, r := range recs {
		r.terminate(err)
	}
}

package chanstream

import (
	"errors"
	"sync"

	"github.com/chanstream/chanstream-go/pb"
)

// ackDispatcher is the AckDispatcher component (spec §4.3): bound to the
// session's ack-inbox subject, it decodes each PubAck, correlates it to a
// publishRecord by guid, and hands the terminal notification off to a
// bounded worker pool so a slow onAck callback can never stall the bus's
// own dispatch goroutine (Q1).
type ackDispatcher struct {
	conn   *Connection
	pub    *publisher
	busSub BusSubscription

	workCh chan func()
	wg     sync.WaitGroup
}

func newAckDispatcher(c *Connection, p *publisher, workers int) *ackDispatcher {
	if workers <= 0 {
		workers = 2
	}
	d := &ackDispatcher{conn: c, pub: p, workCh: make(chan func(), 1024)}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

func (d *ackDispatcher) worker() {
	defer d.wg.Done()
	for fn := range d.workCh {
		fn()
	}
}

// start attaches the bus subscription on ackInbox; call once, right after
// the handshake completes.
func (d *ackDispatcher) start(ackInbox string) error {
	sub, err := d.conn.nc.Subscribe(ackInbox, d.onMsg)
	if err != nil {
		return err
	}
	d.busSub = sub
	return nil
}

func (d *ackDispatcher) onMsg(raw *BusMsg) {
	pa := &pb.PubAck{}
	if err := pa.Unmarshal(raw.Data); err != nil {
		d.conn.errorf("ackdispatcher: malformed PubAck: %v", err)
		return
	}

	rec := d.pub.remove(pa.Guid)
	if rec == nil {
		// Belongs to a record already timed out, or to a torn-down
		// session; spec §4.3 says drop it silently.
		return
	}

	var err error
	if pa.Error != "" {
		err = errors.New(pa.Error)
	}
	d.dispatch(rec, err)
}

func (d *ackDispatcher) dispatch(rec *publishRecord, err error) {
	work := func() { rec.terminate(err) }
	select {
	case d.workCh <- work:
	default:
		// Worker pool is saturated; never block the bus callback goroutine
		// waiting for a slot.
		go work()
	}
}

// close detaches the ack-inbox subscription and drains the worker pool.
// Idempotent is not required: it is only ever called once, from
// Connection teardown, guarded by the connection's own state machine.
func (d *ackDispatcher) close() {
	if d.busSub != nil {
		d.busSub.Unsubscribe()
	}
	close(d.workCh)
	d.wg.Wait()
}

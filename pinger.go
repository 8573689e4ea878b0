package chanstream

import (
	"errors"
	"sync"
	"time"

	"github.com/chanstream/chanstream-go/pb"
)

// pinger is the Pinger component (spec §4.5): it periodically publishes a
// Ping to the server's negotiated ping-requests subject and declares the
// session lost, exactly once, after PingMaxOut consecutive pings go
// unanswered or come back with the server reporting the client as
// replaced — a rejection counts as one missed ping like any other failure,
// it does not bypass the threshold.
type pinger struct {
	conn     *Connection
	interval time.Duration
	maxOut   int
	subject  string
	connID   []byte

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func newPinger(c *Connection, subject string, interval time.Duration, maxOut int, connID []byte) *pinger {
	return &pinger{
		conn:     c,
		interval: interval,
		maxOut:   maxOut,
		subject:  subject,
		connID:   connID,
		stopCh:   make(chan struct{}),
	}
}

func (p *pinger) start() {
	if p.subject == "" {
		return
	}
	p.wg.Add(1)
	go p.run()
}

func (p *pinger) stop() {
	p.once.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *pinger) run() {
	defer p.wg.Done()
	t := time.NewTicker(p.interval)
	defer t.Stop()

	missed := 0
	lastReason := "server did not respond to ping"
	for {
		select {
		case <-p.stopCh:
			return
		case <-t.C:
			reason, err := p.tick()
			if reason != "" {
				lastReason = reason
			}
			if err != nil {
				missed++
				p.conn.debugf("pinger: ping failed (%d/%d): %v", missed, p.maxOut, err)
				if missed >= p.maxOut {
					p.declareLost(&ConnectionLostError{Reason: lastReason})
					return
				}
				continue
			}
			missed = 0
		}
	}
}

// tick sends one Ping and interprets the reply. A non-empty reason means
// the server itself rejected the session (e.g. a newer client replaced
// it); per spec §4.5 that still only counts as one missed ping against
// maxOut, it does not short-circuit the threshold, but its text is carried
// forward as the eventual ConnectionLostError.Reason instead of the
// generic no-reply message. err is non-nil for any failure, including a
// server rejection, so the caller always advances missed.
func (p *pinger) tick() (reason string, err error) {
	nc := p.conn.busConn()
	if nc == nil {
		return "", ErrConnectionClosed
	}
	req := &pb.Ping{ConnID: p.connID}
	b, merr := req.Marshal()
	if merr != nil {
		return "", merr
	}
	reply, rerr := nc.Request(p.subject, b, p.interval)
	if rerr != nil {
		return "", rerr
	}
	resp := &pb.PingResponse{}
	if uerr := resp.Unmarshal(reply.Data); uerr != nil {
		return "", uerr
	}
	if resp.Error != "" {
		return resp.Error, errors.New(resp.Error)
	}
	return "", nil
}

// declareLost reports the session lost to the user's handler exactly once
// (I4-style at-most-once discipline applied to the session itself) and
// tears the connection down locally.
func (p *pinger) declareLost(reason error) {
	p.conn.reportConnectionLost(reason)
}

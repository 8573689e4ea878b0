package chanstream_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	chanstream "github.com/chanstream/chanstream-go"
	"github.com/chanstream/chanstream-go/internal/stantest"
)

func startTestServer(t *testing.T) *stantest.Server {
	t.Helper()
	srv, err := stantest.New("test-cluster")
	if err != nil {
		t.Fatalf("starting embedded server: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func connectTest(t *testing.T, srv *stantest.Server, clientID string, opts ...chanstream.Option) *chanstream.Connection {
	t.Helper()
	all := append([]chanstream.Option{chanstream.NatsURL(srv.ClientURL())}, opts...)
	c, err := chanstream.Connect(srv.ClusterID, clientID, all...)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestConnectAndClose(t *testing.T) {
	srv := startTestServer(t)
	c := connectTest(t, srv, "client-1")
	if c.NatsConn() == nil {
		t.Fatal("expected a usable bus connection before Close")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
	if c.NatsConn() != nil {
		t.Fatal("expected NatsConn() to return nil after Close")
	}
}

func TestConnectRejected(t *testing.T) {
	srv := startTestServer(t)
	srv.RejectConnect = "duplicate client ID"

	_, err := chanstream.Connect(srv.ClusterID, "dup", chanstream.NatsURL(srv.ClientURL()), chanstream.ConnectWait(time.Second))
	if err == nil {
		t.Fatal("expected an error")
	}
	cre, ok := err.(*chanstream.ConnectRequestError)
	if !ok {
		t.Fatalf("expected *ConnectRequestError, got %T: %v", err, err)
	}
	if cre.Reason != "duplicate client ID" {
		t.Fatalf("unexpected reason: %q", cre.Reason)
	}
}

func TestPublishSynchronous(t *testing.T) {
	srv := startTestServer(t)
	c := connectTest(t, srv, "pub-client")

	guid, err := c.Publish("orders", []byte("hello"))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if guid == "" {
		t.Fatal("expected a non-empty guid")
	}
}

func TestPublishAsync(t *testing.T) {
	srv := startTestServer(t)
	c := connectTest(t, srv, "pub-async")

	var wg sync.WaitGroup
	wg.Add(1)
	var gotErr error
	guid, err := c.PublishAsync("orders", []byte("async"), func(g string, aerr error) {
		gotErr = aerr
		wg.Done()
	})
	if err != nil {
		t.Fatalf("PublishAsync: %v", err)
	}
	wg.Wait()
	if gotErr != nil {
		t.Fatalf("ack error: %v", gotErr)
	}
	if guid == "" {
		t.Fatal("expected a non-empty guid")
	}
}

func TestPublishAwaitable(t *testing.T) {
	srv := startTestServer(t)
	c := connectTest(t, srv, "pub-future")

	f, err := c.PublishAwaitable("orders", []byte("later"))
	if err != nil {
		t.Fatalf("PublishAwaitable: %v", err)
	}
	if err := f.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestBasicSubscribe(t *testing.T) {
	srv := startTestServer(t)
	pubC := connectTest(t, srv, "sub-pub")
	subC := connectTest(t, srv, "sub-sub")

	received := make(chan *chanstream.Message, 10)
	sub, err := subC.Subscribe("orders", func(m *chanstream.Message) {
		received <- m
	}, chanstream.DeliverAllAvailable())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if _, err := pubC.Publish("orders", []byte("payload-1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-received:
		if string(msg.Data) != "payload-1" {
			t.Fatalf("unexpected payload: %q", msg.Data)
		}
		if msg.Sequence != 1 {
			t.Fatalf("expected sequence 1, got %d", msg.Sequence)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestStartAtSequence(t *testing.T) {
	srv := startTestServer(t)
	pubC := connectTest(t, srv, "seq-pub")

	for i := 0; i < 3; i++ {
		if _, err := pubC.Publish("events", []byte{byte('a' + i)}); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}

	subC := connectTest(t, srv, "seq-sub")
	received := make(chan *chanstream.Message, 10)
	sub, err := subC.Subscribe("events", func(m *chanstream.Message) {
		received <- m
	}, chanstream.StartAtSequence(2))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	seen := map[uint64]bool{}
	for i := 0; i < 2; i++ {
		select {
		case m := <-received:
			seen[m.Sequence] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %d of 2 messages", len(seen))
		}
	}
	if !seen[2] || !seen[3] {
		t.Fatalf("expected sequences 2 and 3, got %v", seen)
	}
	if seen[1] {
		t.Fatal("should not have redelivered sequence 1")
	}
}

func TestManualAck(t *testing.T) {
	srv := startTestServer(t)
	pubC := connectTest(t, srv, "manual-pub")
	subC := connectTest(t, srv, "manual-sub")

	received := make(chan *chanstream.Message, 10)
	sub, err := subC.Subscribe("manual", func(m *chanstream.Message) {
		received <- m
	}, chanstream.DeliverAllAvailable(), chanstream.SetManualAckMode())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if _, err := pubC.Publish("manual", []byte("needs-ack")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case m := <-received:
		if err := m.Ack(); err != nil {
			t.Fatalf("Ack: %v", err)
		}
		if err := m.Ack(); err != nil {
			t.Fatalf("second Ack should be a no-op, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestAckOnAutoModeRejected(t *testing.T) {
	srv := startTestServer(t)
	pubC := connectTest(t, srv, "auto-pub")
	subC := connectTest(t, srv, "auto-sub")

	received := make(chan *chanstream.Message, 10)
	sub, err := subC.Subscribe("auto", func(m *chanstream.Message) {
		received <- m
	}, chanstream.DeliverAllAvailable())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if _, err := pubC.Publish("auto", []byte("x")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case m := <-received:
		if err := m.Ack(); err != chanstream.ErrManualAck {
			t.Fatalf("expected ErrManualAck, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestQueueSubscribeDistributesLoad(t *testing.T) {
	srv := startTestServer(t)
	pubC := connectTest(t, srv, "queue-pub")
	subC := connectTest(t, srv, "queue-sub")

	var mu sync.Mutex
	counts := map[string]int{}
	handler := func(name string) chanstream.MsgHandler {
		return func(m *chanstream.Message) {
			mu.Lock()
			counts[name]++
			mu.Unlock()
		}
	}

	s1, err := subC.QueueSubscribe("work", "workers", handler("s1"))
	if err != nil {
		t.Fatalf("QueueSubscribe s1: %v", err)
	}
	defer s1.Unsubscribe()
	s2, err := subC.QueueSubscribe("work", "workers", handler("s2"))
	if err != nil {
		t.Fatalf("QueueSubscribe s2: %v", err)
	}
	defer s2.Unsubscribe()

	for i := 0; i < 10; i++ {
		if _, err := pubC.Publish("work", []byte{byte(i)}); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}

	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	total := counts["s1"] + counts["s2"]
	mu.Unlock()
	if total != 10 {
		t.Fatalf("expected 10 total deliveries across the queue group, got %d", total)
	}
}

func TestDurableResume(t *testing.T) {
	srv := startTestServer(t)
	pubC := connectTest(t, srv, "durable-pub")

	if _, err := pubC.Publish("durable-ch", []byte("first")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	subC1 := connectTest(t, srv, "durable-sub")
	received := make(chan *chanstream.Message, 10)
	sub1, err := subC1.Subscribe("durable-ch", func(m *chanstream.Message) {
		received <- m
	}, chanstream.DeliverAllAvailable(), chanstream.DurableName("durable-1"), chanstream.SetManualAckMode())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case m := <-received:
		if err := m.Ack(); err != nil {
			t.Fatalf("Ack: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first delivery")
	}

	if err := sub1.Close(); err != nil {
		t.Fatalf("Close (durable detach): %v", err)
	}

	if _, err := pubC.Publish("durable-ch", []byte("second")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	subC2 := connectTest(t, srv, "durable-sub")
	received2 := make(chan *chanstream.Message, 10)
	sub2, err := subC2.Subscribe("durable-ch", func(m *chanstream.Message) {
		received2 <- m
	}, chanstream.DeliverAllAvailable(), chanstream.DurableName("durable-1"))
	if err != nil {
		t.Fatalf("resume Subscribe: %v", err)
	}
	defer sub2.Unsubscribe()

	select {
	case m := <-received2:
		if string(m.Data) != "second" {
			t.Fatalf("expected resumed delivery to start at 'second', got %q", m.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resumed delivery")
	}
}

func TestConnectionLostOnReplace(t *testing.T) {
	srv := startTestServer(t)
	srv.RejectPingAfter = 1

	const interval = 100 * time.Millisecond
	const maxOut = 3

	lost := make(chan error, 1)
	start := time.Now()
	c := connectTest(t, srv, "ping-client",
		chanstream.PingInterval(interval),
		chanstream.PingMaxOut(maxOut),
		chanstream.SetConnectionLostHandler(func(_ *chanstream.Connection, reason error) {
			lost <- reason
		}),
	)
	_ = c

	select {
	case reason := <-lost:
		elapsed := time.Since(start)
		if _, ok := reason.(*chanstream.ConnectionLostError); !ok {
			t.Fatalf("expected *ConnectionLostError, got %T: %v", reason, reason)
		}
		if !strings.Contains(reason.Error(), "replaced") {
			t.Fatalf("expected reason to carry the server's \"replaced\" text forward, got %q", reason.Error())
		}
		// A single rejected ping must not short-circuit PingMaxOut: the
		// handler can't fire before maxOut-1 full intervals have elapsed.
		if elapsed < (maxOut-1)*interval {
			t.Fatalf("connection-lost fired after %v, before %d consecutive rejected pings could have elapsed", elapsed, maxOut)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for connection-lost notification")
	}
}

package chanstream_test

import (
	"testing"
	"time"

	chanstream "github.com/chanstream/chanstream-go"
)

func TestConnectTimeoutOnUnknownCluster(t *testing.T) {
	srv := startTestServer(t)

	_, err := chanstream.Connect("no-such-cluster", "client-x",
		chanstream.NatsURL(srv.ClientURL()),
		chanstream.ConnectWait(200*time.Millisecond),
	)
	if err == nil {
		t.Fatal("expected an error connecting to an unknown cluster")
	}
	if _, ok := err.(*chanstream.ConnectRequestTimeoutError); !ok {
		t.Fatalf("expected *ConnectRequestTimeoutError, got %T: %v", err, err)
	}
}

func TestPublishAfterCloseFails(t *testing.T) {
	srv := startTestServer(t)
	c := connectTest(t, srv, "closed-pub")
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := c.Publish("orders", []byte("x")); err != chanstream.ErrConnectionClosed {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}
}

func TestManyConcurrentPublishesAllTerminate(t *testing.T) {
	srv := startTestServer(t)
	c := connectTest(t, srv, "concurrent-pub", chanstream.MaxPubAcksInflight(4))

	const n = 50
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, err := c.Publish("orders", []byte{byte(i)})
			errCh <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("publish %d: %v", i, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for publish %d to terminate", i)
		}
	}
}

package chanstream

import "testing"

func TestSubscriptionRegistryAddGetRemove(t *testing.T) {
	r := newSubscriptionRegistry()
	sub := &Subscription{subject: "orders"}

	r.add("inbox.1", sub)
	if got := r.get("inbox.1"); got != sub {
		t.Fatalf("expected to get back the same subscription, got %v", got)
	}
	if r.len() != 1 {
		t.Fatalf("expected len 1, got %d", r.len())
	}

	r.remove("inbox.1")
	if got := r.get("inbox.1"); got != nil {
		t.Fatalf("expected nil after remove, got %v", got)
	}
	if r.len() != 0 {
		t.Fatalf("expected len 0, got %d", r.len())
	}
}

func TestSubscriptionRegistryCloseAll(t *testing.T) {
	r := newSubscriptionRegistry()
	s1 := &Subscription{subject: "a", doneCh: make(chan struct{})}
	s2 := &Subscription{subject: "b", doneCh: make(chan struct{})}
	r.add("inbox.1", s1)
	r.add("inbox.2", s2)

	r.closeAll()

	if r.len() != 0 {
		t.Fatalf("expected registry empty after closeAll, got %d", r.len())
	}
	s1.mu.RLock()
	closed1 := s1.closed
	s1.mu.RUnlock()
	s2.mu.RLock()
	closed2 := s2.closed
	s2.mu.RUnlock()
	if !closed1 || !closed2 {
		t.Fatal("expected both subscriptions to be marked closed")
	}
}

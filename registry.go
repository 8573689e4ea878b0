package chanstream

import "sync"

// subscriptionRegistry is the SubscriptionRegistry component (spec §4.4):
// the single source of truth for which inboxes are live, keyed by the
// per-subscription inbox the server delivers to. Invariant I2 ("a
// Subscription's bus subscription is attached iff it is present in the
// registry") is enforced by only ever inserting a Subscription once its
// bus subscription has been created, and always removing it before
// detaching that bus subscription.
type subscriptionRegistry struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{subs: make(map[string]*Subscription)}
}

func (r *subscriptionRegistry) add(inbox string, sub *Subscription) {
	r.mu.Lock()
	r.subs[inbox] = sub
	r.mu.Unlock()
}

func (r *subscriptionRegistry) get(inbox string) *Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.subs[inbox]
}

func (r *subscriptionRegistry) remove(inbox string) {
	r.mu.Lock()
	delete(r.subs, inbox)
	r.mu.Unlock()
}

// closeAll tears down every registered subscription locally (no server
// round trip) and empties the registry. Used when the session itself is
// going away, either via Close() or a Pinger-declared connection loss.
func (r *subscriptionRegistry) closeAll() {
	r.mu.Lock()
	subs := make([]*Subscription, 0, len(r.subs))
	for inbox, s := range r.subs {
		subs = append(subs, s)
		delete(r.subs, inbox)
	}
	r.mu.Unlock()

	for _, s := range subs {
		s.closeLocally()
	}
}

func (r *subscriptionRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

package chanstream

import (
	"testing"
	"time"
)

func TestOptionsValidateDefaults(t *testing.T) {
	o := DefaultOptions
	if err := o.validate(); err != nil {
		t.Fatalf("DefaultOptions should validate, got: %v", err)
	}
}

func TestOptionsValidateRejectsZeroConnectTimeout(t *testing.T) {
	o := DefaultOptions
	o.ConnectTimeout = 0
	if err := o.validate(); err == nil {
		t.Fatal("expected an error for zero ConnectTimeout")
	}
}

func TestOptionsValidateRejectsLowPingMaxOut(t *testing.T) {
	o := DefaultOptions
	o.PingMaxOut = 1
	if err := o.validate(); err == nil {
		t.Fatal("expected an error for PingMaxOut < 3")
	}
}

func TestMaxPubAcksInflightSetsBothLimits(t *testing.T) {
	o := DefaultOptions
	if err := MaxPubAcksInflight(42)(&o); err != nil {
		t.Fatalf("MaxPubAcksInflight: %v", err)
	}
	if o.MaxPubAcksInFlight != 42 || o.PubAckPendingMessageLimit != 42 {
		t.Fatalf("expected both limits set to 42, got %d/%d", o.MaxPubAcksInFlight, o.PubAckPendingMessageLimit)
	}
}

func TestNatsURLRejectsEmpty(t *testing.T) {
	o := DefaultOptions
	if err := NatsURL()(&o); err == nil {
		t.Fatal("expected an error for no URLs")
	}
}

func TestSubscriptionOptionsValidate(t *testing.T) {
	o := DefaultSubscriptionOptions
	if err := o.validate(); err != nil {
		t.Fatalf("defaults should validate, got: %v", err)
	}

	bad := DefaultSubscriptionOptions
	bad.AckWait = 10 * time.Millisecond
	if err := bad.validate(); err == nil {
		t.Fatal("expected an error for sub-second AckWait")
	}
}

func TestDurableNameRejectsEmpty(t *testing.T) {
	o := DefaultSubscriptionOptions
	if err := DurableName("")(&o); err == nil {
		t.Fatal("expected an error for an empty durable name")
	}
}

func TestStartAtTimeDeltaResolution(t *testing.T) {
	o := DefaultSubscriptionOptions
	if err := StartAtTimeDelta(5 * time.Minute)(&o); err != nil {
		t.Fatalf("StartAtTimeDelta: %v", err)
	}
	if got := o.startPositionDelta(); got != 5*time.Minute {
		t.Fatalf("expected 5m, got %v", got)
	}
}

func TestStartAtTimeResolvesRelativeToNow(t *testing.T) {
	o := DefaultSubscriptionOptions
	past := time.Now().Add(-10 * time.Minute)
	if err := StartAtTime(past)(&o); err != nil {
		t.Fatalf("StartAtTime: %v", err)
	}
	got := o.startPositionDelta()
	if got < 9*time.Minute || got > 11*time.Minute {
		t.Fatalf("expected roughly 10m, got %v", got)
	}
}

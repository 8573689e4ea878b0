package pb

import "testing"

func TestPubMsgRoundTrip(t *testing.T) {
	in := &PubMsg{ClientID: "me", Guid: "abc123", Subject: "orders", Data: []byte("hello")}
	b, err := in.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := &PubMsg{}
	if err := out.Unmarshal(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ClientID != in.ClientID || out.Guid != in.Guid || out.Subject != in.Subject || string(out.Data) != string(in.Data) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestMsgProtoRoundTrip(t *testing.T) {
	in := &MsgProto{Sequence: 42, Subject: "orders", Data: []byte("payload"), Timestamp: 123456789, Redelivered: true, RedeliveryCount: 2}
	b, err := in.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := &MsgProto{}
	if err := out.Unmarshal(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Sequence != in.Sequence || out.Redelivered != in.Redelivered || out.RedeliveryCount != in.RedeliveryCount {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestSubscriptionRequestEnum(t *testing.T) {
	in := &SubscriptionRequest{ClientID: "me", Subject: "orders", StartPosition: StartPosition_SequenceStart, StartSequence: 6}
	b, err := in.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := &SubscriptionRequest{}
	if err := out.Unmarshal(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.StartPosition != StartPosition_SequenceStart || out.StartSequence != 6 {
		t.Fatalf("round trip mismatch: got %+v", out)
	}
}

func TestConnectResponseError(t *testing.T) {
	in := &ConnectResponse{Error: "duplicate clientID"}
	b, _ := in.Marshal()
	out := &ConnectResponse{}
	if err := out.Unmarshal(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Error != "duplicate clientID" {
		t.Fatalf("got error %q", out.Error)
	}
}

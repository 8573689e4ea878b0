// Package pb holds the wire messages exchanged between chanstream and the
// streaming server. These mirror the shapes generated by protoc-gen-gogo
// for the original nats-streaming-server protocol (ConnectRequest,
// PubMsg, MsgProto, ...): plain structs with protobuf struct tags that
// satisfy gogo/protobuf's proto.Message interface, and a Marshal/Unmarshal
// method pair per type delegating to the library's reflection-based
// codec, matching the call style at every wire boundary in the client
// (req.Marshal(), resp.Unmarshal(reply.Data)).
package pb

import "github.com/gogo/protobuf/proto"

// StartPosition selects where in a channel's history a new subscription
// begins.
type StartPosition int32

const (
	StartPosition_NewOnly        StartPosition = 0
	StartPosition_LastReceived   StartPosition = 1
	StartPosition_SequenceStart  StartPosition = 2
	StartPosition_TimeDeltaStart StartPosition = 3
	StartPosition_First          StartPosition = 4
)

func (p StartPosition) String() string {
	switch p {
	case StartPosition_NewOnly:
		return "NewOnly"
	case StartPosition_LastReceived:
		return "LastReceived"
	case StartPosition_SequenceStart:
		return "SequenceStart"
	case StartPosition_TimeDeltaStart:
		return "TimeDeltaStart"
	case StartPosition_First:
		return "First"
	default:
		return "Unknown"
	}
}

// ConnectRequest is sent to the discovery subject to open a session.
type ConnectRequest struct {
	ClientID        string `protobuf:"bytes,1,opt,name=clientID,proto3" json:"clientID,omitempty"`
	HeartbeatInbox  string `protobuf:"bytes,2,opt,name=heartbeatInbox,proto3" json:"heartbeatInbox,omitempty"`
	ProtocolVersion int32  `protobuf:"varint,3,opt,name=protocolVersion,proto3" json:"protocolVersion,omitempty"`
	PingInterval    int32  `protobuf:"varint,4,opt,name=pingInterval,proto3" json:"pingInterval,omitempty"`
	PingMaxOut      int32  `protobuf:"varint,5,opt,name=pingMaxOut,proto3" json:"pingMaxOut,omitempty"`
}

func (m *ConnectRequest) Reset()         { *m = ConnectRequest{} }
func (m *ConnectRequest) String() string { return proto.CompactTextString(m) }
func (*ConnectRequest) ProtoMessage()    {}

func (m *ConnectRequest) Marshal() ([]byte, error)  { return proto.Marshal(m) }
func (m *ConnectRequest) Unmarshal(b []byte) error  { return proto.Unmarshal(b, m) }

// ConnectResponse carries the per-session subjects and negotiated ping
// parameters back from the server.
type ConnectResponse struct {
	PubPrefix        string `protobuf:"bytes,1,opt,name=pubPrefix,proto3" json:"pubPrefix,omitempty"`
	SubRequests      string `protobuf:"bytes,2,opt,name=subRequests,proto3" json:"subRequests,omitempty"`
	UnsubRequests    string `protobuf:"bytes,3,opt,name=unsubRequests,proto3" json:"unsubRequests,omitempty"`
	CloseRequests    string `protobuf:"bytes,4,opt,name=closeRequests,proto3" json:"closeRequests,omitempty"`
	SubCloseRequests string `protobuf:"bytes,5,opt,name=subCloseRequests,proto3" json:"subCloseRequests,omitempty"`
	PingRequests     string `protobuf:"bytes,6,opt,name=pingRequests,proto3" json:"pingRequests,omitempty"`
	PingInterval     int32  `protobuf:"varint,7,opt,name=pingInterval,proto3" json:"pingInterval,omitempty"`
	PingMaxOut       int32  `protobuf:"varint,8,opt,name=pingMaxOut,proto3" json:"pingMaxOut,omitempty"`
	Error            string `protobuf:"bytes,9,opt,name=error,proto3" json:"error,omitempty"`
}

func (m *ConnectResponse) Reset()         { *m = ConnectResponse{} }
func (m *ConnectResponse) String() string { return proto.CompactTextString(m) }
func (*ConnectResponse) ProtoMessage()    {}

func (m *ConnectResponse) Marshal() ([]byte, error) { return proto.Marshal(m) }
func (m *ConnectResponse) Unmarshal(b []byte) error { return proto.Unmarshal(b, m) }

// PubMsg is a single publish, addressed to <pubPrefix>.<subject>.
type PubMsg struct {
	ClientID string `protobuf:"bytes,1,opt,name=clientID,proto3" json:"clientID,omitempty"`
	Guid     string `protobuf:"bytes,2,opt,name=guid,proto3" json:"guid,omitempty"`
	Subject  string `protobuf:"bytes,3,opt,name=subject,proto3" json:"subject,omitempty"`
	Data     []byte `protobuf:"bytes,4,opt,name=data,proto3" json:"data,omitempty"`
}

func (m *PubMsg) Reset()         { *m = PubMsg{} }
func (m *PubMsg) String() string { return proto.CompactTextString(m) }
func (*PubMsg) ProtoMessage()    {}

func (m *PubMsg) Marshal() ([]byte, error) { return proto.Marshal(m) }
func (m *PubMsg) Unmarshal(b []byte) error { return proto.Unmarshal(b, m) }

// PubAck is the server's reply to a PubMsg, correlated by Guid.
type PubAck struct {
	Guid  string `protobuf:"bytes,1,opt,name=guid,proto3" json:"guid,omitempty"`
	Error string `protobuf:"bytes,2,opt,name=error,proto3" json:"error,omitempty"`
}

func (m *PubAck) Reset()         { *m = PubAck{} }
func (m *PubAck) String() string { return proto.CompactTextString(m) }
func (*PubAck) ProtoMessage()    {}

func (m *PubAck) Marshal() ([]byte, error) { return proto.Marshal(m) }
func (m *PubAck) Unmarshal(b []byte) error { return proto.Unmarshal(b, m) }

// SubscriptionRequest asks the server to create (or resume, for a
// DurableName) a subscription, delivering to Inbox.
type SubscriptionRequest struct {
	ClientID       string        `protobuf:"bytes,1,opt,name=clientID,proto3" json:"clientID,omitempty"`
	Subject        string        `protobuf:"bytes,2,opt,name=subject,proto3" json:"subject,omitempty"`
	QGroup         string        `protobuf:"bytes,3,opt,name=qGroup,proto3" json:"qGroup,omitempty"`
	Inbox          string        `protobuf:"bytes,4,opt,name=inbox,proto3" json:"inbox,omitempty"`
	MaxInFlight    int32         `protobuf:"varint,5,opt,name=maxInFlight,proto3" json:"maxInFlight,omitempty"`
	AckWaitInSecs  int32         `protobuf:"varint,6,opt,name=ackWaitInSecs,proto3" json:"ackWaitInSecs,omitempty"`
	StartPosition  StartPosition `protobuf:"varint,7,opt,name=startPosition,proto3,enum=pb.StartPosition" json:"startPosition,omitempty"`
	StartSequence  uint64        `protobuf:"varint,8,opt,name=startSequence,proto3" json:"startSequence,omitempty"`
	StartTimeDelta int64         `protobuf:"varint,9,opt,name=startTimeDelta,proto3" json:"startTimeDelta,omitempty"`
	DurableName    string        `protobuf:"bytes,10,opt,name=durableName,proto3" json:"durableName,omitempty"`
}

func (m *SubscriptionRequest) Reset()         { *m = SubscriptionRequest{} }
func (m *SubscriptionRequest) String() string { return proto.CompactTextString(m) }
func (*SubscriptionRequest) ProtoMessage()    {}

func (m *SubscriptionRequest) Marshal() ([]byte, error) { return proto.Marshal(m) }
func (m *SubscriptionRequest) Unmarshal(b []byte) error { return proto.Unmarshal(b, m) }

// SubscriptionResponse carries the server-assigned ack-inbox, or an error.
type SubscriptionResponse struct {
	AckInbox string `protobuf:"bytes,1,opt,name=ackInbox,proto3" json:"ackInbox,omitempty"`
	Error    string `protobuf:"bytes,2,opt,name=error,proto3" json:"error,omitempty"`
}

func (m *SubscriptionResponse) Reset()         { *m = SubscriptionResponse{} }
func (m *SubscriptionResponse) String() string { return proto.CompactTextString(m) }
func (*SubscriptionResponse) ProtoMessage()    {}

func (m *SubscriptionResponse) Marshal() ([]byte, error) { return proto.Marshal(m) }
func (m *SubscriptionResponse) Unmarshal(b []byte) error { return proto.Unmarshal(b, m) }

// UnsubscribeRequest asks the server to forget a subscription's durable
// state entirely.
type UnsubscribeRequest struct {
	ClientID    string `protobuf:"bytes,1,opt,name=clientID,proto3" json:"clientID,omitempty"`
	Subject     string `protobuf:"bytes,2,opt,name=subject,proto3" json:"subject,omitempty"`
	Inbox       string `protobuf:"bytes,3,opt,name=inbox,proto3" json:"inbox,omitempty"`
	DurableName string `protobuf:"bytes,4,opt,name=durableName,proto3" json:"durableName,omitempty"`
}

func (m *UnsubscribeRequest) Reset()         { *m = UnsubscribeRequest{} }
func (m *UnsubscribeRequest) String() string { return proto.CompactTextString(m) }
func (*UnsubscribeRequest) ProtoMessage()    {}

func (m *UnsubscribeRequest) Marshal() ([]byte, error) { return proto.Marshal(m) }
func (m *UnsubscribeRequest) Unmarshal(b []byte) error { return proto.Unmarshal(b, m) }

// SubscriptionCloseRequest asks the server to detach a subscription while
// preserving its durable state for a later resume.
type SubscriptionCloseRequest struct {
	ClientID    string `protobuf:"bytes,1,opt,name=clientID,proto3" json:"clientID,omitempty"`
	Subject     string `protobuf:"bytes,2,opt,name=subject,proto3" json:"subject,omitempty"`
	Inbox       string `protobuf:"bytes,3,opt,name=inbox,proto3" json:"inbox,omitempty"`
	DurableName string `protobuf:"bytes,4,opt,name=durableName,proto3" json:"durableName,omitempty"`
}

func (m *SubscriptionCloseRequest) Reset()         { *m = SubscriptionCloseRequest{} }
func (m *SubscriptionCloseRequest) String() string { return proto.CompactTextString(m) }
func (*SubscriptionCloseRequest) ProtoMessage()    {}

func (m *SubscriptionCloseRequest) Marshal() ([]byte, error) { return proto.Marshal(m) }
func (m *SubscriptionCloseRequest) Unmarshal(b []byte) error { return proto.Unmarshal(b, m) }

// CloseRequest asks the server to release all session state for clientID.
type CloseRequest struct {
	ClientID string `protobuf:"bytes,1,opt,name=clientID,proto3" json:"clientID,omitempty"`
}

func (m *CloseRequest) Reset()         { *m = CloseRequest{} }
func (m *CloseRequest) String() string { return proto.CompactTextString(m) }
func (*CloseRequest) ProtoMessage()    {}

func (m *CloseRequest) Marshal() ([]byte, error) { return proto.Marshal(m) }
func (m *CloseRequest) Unmarshal(b []byte) error { return proto.Unmarshal(b, m) }

// CloseResponse acknowledges a CloseRequest.
type CloseResponse struct {
	Error string `protobuf:"bytes,1,opt,name=error,proto3" json:"error,omitempty"`
}

func (m *CloseResponse) Reset()         { *m = CloseResponse{} }
func (m *CloseResponse) String() string { return proto.CompactTextString(m) }
func (*CloseResponse) ProtoMessage()    {}

func (m *CloseResponse) Marshal() ([]byte, error) { return proto.Marshal(m) }
func (m *CloseResponse) Unmarshal(b []byte) error { return proto.Unmarshal(b, m) }

// Ack is published by the client to a subscription's ack-inbox, manually
// or automatically, to acknowledge delivery of Sequence.
type Ack struct {
	Subject  string `protobuf:"bytes,1,opt,name=subject,proto3" json:"subject,omitempty"`
	Sequence uint64 `protobuf:"varint,2,opt,name=sequence,proto3" json:"sequence,omitempty"`
}

func (m *Ack) Reset()         { *m = Ack{} }
func (m *Ack) String() string { return proto.CompactTextString(m) }
func (*Ack) ProtoMessage()    {}

func (m *Ack) Marshal() ([]byte, error) { return proto.Marshal(m) }
func (m *Ack) Unmarshal(b []byte) error { return proto.Unmarshal(b, m) }

// MsgProto is a single delivered message, sent by the server to a
// subscription's inbox.
type MsgProto struct {
	Sequence        uint64 `protobuf:"varint,1,opt,name=sequence,proto3" json:"sequence,omitempty"`
	Subject         string `protobuf:"bytes,2,opt,name=subject,proto3" json:"subject,omitempty"`
	Data            []byte `protobuf:"bytes,3,opt,name=data,proto3" json:"data,omitempty"`
	Timestamp       int64  `protobuf:"varint,4,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
	Redelivered     bool   `protobuf:"varint,5,opt,name=redelivered,proto3" json:"redelivered,omitempty"`
	RedeliveryCount uint32 `protobuf:"varint,6,opt,name=redeliveryCount,proto3" json:"redeliveryCount,omitempty"`
	CRC32           uint32 `protobuf:"varint,7,opt,name=crc32,proto3" json:"crc32,omitempty"`
}

func (m *MsgProto) Reset()         { *m = MsgProto{} }
func (m *MsgProto) String() string { return proto.CompactTextString(m) }
func (*MsgProto) ProtoMessage()    {}

func (m *MsgProto) Marshal() ([]byte, error) { return proto.Marshal(m) }
func (m *MsgProto) Unmarshal(b []byte) error { return proto.Unmarshal(b, m) }

// Ping is the client's periodic liveness request.
type Ping struct {
	ConnID []byte `protobuf:"bytes,1,opt,name=connID,proto3" json:"connID,omitempty"`
}

func (m *Ping) Reset()         { *m = Ping{} }
func (m *Ping) String() string { return proto.CompactTextString(m) }
func (*Ping) ProtoMessage()    {}

func (m *Ping) Marshal() ([]byte, error) { return proto.Marshal(m) }
func (m *Ping) Unmarshal(b []byte) error { return proto.Unmarshal(b, m) }

// PingResponse replies to a Ping; a non-empty Error (e.g. "...replaced...")
// tells the client its session has been superseded.
type PingResponse struct {
	Error string `protobuf:"bytes,1,opt,name=error,proto3" json:"error,omitempty"`
}

func (m *PingResponse) Reset()         { *m = PingResponse{} }
func (m *PingResponse) String() string { return proto.CompactTextString(m) }
func (*PingResponse) ProtoMessage()    {}

func (m *PingResponse) Marshal() ([]byte, error) { return proto.Marshal(m) }
func (m *PingResponse) Unmarshal(b []byte) error { return proto.Unmarshal(b, m) }

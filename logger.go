package chanstream

// Logger is the minimal leveled-logging interface the session uses for
// its own diagnostics. Debug covers failed pings; Error covers conditions
// that are swallowed rather than surfaced to the caller (ack marshal and
// ack-publish failures, malformed PubAck and MsgProto payloads). A nil
// Logger passed to SetLogger is replaced with a no-op, so
// the library is silent unless a caller wires one in.
type Logger interface {
	Debugf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Errorf(string, ...interface{}) {}

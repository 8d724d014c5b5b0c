package director

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// AuditEntry is one emitted control message, recorded in the in-memory
// audit log.
type AuditEntry struct {
	Address   string    `json:"address"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// OutputSink emits switching commands to the mixer and records every call
// in an append-only audit log (spec.md §4.g). Transport failures are
// logged, never propagated — best-effort send per spec.md §7.
type OutputSink interface {
	Cam(targetID string)
	Wide(reason WideReason)
	AuditLog() []AuditEntry
}

// udpSink is the production OutputSink. No OSC client library is present
// in the retrieval pack (see DESIGN.md), so the two message shapes in
// spec.md §6 are hand-encoded over a UDP datagram connection: the
// address and stringified value separated by a space, terminated by a
// newline.
type udpSink struct {
	mu    sync.Mutex
	conn  net.Conn
	log   []AuditEntry
	clock func() time.Time
	logger Logger
}

// NewUDPSink dials host:port once; a dial failure is logged and the sink
// degrades to audit-log-only (every Send attempt becomes a no-op network
// write that is itself best-effort and never errors the caller).
func NewUDPSink(host string, port int, logger Logger) *udpSink {
	if logger == nil {
		logger = NoOpLogger{}
	}
	conn, err := net.Dial("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		logger.Warn("output sink: dial failed, running audit-log-only", "host", host, "port", port, "error", err)
		conn = nil
	}
	return &udpSink{conn: conn, clock: time.Now, logger: logger}
}

func (s *udpSink) send(address, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log = append(s.log, AuditEntry{Address: address, Value: value, Timestamp: s.clock()})

	if s.conn == nil {
		return
	}
	msg := fmt.Sprintf("%s %s\n", address, value)
	if _, err := s.conn.Write([]byte(msg)); err != nil {
		s.logger.Warn("output sink: send failed", "address", address, "value", value, "error", err)
	}
}

// Cam emits /camera = targetID ("go to named camera").
func (s *udpSink) Cam(targetID string) {
	s.send("/camera", targetID)
}

// Wide emits /wide = reason ("force the wide shot").
func (s *udpSink) Wide(reason WideReason) {
	s.send("/wide", string(reason))
}

// AuditLog returns a copy of the entries emitted so far.
func (s *udpSink) AuditLog() []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEntry, len(s.log))
	copy(out, s.log)
	return out
}

func (s *udpSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

package proto

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

const (
	// ProtocolVersion is stamped into the first header byte of every frame.
	ProtocolVersion = 1

	// HeaderSize is the fixed frame header length in bytes:
	// version(1) + kind(1) + body length(4) + timestamp(4).
	HeaderSize = 10

	// DefaultMaxBodyBytes bounds the declared body length on decode.
	DefaultMaxBodyBytes = 10000
)

// Kind identifies the protocol message type. The ordinal value is
// transmitted on the wire, so the order here is part of the protocol.
type Kind byte

const (
	KindLoginRequest Kind = iota
	KindLoginResponse
	KindJoinRoomRequest
	KindTextMessage
	KindPrivateMessage
	KindUserListRequest
	KindUserListResponse
	KindErrorResponse

	kindCount
)

var kindNames = [...]string{
	"LOGIN_REQUEST",
	"LOGIN_RESPONSE",
	"JOIN_ROOM_REQUEST",
	"TEXT_MESSAGE",
	"PRIVATE_MESSAGE",
	"USER_LIST_REQUEST",
	"USER_LIST_RESPONSE",
	"ERROR_RESPONSE",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("UNKNOWN(%d)", byte(k))
}

// Valid reports whether the kind is one of the defined protocol kinds.
func (k Kind) Valid() bool {
	return k < kindCount
}

// Message is one decoded protocol frame. Instances are treated as
// immutable after decode; outbound messages are constructed fresh.
type Message struct {
	Kind      Kind
	Version   byte
	Sender    string
	Content   string
	Timestamp time.Time
}

// New builds an outbound message stamped with the current time.
func New(kind Kind, sender, content string) Message {
	return Message{
		Kind:      kind,
		Version:   ProtocolVersion,
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// FrameError reports a malformed or truncated frame.
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string {
	return "frame: " + e.Reason
}

func frameErrorf(format string, args ...any) *FrameError {
	return &FrameError{Reason: fmt.Sprintf(format, args...)}
}

// body is the JSON payload carried after the header. Type duplicates the
// header kind byte for readability of captures; decode trusts the header.
type body struct {
	Type    string `json:"type"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// Encode serializes the message into a single frame: the 10-byte binary
// header followed by the JSON body. The timestamp is truncated to whole
// seconds, transmitted as a 32-bit big-endian integer.
func Encode(m Message) ([]byte, error) {
	payload, err := json.Marshal(body{
		Type:    m.Kind.String(),
		Sender:  m.Sender,
		Content: m.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}

	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = ProtocolVersion
	buf[1] = byte(m.Kind)
	binary.BigEndian.PutUint32(buf[2:6], uint32(len(payload)))
	binary.BigEndian.PutUint32(buf[6:10], uint32(int32(ts.Unix())))
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// Decode parses a complete frame from data. It fails with *FrameError when
// the buffer is shorter than the header, the declared body length is
// negative or above maxBody, or the body is truncated. A body that does not
// parse as JSON yields empty sender/content rather than an error; callers
// must tolerate empty fields.
func Decode(data []byte, maxBody int) (Message, error) {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	if len(data) < HeaderSize {
		return Message{}, frameErrorf("short header: %d bytes", len(data))
	}

	version := data[0]
	kind := Kind(data[1])
	bodyLen := int(int32(binary.BigEndian.Uint32(data[2:6])))
	ts := int64(int32(binary.BigEndian.Uint32(data[6:10])))

	if bodyLen < 0 || bodyLen > maxBody {
		return Message{}, frameErrorf("invalid body length %d", bodyLen)
	}
	if len(data)-HeaderSize < bodyLen {
		return Message{}, frameErrorf("truncated body: want %d, have %d", bodyLen, len(data)-HeaderSize)
	}

	var b body
	// Malformed bodies degrade to empty fields instead of failing the frame.
	_ = json.Unmarshal(data[HeaderSize:HeaderSize+bodyLen], &b)

	return Message{
		Kind:      kind,
		Version:   version,
		Sender:    b.Sender,
		Content:   b.Content,
		Timestamp: time.Unix(ts, 0),
	}, nil
}

// ReadFrame reads exactly one frame from r: the fixed header first, then
// the declared body. It returns the raw frame bytes so the caller decides
// when to decode. io.EOF is returned unwrapped on a clean end of stream.
func ReadFrame(r io.Reader, maxBody int) ([]byte, error) {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}

	bodyLen := int(int32(binary.BigEndian.Uint32(header[2:6])))
	if bodyLen < 0 || bodyLen > maxBody {
		return nil, frameErrorf("invalid body length %d", bodyLen)
	}

	frame := make([]byte, HeaderSize+bodyLen)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[HeaderSize:]); err != nil {
		return nil, frameErrorf("read body: %v", err)
	}
	return frame, nil
}

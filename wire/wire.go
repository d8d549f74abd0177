package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/opd-ai/ncp/limits"
)

// MessageType identifies the type of a framed protocol message.
type MessageType byte

const (
	// MessageMeta announces one entry (file or directory) to the receiver.
	MessageMeta MessageType = iota + 1
	// MessagePreflightOk accepts the announced entry.
	MessagePreflightOk
	// MessagePreflightFail rejects the announced entry with a reason.
	MessagePreflightFail
	// MessageTransferStart precedes the raw payload bytes of a file entry.
	MessageTransferStart
	// MessageTransferResult closes one entry transfer.
	MessageTransferResult
)

// String returns a human-readable name for the message type.
func (t MessageType) String() string {
	switch t {
	case MessageMeta:
		return "Meta"
	case MessagePreflightOk:
		return "PreflightOk"
	case MessagePreflightFail:
		return "PreflightFail"
	case MessageTransferStart:
		return "TransferStart"
	case MessageTransferResult:
		return "TransferResult"
	default:
		return fmt.Sprintf("Unknown(%d)", byte(t))
	}
}

// OverwriteMode governs what the receiver does when an entry's
// destination path already exists. It is configured on the sender and
// carried per-entry inside Meta, so the receiver needs no out-of-band
// configuration of its own.
type OverwriteMode byte

const (
	// OverwriteAsk prompts the receiving operator interactively.
	OverwriteAsk OverwriteMode = iota
	// OverwriteYes overwrites without asking.
	OverwriteYes
	// OverwriteNo rejects entries whose destination already exists.
	OverwriteNo
)

// String returns the mode's command-line spelling.
func (m OverwriteMode) String() string {
	switch m {
	case OverwriteAsk:
		return "ask"
	case OverwriteYes:
		return "yes"
	case OverwriteNo:
		return "no"
	default:
		return fmt.Sprintf("unknown(%d)", byte(m))
	}
}

// ParseOverwriteMode parses the command-line spelling of an overwrite mode.
func ParseOverwriteMode(s string) (OverwriteMode, error) {
	switch s {
	case "ask":
		return OverwriteAsk, nil
	case "yes":
		return OverwriteYes, nil
	case "no":
		return OverwriteNo, nil
	default:
		return 0, fmt.Errorf("invalid overwrite mode %q (want ask, yes or no)", s)
	}
}

var (
	// ErrUnknownMessageType indicates a frame with an unrecognized type byte.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrLengthMismatch indicates a frame whose declared length disagrees
	// with the bytes its structural decode consumes.
	ErrLengthMismatch = errors.New("frame length does not match payload")

	// ErrTruncated indicates the stream ended in the middle of a message.
	ErrTruncated = errors.New("truncated stream")

	// ErrInvalidOverwriteMode indicates an out-of-range overwrite byte in Meta.
	ErrInvalidOverwriteMode = errors.New("invalid overwrite mode byte")
)

// Message is one of the five protocol messages.
type Message interface {
	Type() MessageType

	// payload returns the message's wire payload, without the frame header.
	payload() []byte
}

// Meta announces one entry before any payload moves.
type Meta struct {
	Name      string
	Size      uint64
	IsDir     bool
	Overwrite OverwriteMode
}

// Type implements Message.
func (*Meta) Type() MessageType { return MessageMeta }

func (m *Meta) payload() []byte {
	// Format: [size (8 bytes)][is_dir (1 byte)][overwrite (1 byte)][name_len (4 bytes)][name]
	name := []byte(m.Name)
	data := make([]byte, 8+1+1+4+len(name))

	binary.BigEndian.PutUint64(data[0:8], m.Size)
	if m.IsDir {
		data[8] = 1
	}
	data[9] = byte(m.Overwrite)
	binary.BigEndian.PutUint32(data[10:14], uint32(len(name)))
	copy(data[14:], name)

	return data
}

func decodeMeta(data []byte) (*Meta, error) {
	if len(data) < 14 {
		return nil, fmt.Errorf("%w: Meta payload %d bytes, want at least 14", ErrLengthMismatch, len(data))
	}

	m := &Meta{
		Size:  binary.BigEndian.Uint64(data[0:8]),
		IsDir: data[8] != 0,
	}

	if data[9] > byte(OverwriteNo) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOverwriteMode, data[9])
	}
	m.Overwrite = OverwriteMode(data[9])

	nameLen := binary.BigEndian.Uint32(data[10:14])
	if err := limits.ValidateNameLength(nameLen); err != nil {
		return nil, err
	}
	if uint32(len(data)-14) != nameLen {
		return nil, fmt.Errorf("%w: Meta name length %d, %d payload bytes remain", ErrLengthMismatch, nameLen, len(data)-14)
	}
	m.Name = string(data[14:])

	return m, nil
}

// PreflightOk accepts the most recently announced entry. AvailableSpace
// is the receiver's raw free-space figure for file entries; it is
// informational only and zero for directories.
type PreflightOk struct {
	AvailableSpace uint64
}

// Type implements Message.
func (*PreflightOk) Type() MessageType { return MessagePreflightOk }

func (m *PreflightOk) payload() []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, m.AvailableSpace)
	return data
}

func decodePreflightOk(data []byte) (*PreflightOk, error) {
	if len(data) != 8 {
		return nil, fmt.Errorf("%w: PreflightOk payload %d bytes, want 8", ErrLengthMismatch, len(data))
	}
	return &PreflightOk{AvailableSpace: binary.BigEndian.Uint64(data)}, nil
}

// PreflightFail rejects the most recently announced entry.
type PreflightFail struct {
	Reason string
}

// Type implements Message.
func (*PreflightFail) Type() MessageType { return MessagePreflightFail }

func (m *PreflightFail) payload() []byte {
	// Format: [reason_len (4 bytes)][reason]
	reason := []byte(m.Reason)
	data := make([]byte, 4+len(reason))
	binary.BigEndian.PutUint32(data[0:4], uint32(len(reason)))
	copy(data[4:], reason)
	return data
}

func decodePreflightFail(data []byte) (*PreflightFail, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: PreflightFail payload %d bytes, want at least 4", ErrLengthMismatch, len(data))
	}
	reasonLen := binary.BigEndian.Uint32(data[0:4])
	if err := limits.ValidateReasonLength(reasonLen); err != nil {
		return nil, err
	}
	if uint32(len(data)-4) != reasonLen {
		return nil, fmt.Errorf("%w: PreflightFail reason length %d, %d payload bytes remain", ErrLengthMismatch, reasonLen, len(data)-4)
	}
	return &PreflightFail{Reason: string(data[4:])}, nil
}

// TransferStart precedes exactly FileSize raw payload bytes. Sent for
// file entries only.
type TransferStart struct {
	FileSize uint64
}

// Type implements Message.
func (*TransferStart) Type() MessageType { return MessageTransferStart }

func (m *TransferStart) payload() []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, m.FileSize)
	return data
}

func decodeTransferStart(data []byte) (*TransferStart, error) {
	if len(data) != 8 {
		return nil, fmt.Errorf("%w: TransferStart payload %d bytes, want 8", ErrLengthMismatch, len(data))
	}
	return &TransferStart{FileSize: binary.BigEndian.Uint64(data)}, nil
}

// TransferResult closes one entry transfer. Directories report
// ReceivedBytes of zero.
type TransferResult struct {
	OK            bool
	ReceivedBytes uint64
}

// Type implements Message.
func (*TransferResult) Type() MessageType { return MessageTransferResult }

func (m *TransferResult) payload() []byte {
	// Format: [ok (1 byte)][received_bytes (8 bytes)]
	data := make([]byte, 9)
	if m.OK {
		data[0] = 1
	}
	binary.BigEndian.PutUint64(data[1:9], m.ReceivedBytes)
	return data
}

func decodeTransferResult(data []byte) (*TransferResult, error) {
	if len(data) != 9 {
		return nil, fmt.Errorf("%w: TransferResult payload %d bytes, want 9", ErrLengthMismatch, len(data))
	}
	return &TransferResult{
		OK:            data[0] != 0,
		ReceivedBytes: binary.BigEndian.Uint64(data[1:9]),
	}, nil
}

// Encode serializes a message into a complete frame:
// [type (1 byte)][length (4 bytes, big-endian)][payload].
func Encode(m Message) []byte {
	payload := m.payload()
	frame := make([]byte, 5+len(payload))
	frame[0] = byte(m.Type())
	binary.BigEndian.PutUint32(frame[1:5], uint32(len(payload)))
	copy(frame[5:], payload)
	return frame
}

// WriteMessage frames and writes one message to w.
func WriteMessage(w io.Writer, m Message) error {
	if _, err := w.Write(Encode(m)); err != nil {
		return fmt.Errorf("write %s: %w", m.Type(), err)
	}
	return nil
}

// ReadMessage reads and decodes one framed message from r.
//
// A clean end of stream before the type byte is reported as io.EOF;
// callers decide whether that position is a legal stopping point. Any
// end of stream after the first byte of a frame is ErrTruncated.
func ReadMessage(r io.Reader) (Message, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:1]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: reading message type: %v", ErrTruncated, err)
	}
	if _, err := io.ReadFull(r, header[1:]); err != nil {
		return nil, fmt.Errorf("%w: reading message length: %v", ErrTruncated, err)
	}

	length := binary.BigEndian.Uint32(header[1:5])
	if err := limits.ValidateMessageLength(length); err != nil {
		return nil, err
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: reading %d payload bytes: %v", ErrTruncated, length, err)
	}

	switch MessageType(header[0]) {
	case MessageMeta:
		return decodeMeta(payload)
	case MessagePreflightOk:
		return decodePreflightOk(payload)
	case MessagePreflightFail:
		return decodePreflightFail(payload)
	case MessageTransferStart:
		return decodeTransferStart(payload)
	case MessageTransferResult:
		return decodeTransferResult(payload)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, header[0])
	}
}

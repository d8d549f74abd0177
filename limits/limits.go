// Package limits provides centralized size limits for the ncp wire protocol.
// This ensures consistent validation across different components of the system.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxMessageLength is the maximum payload length of a single framed
	// message. A peer declaring a larger frame is treated as hostile or
	// corrupt; this prevents unbounded allocation from the length field
	// of the frame header (1MB limit).
	MaxMessageLength = 1024 * 1024

	// MaxNameLength is the maximum length of an entry name on the wire.
	// Entry names are root-relative slash-separated paths, so this must
	// accommodate nested trees while still bounding allocation.
	MaxNameLength = 4096

	// MaxReasonLength is the maximum length of a preflight rejection
	// reason string on the wire.
	MaxReasonLength = 1024

	// ChunkSize is the buffer size used when streaming file payload
	// bytes between the filesystem and the socket.
	ChunkSize = 8192
)

var (
	// ErrLengthTooLarge indicates a declared length exceeds its limit.
	ErrLengthTooLarge = errors.New("declared length too large")
)

// ValidateMessageLength validates a frame's declared payload length
// against MaxMessageLength. Returns an error with context including the
// declared and maximum lengths.
func ValidateMessageLength(length uint32) error {
	if length > MaxMessageLength {
		return fmt.Errorf("%w: message length %d exceeds limit %d", ErrLengthTooLarge, length, MaxMessageLength)
	}
	return nil
}

// ValidateNameLength validates an entry name length against MaxNameLength.
// Returns an error with context if the length exceeds the limit.
func ValidateNameLength(length uint32) error {
	if length > MaxNameLength {
		return fmt.Errorf("%w: name length %d exceeds limit %d", ErrLengthTooLarge, length, MaxNameLength)
	}
	return nil
}

// ValidateReasonLength validates a rejection reason length against
// MaxReasonLength. Returns an error with context if the length exceeds
// the limit.
func ValidateReasonLength(length uint32) error {
	if length > MaxReasonLength {
		return fmt.Errorf("%w: reason length %d exceeds limit %d", ErrLengthTooLarge, length, MaxReasonLength)
	}
	return nil
}

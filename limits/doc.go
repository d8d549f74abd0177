// Package limits provides centralized size constants and validation functions
// for the ncp wire protocol. This package ensures consistent size enforcement
// across all components of the transfer engine.
//
// # Size Hierarchy
//
// The package defines a hierarchy of limits covering the different variable
// length fields that appear on the wire:
//
//   - MaxMessageLength (1MB): The absolute maximum for a framed message
//     payload. Every frame header carries a 4-byte length field supplied by
//     the peer; capping it here prevents memory exhaustion from a hostile or
//     corrupt remote before any structural decoding happens.
//
//   - MaxNameLength (4096 bytes): The maximum for an entry name. Names are
//     root-relative slash-separated paths, so the cap matches common PATH_MAX
//     conventions rather than single-component filename limits.
//
//   - MaxReasonLength (1024 bytes): The maximum for a preflight rejection
//     reason. Reasons are short human-readable diagnostics.
//
//   - ChunkSize (8192 bytes): The fixed buffer size for streaming file
//     payload bytes. Payload bytes are raw, with no inter-chunk framing, so
//     this is purely an I/O buffer size and never appears on the wire.
//
// # Validation Functions
//
// Each validation function checks one declared length against its limit:
//
//	err := limits.ValidateMessageLength(frameLen)
//	if err != nil {
//	    // Handle ErrLengthTooLarge
//	}
//
// All network-received length fields should be validated before allocating
// buffers for their contents.
package limits

// Package wire implements the ncp binary wire protocol.
//
// Every message travels as a single frame:
//
//	[type (1 byte)][length (4 bytes, big-endian)][payload]
//
// where length counts the payload bytes only. All integers are
// big-endian; strings are a 4-byte length followed by that many bytes,
// not NUL-terminated. The protocol has exactly five message types:
//
//	Type | Name           | Payload
//	-----+----------------+------------------------------------------------------
//	  1  | Meta           | size:u64, is_dir:u8, overwrite:u8, name_len:u32, name
//	  2  | PreflightOk    | available_space:u64
//	  3  | PreflightFail  | reason_len:u32, reason
//	  4  | TransferStart  | file_size:u64
//	  5  | TransferResult | ok:u8, received_bytes:u64
//
// File payload bytes follow a TransferStart frame raw, with no framing
// of their own; the byte count equals TransferStart's file_size exactly.
//
// Decoding validates every peer-supplied length against the limits
// package before allocating, and rejects frames whose declared length
// disagrees with the bytes the structural decode consumes.
//
// Example:
//
//	err := wire.WriteMessage(conn, &wire.Meta{Name: "a.txt", Size: 100})
//	...
//	msg, err := wire.ReadMessage(conn)
//	switch m := msg.(type) {
//	case *wire.PreflightOk:
//	    ...
//	}
package wire

package session

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ncp/limits"
	"github.com/opd-ai/ncp/wire"
)

// TempSuffix is appended to a file's final path while its payload
// streams in. The temporary file lives in the same directory as the
// final path so the closing rename stays on one volume and is atomic.
const TempSuffix = ".ncp_temp"

var (
	// ErrProtocol indicates a message arrived out of the expected
	// sequence, or the stream closed in the middle of an entry.
	ErrProtocol = errors.New("protocol violation")

	// ErrRejected indicates the receiver declined an entry. The sender
	// aborts the whole session on the first rejection; the protocol has
	// no per-entry skip.
	ErrRejected = errors.New("transfer rejected by receiver")

	// ErrTransferFailed indicates the peer reported a failed entry in
	// its TransferResult.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrTransferIncomplete indicates fewer payload bytes than declared
	// could be moved before the source or stream gave out.
	ErrTransferIncomplete = errors.New("transfer incomplete")
)

// Config carries the tunable parts of a transfer session.
type Config struct {
	// Overwrite is the transfer-wide overwrite policy. The sender
	// stamps it into every Meta; the receiver honors the stamped value.
	Overwrite wire.OverwriteMode

	// ChunkSize is the payload streaming buffer size. Zero selects
	// limits.ChunkSize.
	ChunkSize int

	// DisableChecksum turns off the informational payload digest.
	DisableChecksum bool

	// Logger receives session progress. Nil selects the standard logger.
	Logger *logrus.Logger
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = limits.ChunkSize
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return c
}

// readMessageStrict reads one message at a point in the entry handshake
// where the stream must not end; a clean EOF here is a protocol
// violation, unlike at the receiver's top-level loop.
func readMessageStrict(r io.Reader) (wire.Message, error) {
	msg, err := wire.ReadMessage(r)
	if err == io.EOF {
		return nil, fmt.Errorf("%w: stream closed mid-entry", ErrProtocol)
	}
	return msg, err
}

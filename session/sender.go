package session

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ncp/checksum"
	"github.com/opd-ai/ncp/diskspace"
	"github.com/opd-ai/ncp/limits"
	"github.com/opd-ai/ncp/walker"
	"github.com/opd-ai/ncp/wire"
)

// Sender drives the sending side of one transfer session over an
// established connection. One entry is in flight at a time; the session
// ends at the first rejection or error.
type Sender struct {
	conn io.ReadWriter
	cfg  Config
	log  *logrus.Logger
}

// NewSender creates a Sender speaking over conn.
func NewSender(conn io.ReadWriter, cfg Config) *Sender {
	cfg = cfg.withDefaults()
	return &Sender{conn: conn, cfg: cfg, log: cfg.Logger}
}

// Send transfers the file or directory tree at src. Directory transfers
// announce entries in walk order: the root first, then directories
// before files. The first receiver rejection aborts the whole session.
func (s *Sender) Send(src string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	if info.IsDir() {
		return s.sendTree(src)
	}
	return s.sendEntry(filepath.Base(src), src, uint64(info.Size()), false)
}

func (s *Sender) sendTree(root string) error {
	entries, err := walker.Walk(root)
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"function":   "sendTree",
		"root":       root,
		"entries":    len(entries),
		"total_size": diskspace.FormatBytes(walker.TotalSize(entries)),
	}).Info("Sending directory")

	for _, e := range entries {
		if err := s.sendEntry(e.RelPath, e.Path, e.Size, e.IsDir); err != nil {
			return err
		}
	}
	return nil
}

// sendEntry runs the full per-entry handshake: Meta, preflight
// response, payload for files, TransferResult. The name is validated
// locally first so an oversized path fails with a clear diagnostic
// instead of a peer-side decode error.
func (s *Sender) sendEntry(name, path string, size uint64, isDir bool) error {
	if err := limits.ValidateNameLength(uint32(len(name))); err != nil {
		return fmt.Errorf("entry %s: %w", path, err)
	}

	s.log.WithFields(logrus.Fields{
		"function": "sendEntry",
		"name":     name,
		"size":     size,
		"is_dir":   isDir,
	}).Debug("Announcing entry")

	meta := &wire.Meta{Name: name, Size: size, IsDir: isDir, Overwrite: s.cfg.Overwrite}
	if err := wire.WriteMessage(s.conn, meta); err != nil {
		return err
	}

	resp, err := readMessageStrict(s.conn)
	if err != nil {
		return err
	}
	switch m := resp.(type) {
	case *wire.PreflightFail:
		s.log.WithFields(logrus.Fields{
			"name":   name,
			"reason": m.Reason,
		}).Error("Entry rejected by receiver")
		return fmt.Errorf("%w: %s", ErrRejected, m.Reason)
	case *wire.PreflightOk:
		if !isDir {
			s.log.WithFields(logrus.Fields{
				"name":            name,
				"available_space": diskspace.FormatBytes(m.AvailableSpace),
			}).Debug("Preflight accepted")
		}
	default:
		return fmt.Errorf("%w: expected preflight response, got %s", ErrProtocol, resp.Type())
	}

	if !isDir {
		if err := s.streamFile(name, path, size); err != nil {
			return err
		}
	}

	resp, err = readMessageStrict(s.conn)
	if err != nil {
		return err
	}
	result, ok := resp.(*wire.TransferResult)
	if !ok {
		return fmt.Errorf("%w: expected TransferResult, got %s", ErrProtocol, resp.Type())
	}
	if !result.OK {
		return fmt.Errorf("%w: receiver reported failure after %d bytes", ErrTransferFailed, result.ReceivedBytes)
	}
	if result.ReceivedBytes != size {
		s.log.WithFields(logrus.Fields{
			"name":     name,
			"sent":     size,
			"received": result.ReceivedBytes,
		}).Warn("Receiver byte count differs from sent size")
	}

	s.log.WithField("name", name).Info("Entry transferred")
	return nil
}

// streamFile sends TransferStart and exactly size payload bytes read
// from path, in fixed-size chunks with no inter-chunk framing.
func (s *Sender) streamFile(name, path string, size uint64) error {
	if err := wire.WriteMessage(s.conn, &wire.TransferStart{FileSize: size}); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	var digest *checksum.Digest
	if !s.cfg.DisableChecksum {
		digest = checksum.New()
	}

	buf := make([]byte, s.cfg.ChunkSize)
	var sent uint64
	for sent < size {
		want := size - sent
		if want > uint64(len(buf)) {
			want = uint64(len(buf))
		}

		// The source shrinking below its announced size would break the
		// byte-exact payload contract, so a short read is fatal.
		if _, err := io.ReadFull(f, buf[:want]); err != nil {
			return fmt.Errorf("%w: reading %s after %d of %d bytes: %v", ErrTransferIncomplete, path, sent, size, err)
		}
		if _, err := s.conn.Write(buf[:want]); err != nil {
			return fmt.Errorf("send payload: %w", err)
		}
		if digest != nil {
			digest.Write(buf[:want])
		}
		sent += want

		s.log.WithFields(logrus.Fields{
			"name": name,
			"sent": sent,
			"size": size,
		}).Trace("Payload progress")
	}

	if digest != nil {
		s.log.WithFields(logrus.Fields{
			"name":     name,
			"algo":     checksum.Algorithm,
			"checksum": digest.Sum(),
		}).Debug("Payload digest")
	}
	return nil
}

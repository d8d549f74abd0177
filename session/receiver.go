package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ncp/admission"
	"github.com/opd-ai/ncp/checksum"
	"github.com/opd-ai/ncp/diskspace"
	"github.com/opd-ai/ncp/wire"
)

// Receiver drives the receiving side of one transfer session over an
// established connection, materializing entries under a destination
// root.
type Receiver struct {
	conn   io.ReadWriter
	policy *admission.Policy
	cfg    Config
	log    *logrus.Logger
}

// NewReceiver creates a Receiver materializing entries at destRoot.
// The prompter handles interactive overwrite confirmation and may be
// nil, in which case OverwriteAsk conflicts are declined.
func NewReceiver(conn io.ReadWriter, destRoot string, prompter admission.Prompter, cfg Config) *Receiver {
	cfg = cfg.withDefaults()
	return &Receiver{
		conn:   conn,
		policy: admission.NewPolicy(destRoot, prompter, cfg.Logger),
		cfg:    cfg,
		log:    cfg.Logger,
	}
}

// Receive processes entries until the sender closes the stream. A clean
// close is only legal between entries, immediately before a Meta.
//
// Rejections are answered with PreflightFail and do not end the
// session; ending it is the sender's call.
func (r *Receiver) Receive() error {
	entries := 0
	for {
		msg, err := wire.ReadMessage(r.conn)
		if err == io.EOF {
			r.log.WithFields(logrus.Fields{
				"function": "Receive",
				"entries":  entries,
			}).Info("Session complete")
			return nil
		}
		if err != nil {
			return err
		}

		meta, ok := msg.(*wire.Meta)
		if !ok {
			return fmt.Errorf("%w: expected Meta, got %s", ErrProtocol, msg.Type())
		}
		if err := r.handleEntry(meta); err != nil {
			return err
		}
		entries++
	}
}

func (r *Receiver) handleEntry(meta *wire.Meta) error {
	r.log.WithFields(logrus.Fields{
		"function": "handleEntry",
		"name":     meta.Name,
		"size":     diskspace.FormatBytes(meta.Size),
		"is_dir":   meta.IsDir,
	}).Info("Receiving entry")

	decision, err := r.policy.Admit(meta.Name, meta.Size, meta.IsDir, meta.Overwrite)
	var reject *admission.RejectError
	if errors.As(err, &reject) {
		return wire.WriteMessage(r.conn, &wire.PreflightFail{Reason: reject.Reason})
	}
	if err != nil {
		return err
	}

	if meta.IsDir {
		return r.receiveDirectory(decision.FinalPath)
	}
	return r.receiveFile(meta.Name, decision)
}

// receiveDirectory materializes a directory entry. A non-directory
// occupying the path has already passed the overwrite decision and is
// removed before the directory is created.
func (r *Receiver) receiveDirectory(finalPath string) error {
	if info, err := os.Stat(finalPath); err == nil && !info.IsDir() {
		if err := os.Remove(finalPath); err != nil {
			return fmt.Errorf("remove conflicting file: %w", err)
		}
	}
	if err := os.MkdirAll(finalPath, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	if err := wire.WriteMessage(r.conn, &wire.PreflightOk{}); err != nil {
		return err
	}
	// Directories carry no payload but still close with a TransferResult
	// to keep the per-entry protocol shape uniform.
	return wire.WriteMessage(r.conn, &wire.TransferResult{OK: true})
}

// receiveFile materializes a file entry: PreflightOk, TransferStart,
// payload into a temporary file, atomic rename, TransferResult.
func (r *Receiver) receiveFile(name string, decision admission.Decision) error {
	if parent := filepath.Dir(decision.FinalPath); parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return fmt.Errorf("create parent directories: %w", err)
		}
	}

	if err := wire.WriteMessage(r.conn, &wire.PreflightOk{AvailableSpace: decision.AvailableSpace}); err != nil {
		return err
	}

	msg, err := readMessageStrict(r.conn)
	if err != nil {
		return err
	}
	start, ok := msg.(*wire.TransferStart)
	if !ok {
		return fmt.Errorf("%w: expected TransferStart, got %s", ErrProtocol, msg.Type())
	}

	received, err := r.streamToFile(name, decision.FinalPath, start.FileSize)
	if err != nil {
		// No TransferResult after a failed stream; the session is dead.
		return err
	}

	return wire.WriteMessage(r.conn, &wire.TransferResult{OK: true, ReceivedBytes: received})
}

// streamToFile reads exactly fileSize payload bytes into a temporary
// file next to finalPath, then renames it into place. Any failure
// removes the partial temporary file.
func (r *Receiver) streamToFile(name, finalPath string, fileSize uint64) (uint64, error) {
	tempPath := finalPath + TempSuffix
	f, err := os.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("create temporary file: %w", err)
	}

	fail := func(err error) (uint64, error) {
		f.Close()
		os.Remove(tempPath)
		return 0, err
	}

	var digest *checksum.Digest
	if !r.cfg.DisableChecksum {
		digest = checksum.New()
	}

	buf := make([]byte, r.cfg.ChunkSize)
	var received uint64
	for received < fileSize {
		want := fileSize - received
		if want > uint64(len(buf)) {
			want = uint64(len(buf))
		}

		if _, err := io.ReadFull(r.conn, buf[:want]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return fail(fmt.Errorf("%w: stream closed after %d of %d bytes", ErrTransferIncomplete, received, fileSize))
			}
			return fail(fmt.Errorf("receive payload: %w", err))
		}
		if _, err := f.Write(buf[:want]); err != nil {
			return fail(fmt.Errorf("write temporary file: %w", err))
		}
		if digest != nil {
			digest.Write(buf[:want])
		}
		received += want

		r.log.WithFields(logrus.Fields{
			"name":     name,
			"received": received,
			"size":     fileSize,
		}).Trace("Payload progress")
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("close temporary file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("rename temporary file: %w", err)
	}

	fields := logrus.Fields{
		"name": name,
		"path": finalPath,
		"size": diskspace.FormatBytes(received),
	}
	if digest != nil {
		fields["algo"] = checksum.Algorithm
		fields["checksum"] = digest.Sum()
	}
	r.log.WithFields(fields).Info("File saved")

	return received, nil
}

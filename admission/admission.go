// Package admission decides, on the receiving side, whether an announced
// entry may be materialized before any payload bytes are accepted.
package admission

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ncp/diskspace"
	"github.com/opd-ai/ncp/wire"
)

// Prompter asks the local operator to confirm overwriting path.
// Invoked only under wire.OverwriteAsk.
type Prompter interface {
	ConfirmOverwrite(path string) bool
}

// PrompterFunc is a function type that implements Prompter.
type PrompterFunc func(path string) bool

// ConfirmOverwrite implements Prompter for PrompterFunc.
func (f PrompterFunc) ConfirmOverwrite(path string) bool {
	return f(path)
}

// RejectError is a preflight rejection. It is the only recoverable
// admission outcome: the receiver answers it with a PreflightFail and
// keeps the session alive.
type RejectError struct {
	// Reason is the human-readable rejection reason sent to the peer.
	Reason string

	// InsufficientSpace marks rejections from the disk-space check.
	InsufficientSpace bool
}

// Error implements the error interface.
func (e *RejectError) Error() string {
	return e.Reason
}

// Decision is a successful admission.
type Decision struct {
	// FinalPath is where the entry will be materialized.
	FinalPath string

	// AvailableSpace is the raw free-space figure carried back to the
	// sender in PreflightOk. Zero for directories.
	AvailableSpace uint64
}

// Policy evaluates announced entries against local filesystem state.
type Policy struct {
	destRoot string
	prompter Prompter
	log      *logrus.Logger

	// availableSpace is swappable for tests.
	availableSpace func(path string) (uint64, error)
}

// NewPolicy creates a Policy materializing entries under destRoot.
// The prompter may be nil, in which case OverwriteAsk entries over
// existing paths are declined. A nil log falls back to the standard
// logger.
func NewPolicy(destRoot string, prompter Prompter, log *logrus.Logger) *Policy {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Policy{
		destRoot:       destRoot,
		prompter:       prompter,
		log:            log,
		availableSpace: diskspace.Available,
	}
}

// Admit evaluates one announced entry. It returns the materialization
// decision, a *RejectError when the entry is declined, or another error
// for local I/O failures (which are fatal to the session).
func (p *Policy) Admit(name string, size uint64, isDir bool, mode wire.OverwriteMode) (Decision, error) {
	clean, err := safeName(name)
	if err != nil {
		return Decision{}, err
	}

	finalPath, err := p.resolvePath(clean, isDir)
	if err != nil {
		return Decision{}, err
	}

	p.log.WithFields(logrus.Fields{
		"function":   "Admit",
		"name":       name,
		"final_path": finalPath,
		"is_dir":     isDir,
		"size":       size,
		"overwrite":  mode.String(),
	}).Debug("Evaluating entry admission")

	if err := p.checkOverwrite(finalPath, isDir, mode); err != nil {
		return Decision{}, err
	}

	if isDir {
		return Decision{FinalPath: finalPath}, nil
	}

	available, err := p.checkDiskSpace(finalPath, size)
	if err != nil {
		return Decision{}, err
	}

	return Decision{FinalPath: finalPath, AvailableSpace: available}, nil
}

// safeName validates a wire entry name and returns its cleaned form.
// Names are slash-separated and must stay inside the destination root.
func safeName(name string) (string, error) {
	if name == "" {
		return "", &RejectError{Reason: "Empty entry name"}
	}
	if strings.HasPrefix(name, "/") {
		return "", &RejectError{Reason: fmt.Sprintf("Unsafe entry name: %s", name)}
	}

	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", &RejectError{Reason: fmt.Sprintf("Unsafe entry name: %s", name)}
	}
	return clean, nil
}

// resolvePath maps an entry name onto the local filesystem. An existing
// directory root hosts the entry inside it; an existing file root is
// replaced in place; a missing root is used verbatim.
func (p *Policy) resolvePath(name string, isDir bool) (string, error) {
	info, err := os.Stat(p.destRoot)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(p.destRoot, filepath.FromSlash(name)), nil
	case err == nil:
		if isDir {
			return "", &RejectError{Reason: "Cannot receive directory to existing file"}
		}
		return p.destRoot, nil
	case os.IsNotExist(err):
		return p.destRoot, nil
	default:
		return "", fmt.Errorf("stat destination %s: %w", p.destRoot, err)
	}
}

// checkOverwrite applies the overwrite mode when the final path already
// exists. An existing directory satisfies a directory entry without any
// decision; everything else goes through the mode.
func (p *Policy) checkOverwrite(finalPath string, isDir bool, mode wire.OverwriteMode) error {
	info, err := os.Stat(finalPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", finalPath, err)
	}
	if isDir && info.IsDir() {
		return nil
	}

	switch mode {
	case wire.OverwriteYes:
		return nil
	case wire.OverwriteNo:
		p.log.WithField("path", finalPath).Info("Destination exists, skipping")
		return &RejectError{Reason: "File exists, skipping"}
	default: // wire.OverwriteAsk
		if p.prompter != nil && p.prompter.ConfirmOverwrite(finalPath) {
			return nil
		}
		return &RejectError{Reason: "User declined overwrite"}
	}
}

// checkDiskSpace verifies space for a file entry and returns the raw
// available figure for the PreflightOk response.
func (p *Policy) checkDiskSpace(finalPath string, size uint64) (uint64, error) {
	available, err := p.availableSpace(finalPath)
	if err != nil {
		return 0, err
	}

	if available < diskspace.RequiredWithMargin(size) {
		reason := fmt.Sprintf("Insufficient disk space. Need: %s, Available: %s",
			diskspace.FormatBytes(size), diskspace.FormatBytes(available))
		p.log.WithFields(logrus.Fields{
			"function":  "checkDiskSpace",
			"path":      finalPath,
			"needed":    size,
			"available": available,
		}).Warn("Rejecting entry for insufficient disk space")
		return 0, &RejectError{Reason: reason, InsufficientSpace: true}
	}

	return available, nil
}

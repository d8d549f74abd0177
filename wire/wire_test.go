package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/opd-ai/ncp/limits"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"meta file", &Meta{Name: "a.txt", Size: 100, IsDir: false, Overwrite: OverwriteAsk}},
		{"meta dir", &Meta{Name: "sub/dir", Size: 0, IsDir: true, Overwrite: OverwriteYes}},
		{"meta empty name", &Meta{Name: "", Size: 0, Overwrite: OverwriteNo}},
		{"meta max size", &Meta{Name: "big.bin", Size: math.MaxUint64}},
		{"preflight ok zero", &PreflightOk{AvailableSpace: 0}},
		{"preflight ok max", &PreflightOk{AvailableSpace: math.MaxUint64}},
		{"preflight fail", &PreflightFail{Reason: "File exists, skipping"}},
		{"preflight fail empty reason", &PreflightFail{Reason: ""}},
		{"transfer start zero", &TransferStart{FileSize: 0}},
		{"transfer start max", &TransferStart{FileSize: math.MaxUint64}},
		{"transfer result ok", &TransferResult{OK: true, ReceivedBytes: 1234}},
		{"transfer result failed", &TransferResult{OK: false, ReceivedBytes: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteMessage(&buf, tt.msg); err != nil {
				t.Fatalf("WriteMessage() error = %v", err)
			}

			got, err := ReadMessage(&buf)
			if err != nil {
				t.Fatalf("ReadMessage() error = %v", err)
			}

			switch want := tt.msg.(type) {
			case *Meta:
				g, ok := got.(*Meta)
				if !ok {
					t.Fatalf("decoded type = %T, want *Meta", got)
				}
				if *g != *want {
					t.Errorf("decoded Meta = %+v, want %+v", g, want)
				}
			case *PreflightOk:
				if g := got.(*PreflightOk); *g != *want {
					t.Errorf("decoded PreflightOk = %+v, want %+v", g, want)
				}
			case *PreflightFail:
				if g := got.(*PreflightFail); *g != *want {
					t.Errorf("decoded PreflightFail = %+v, want %+v", g, want)
				}
			case *TransferStart:
				if g := got.(*TransferStart); *g != *want {
					t.Errorf("decoded TransferStart = %+v, want %+v", g, want)
				}
			case *TransferResult:
				if g := got.(*TransferResult); *g != *want {
					t.Errorf("decoded TransferResult = %+v, want %+v", g, want)
				}
			}

			if buf.Len() != 0 {
				t.Errorf("%d bytes left after decode, want 0", buf.Len())
			}
		})
	}
}

func TestFramingInvariant(t *testing.T) {
	msgs := []Message{
		&Meta{Name: "x/y/z.txt", Size: 42, IsDir: false, Overwrite: OverwriteNo},
		&PreflightOk{AvailableSpace: 9000},
		&PreflightFail{Reason: "declined"},
		&TransferStart{FileSize: 1},
		&TransferResult{OK: true, ReceivedBytes: 1},
	}

	for _, m := range msgs {
		frame := Encode(m)
		if len(frame) < 5 {
			t.Fatalf("%s: frame too short: %d bytes", m.Type(), len(frame))
		}
		if MessageType(frame[0]) != m.Type() {
			t.Errorf("%s: type byte = %d", m.Type(), frame[0])
		}
		declared := binary.BigEndian.Uint32(frame[1:5])
		if int(declared) != len(frame)-5 {
			t.Errorf("%s: declared length %d, actual payload %d", m.Type(), declared, len(frame)-5)
		}
	}
}

func TestMessageTypeValues(t *testing.T) {
	// The type bytes are a wire contract and must never drift.
	want := map[MessageType]byte{
		MessageMeta:           1,
		MessagePreflightOk:    2,
		MessagePreflightFail:  3,
		MessageTransferStart:  4,
		MessageTransferResult: 5,
	}
	for mt, b := range want {
		if byte(mt) != b {
			t.Errorf("%s = %d, want %d", mt, byte(mt), b)
		}
	}
}

func TestReadMessageCleanEOF(t *testing.T) {
	_, err := ReadMessage(bytes.NewReader(nil))
	if err != io.EOF {
		t.Errorf("ReadMessage on empty stream error = %v, want io.EOF", err)
	}
}

func TestReadMessageTruncated(t *testing.T) {
	full := Encode(&Meta{Name: "a.txt", Size: 100})

	// Every strictly-shorter prefix beyond zero bytes is a truncation,
	// never a clean EOF.
	for cut := 1; cut < len(full); cut++ {
		_, err := ReadMessage(bytes.NewReader(full[:cut]))
		if !errors.Is(err, ErrTruncated) {
			t.Errorf("prefix of %d bytes: error = %v, want ErrTruncated", cut, err)
		}
	}
}

func TestReadMessageRejectsHugeLength(t *testing.T) {
	frame := []byte{byte(MessageMeta), 0xFF, 0xFF, 0xFF, 0xFF}
	_, err := ReadMessage(bytes.NewReader(frame))
	if !errors.Is(err, limits.ErrLengthTooLarge) {
		t.Errorf("error = %v, want ErrLengthTooLarge", err)
	}
}

func TestReadMessageRejectsLengthMismatch(t *testing.T) {
	// A Meta frame whose inner name_len disagrees with the frame length.
	frame := Encode(&Meta{Name: "abcdef", Size: 1})
	inner := frame[5:]
	binary.BigEndian.PutUint32(inner[10:14], 2) // name_len lies

	_, err := ReadMessage(bytes.NewReader(frame))
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("error = %v, want ErrLengthMismatch", err)
	}
}

func TestReadMessageRejectsUnknownType(t *testing.T) {
	frame := []byte{99, 0, 0, 0, 0}
	_, err := ReadMessage(bytes.NewReader(frame))
	if !errors.Is(err, ErrUnknownMessageType) {
		t.Errorf("error = %v, want ErrUnknownMessageType", err)
	}
}

func TestReadMessageRejectsBadOverwriteByte(t *testing.T) {
	frame := Encode(&Meta{Name: "a", Size: 1})
	frame[5+9] = 7 // overwrite byte out of range

	_, err := ReadMessage(bytes.NewReader(frame))
	if !errors.Is(err, ErrInvalidOverwriteMode) {
		t.Errorf("error = %v, want ErrInvalidOverwriteMode", err)
	}
}

func TestParseOverwriteMode(t *testing.T) {
	for _, mode := range []OverwriteMode{OverwriteAsk, OverwriteYes, OverwriteNo} {
		got, err := ParseOverwriteMode(mode.String())
		if err != nil {
			t.Fatalf("ParseOverwriteMode(%q) error = %v", mode.String(), err)
		}
		if got != mode {
			t.Errorf("ParseOverwriteMode(%q) = %v, want %v", mode.String(), got, mode)
		}
	}

	if _, err := ParseOverwriteMode("maybe"); err == nil {
		t.Error("ParseOverwriteMode(\"maybe\") succeeded, want error")
	}
}

func TestMessageTypeString(t *testing.T) {
	if s := MessageType(42).String(); !strings.Contains(s, "42") {
		t.Errorf("unknown type String() = %q, want the raw value included", s)
	}
}

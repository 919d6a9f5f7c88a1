// Package ipc implements the length-prefixed wire protocol used to
// stream per-module status between goroutines: a
// 2-byte little-endian frame length followed by a 4-byte big-endian
// message type and a UTF-8 payload.
package ipc

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/kdebuilder/kdebuilder/internal/kdeerr"
)

// Type is the message type tag.
type Type uint32

const (
	ModuleSuccess Type = iota + 1
	ModuleFailure
	ModuleSkipped
	ModuleUptodate
	ModuleConflict
	AllUpdating
	AllSkipped
	AllFailure
	AllDone
	ModuleLogmsg
	ModulePersistOpt
	ModulePostbuildMsg
)

func (t Type) String() string {
	switch t {
	case ModuleSuccess:
		return "MODULE_SUCCESS"
	case ModuleFailure:
		return "MODULE_FAILURE"
	case ModuleSkipped:
		return "MODULE_SKIPPED"
	case ModuleUptodate:
		return "MODULE_UPTODATE"
	case ModuleConflict:
		return "MODULE_CONFLICT"
	case AllUpdating:
		return "ALL_UPDATING"
	case AllSkipped:
		return "ALL_SKIPPED"
	case AllFailure:
		return "ALL_FAILURE"
	case AllDone:
		return "ALL_DONE"
	case ModuleLogmsg:
		return "MODULE_LOGMSG"
	case ModulePersistOpt:
		return "MODULE_PERSIST_OPT"
	case ModulePostbuildMsg:
		return "MODULE_POSTBUILD_MSG"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint32(t))
	}
}

// Message is one frame off the wire.
type Message struct {
	Type    Type
	Payload string
}

const maxFrameLen = 1<<16 - 1

// Encode writes one length-prefixed frame to w.
func Encode(w io.Writer, msg Message) error {
	body := make([]byte, 4+len(msg.Payload))
	binary.BigEndian.PutUint32(body[0:4], uint32(msg.Type))
	copy(body[4:], msg.Payload)

	if len(body) > maxFrameLen {
		return kdeerr.Internalf("ipc: frame of %d bytes exceeds the %d-byte length prefix", len(body), maxFrameLen)
	}

	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return kdeerr.Wrap(err, "writing ipc frame length")
	}
	if _, err := w.Write(body); err != nil {
		return kdeerr.Wrap(err, "writing ipc frame body")
	}
	return nil
}

// Decode reads exactly one length-prefixed frame from r.
func Decode(r io.Reader) (Message, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Message{}, err
	}
	n := binary.LittleEndian.Uint16(lenBuf[:])
	if n < 4 {
		return Message{}, kdeerr.Internalf("ipc: frame length %d too small for a type field", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, kdeerr.Wrap(err, "reading ipc frame body")
	}
	return Message{
		Type:    Type(binary.BigEndian.Uint32(body[0:4])),
		Payload: string(body[4:]),
	}, nil
}

// Reader wraps a bufio.Reader for a stream of frames, returning
// io.EOF from Next once the peer has closed cleanly.
type Reader struct {
	br *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

func (r *Reader) Next() (Message, error) {
	return Decode(r.br)
}

// JoinFields and SplitFields implement the comma-joined payload
// encoding used by the multi-field message types.
// Fields are joined as given: a comma inside a field is not escaped,
// and SplitFields leaves any extra commas in its last field.
func JoinFields(fields ...string) string {
	return strings.Join(fields, ",")
}

func SplitFields(payload string, n int) []string {
	parts := strings.SplitN(payload, ",", n)
	for len(parts) < n {
		parts = append(parts, "")
	}
	return parts
}

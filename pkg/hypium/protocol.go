package hypium

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Every message on the wire is framed as
//
//	_uitestkit_rpc_message_head_ | session id (4B BE) | body length (4B BE) | body | _uitestkit_rpc_message_tail_
//
// The session id is generated per message by the sender; the daemon does
// not validate it, correlation happens on the request_id inside the body.
const (
	frameHeader = "_uitestkit_rpc_message_head_"
	frameTailer = "_uitestkit_rpc_message_tail_"

	// maxFrameBody rejects body lengths that can only come from a
	// corrupted stream before they turn into huge allocations.
	maxFrameBody = 64 << 20
)

var errBadFrame = fmt.Errorf("malformed rpc frame")

// writeFrame writes one framed message to w.
func writeFrame(w io.Writer, sessionID uint32, body []byte) error {
	buf := make([]byte, 0, len(frameHeader)+8+len(body)+len(frameTailer))
	buf = append(buf, frameHeader...)
	buf = binary.BigEndian.AppendUint32(buf, sessionID)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(body)))
	buf = append(buf, body...)
	buf = append(buf, frameTailer...)
	_, err := w.Write(buf)
	return err
}

// readFrame reads one framed message from r. A header or tailer mismatch
// means the stream cannot be resynchronized and is returned as errBadFrame.
func readFrame(r io.Reader) (sessionID uint32, body []byte, err error) {
	head := make([]byte, len(frameHeader)+8)
	if _, err := io.ReadFull(r, head); err != nil {
		return 0, nil, err
	}
	if !bytes.Equal(head[:len(frameHeader)], []byte(frameHeader)) {
		return 0, nil, fmt.Errorf("%w: bad header %q", errBadFrame, head[:len(frameHeader)])
	}
	sessionID = binary.BigEndian.Uint32(head[len(frameHeader):])
	length := binary.BigEndian.Uint32(head[len(frameHeader)+4:])
	if length > maxFrameBody {
		return 0, nil, fmt.Errorf("%w: body length %d", errBadFrame, length)
	}
	body = make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	tail := make([]byte, len(frameTailer))
	if _, err := io.ReadFull(r, tail); err != nil {
		return 0, nil, err
	}
	if !bytes.Equal(tail, []byte(frameTailer)) {
		return 0, nil, fmt.Errorf("%w: bad tailer %q", errBadFrame, tail)
	}
	return sessionID, body, nil
}

// newSessionID derives a 32-bit id from the send time, the message and
// fresh entropy.
func newSessionID(body []byte) uint32 {
	var entropy [4]byte
	_, _ = rand.Read(entropy[:])
	h := sha256.New()
	fmt.Fprintf(h, "%d", time.Now().UnixMilli())
	h.Write(body)
	h.Write(entropy[:])
	sum := h.Sum(nil)
	return binary.BigEndian.Uint32(sum[:4])
}

// marshalCompact encodes v without indentation and without escaping
// HTML characters, matching what the daemon expects.
func marshalCompact(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

package hypium

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	body := []byte(`{"result":"Driver#0"}`)
	var buf bytes.Buffer
	if err := writeFrame(&buf, 0xDEADBEEF, body); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	wantLen := len(frameHeader) + 8 + len(body) + len(frameTailer)
	if buf.Len() != wantLen {
		t.Errorf("frame length = %d, want %d", buf.Len(), wantLen)
	}

	session, got, err := readFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if session != 0xDEADBEEF {
		t.Errorf("session = %#x, want 0xdeadbeef", session)
	}
	if !bytes.Equal(got, body) {
		t.Errorf("body = %q, want %q", got, body)
	}
}

func TestFrameRoundTripEmptyBody(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, 7, nil); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	_, got, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("body = %q, want empty", got)
	}
}

func TestReadFrameBadHeader(t *testing.T) {
	raw := strings.Repeat("x", len(frameHeader)+8)
	_, _, err := readFrame(strings.NewReader(raw))
	if !errors.Is(err, errBadFrame) {
		t.Fatalf("err = %v, want errBadFrame", err)
	}
}

func TestReadFrameBadTailer(t *testing.T) {
	body := []byte("{}")
	var buf bytes.Buffer
	if err := writeFrame(&buf, 1, body); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	raw := buf.Bytes()
	raw[len(raw)-1] = '?'
	_, _, err := readFrame(bytes.NewReader(raw))
	if !errors.Is(err, errBadFrame) {
		t.Fatalf("err = %v, want errBadFrame", err)
	}
}

func TestReadFrameRejectsHugeBody(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(frameHeader)
	head := make([]byte, 8)
	binary.BigEndian.PutUint32(head[4:], maxFrameBody+1)
	buf.Write(head)
	_, _, err := readFrame(&buf)
	if !errors.Is(err, errBadFrame) {
		t.Fatalf("err = %v, want errBadFrame", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	body := []byte(`{"result":null}`)
	var buf bytes.Buffer
	if err := writeFrame(&buf, 1, body); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	raw := buf.Bytes()[:buf.Len()-10]
	_, _, err := readFrame(bytes.NewReader(raw))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestMarshalCompact(t *testing.T) {
	payload := request{
		Module: rpcModule,
		Method: methodHypium,
		Params: hypiumParams{
			API:         "On.text",
			This:        "On#seed",
			Args:        []interface{}{"<a href=\"x\">&"},
			MessageType: hypiumMessage,
		},
		RequestID: "20250825120000000001",
	}
	out, err := marshalCompact(payload)
	if err != nil {
		t.Fatalf("marshalCompact: %v", err)
	}
	if bytes.Contains(out, []byte(`<`)) {
		t.Errorf("output escapes HTML: %s", out)
	}
	if bytes.Contains(out, []byte("\n")) {
		t.Errorf("output contains newline: %q", out)
	}
	want := `"args":["<a href=\"x\">&"]`
	if !bytes.Contains(out, []byte(want)) {
		t.Errorf("output %s missing %s", out, want)
	}
}

func TestNewSessionIDVaries(t *testing.T) {
	body := []byte("{}")
	a := newSessionID(body)
	b := newSessionID(body)
	if a == b {
		t.Errorf("two session ids for the same body collided: %#x", a)
	}
}

package hypium

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/devicelab-dev/harmony-runner/pkg/core"
)

// fakeJPEG builds a minimal SOI..EOI image with a zero-filled body, so
// no end marker appears before the real one.
func fakeJPEG(bodyLen int) []byte {
	img := make([]byte, 0, bodyLen+4)
	img = append(img, jpegStart...)
	img = append(img, make([]byte, bodyLen)...)
	return append(img, jpegEnd...)
}

func captureHandler(accept bool) FakeHandler {
	return func(call FakeCall) (interface{}, interface{}) {
		switch call.API {
		case "startCaptureScreen":
			return accept, nil
		case "stopCaptureScreen":
			return true, nil
		}
		return nil, nil
	}
}

func TestRecorderWritesFrames(t *testing.T) {
	c, daemon := newTestClient(t, captureHandler(true))

	jpeg1 := fakeJPEG(64)
	jpeg2 := fakeJPEG(32)
	// Split the second image across two payloads to exercise the
	// reassembly buffer.
	chunk := append(append([]byte(nil), jpeg1...), jpeg2[:7]...)
	daemon.StreamOnCapture(chunk, jpeg2[7:])

	path := filepath.Join(t.TempDir(), "capture.mjpeg")
	rec, err := c.StartRecording(path)
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	want := append(append([]byte(nil), jpeg1...), jpeg2...)
	deadline := time.Now().Add(2 * time.Second)
	for {
		data, _ := os.ReadFile(path)
		if len(data) >= len(want) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("recorded %d of %d bytes before deadline", len(data), len(want))
		}
		time.Sleep(10 * time.Millisecond)
	}

	got, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got != path {
		t.Errorf("Stop path = %q, want %q", got, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(data, want) {
		t.Errorf("file has %d bytes, want %d", len(data), len(want))
	}
	if rec.Frames() != 2 {
		t.Errorf("Frames = %d, want 2", rec.Frames())
	}

	start := lastCall(t, daemon, "startCaptureScreen")
	if start.Method != "Captures" {
		t.Errorf("start method = %q, want Captures", start.Method)
	}
	if countAPI(daemon, "stopCaptureScreen") != 1 {
		t.Errorf("apis = %v, want one stopCaptureScreen", daemon.APIs())
	}
}

func TestRecorderStopIdempotent(t *testing.T) {
	c, _ := newTestClient(t, captureHandler(true))

	path := filepath.Join(t.TempDir(), "capture.mjpeg")
	rec, err := c.StartRecording(path)
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if _, err := rec.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	got, err := rec.Stop()
	if err != nil || got != path {
		t.Errorf("second Stop = %q, %v, want %q, nil", got, err, path)
	}
}

func TestRecorderRefused(t *testing.T) {
	c, _ := newTestClient(t, captureHandler(false))

	path := filepath.Join(t.TempDir(), "capture.mjpeg")
	if _, err := c.StartRecording(path); !errors.Is(err, core.ErrRemoteCall) {
		t.Fatalf("err = %v, want ErrRemoteCall", err)
	}
}

func TestRecorderStopWithoutFrames(t *testing.T) {
	c, _ := newTestClient(t, captureHandler(true))

	path := filepath.Join(t.TempDir(), "capture.mjpeg")
	rec, err := c.StartRecording(path)
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if _, err := rec.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if rec.Frames() != 0 {
		t.Errorf("Frames = %d, want 0", rec.Frames())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("file has %d bytes, want empty", len(data))
	}
}

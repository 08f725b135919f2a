package hypium

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devicelab-dev/harmony-runner/pkg/core"
	"github.com/devicelab-dev/harmony-runner/pkg/logger"
)

const stopReplyTimeout = 5 * time.Second

var (
	jpegStart = []byte{0xFF, 0xD8}
	jpegEnd   = []byte{0xFF, 0xD9}
)

// Recorder streams the device screen into a motion JPEG file. It holds
// its own daemon connection so driver calls keep flowing while frames
// arrive.
type Recorder struct {
	conn    net.Conn
	br      *bufio.Reader
	file    *os.File
	path    string
	timeout time.Duration
	newID   func() string

	stopping atomic.Bool
	done     chan struct{}

	// written by the stream goroutine before done closes
	frames    int
	streamErr error

	stopOnce sync.Once
	stopErr  error
}

// StartRecording begins capturing the screen into path. Frames are
// appended as they arrive; Stop finishes the file and returns its path.
func (c *Client) StartRecording(path string) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording file: %w", err)
	}
	conn, err := net.DialTimeout("tcp", c.addr, dialTimeout)
	if err != nil {
		file.Close()
		return nil, core.ErrConnectionFailed.WithMessagef("dial %s for screen capture", c.addr).WithCause(err)
	}
	r := &Recorder{
		conn:    conn,
		br:      bufio.NewReader(conn),
		file:    file,
		path:    path,
		timeout: c.timeout,
		newID:   c.nextRequestID,
		done:    make(chan struct{}),
	}
	if err := r.start(); err != nil {
		conn.Close()
		file.Close()
		return nil, err
	}
	go r.stream()
	logger.Debug("screen capture started, writing %s", path)
	return r, nil
}

func (r *Recorder) start() error {
	if err := r.send("startCaptureScreen"); err != nil {
		return err
	}
	r.conn.SetReadDeadline(time.Now().Add(r.timeout))
	_, reply, err := readFrame(r.br)
	if err != nil {
		return core.ErrConnectionLost.WithMessage("no reply to startCaptureScreen").WithCause(err)
	}
	if !bytes.Contains(reply, []byte("true")) {
		return core.ErrRemoteCall.WithMessagef("screen capture refused: %s", reply)
	}
	r.conn.SetReadDeadline(time.Time{})
	return nil
}

func (r *Recorder) send(api string) error {
	body, err := marshalCompact(request{
		Module:    rpcModule,
		Method:    methodCaptures,
		Params:    capturesParams{API: api, Args: []interface{}{}},
		RequestID: r.newID(),
	})
	if err != nil {
		return err
	}
	if err := writeFrame(r.conn, newSessionID(body), body); err != nil {
		return core.ErrConnectionLost.WithMessagef("sending %s", api).WithCause(err)
	}
	return nil
}

// stream reads framed payloads and cuts complete JPEGs out of them.
// The daemon splits images across frames freely, so payloads accumulate
// in a buffer scanned for SOI/EOI markers.
func (r *Recorder) stream() {
	defer close(r.done)
	var buf []byte
	for {
		_, payload, err := readFrame(r.br)
		if err != nil {
			if !r.stopping.Load() {
				r.streamErr = core.ErrConnectionLost.WithMessage("screen capture stream ended").WithCause(err)
			}
			return
		}
		buf = append(buf, payload...)
		for {
			start := bytes.Index(buf, jpegStart)
			if start < 0 {
				if len(buf) > 1 {
					buf = buf[len(buf)-1:]
				}
				break
			}
			rel := bytes.Index(buf[start+2:], jpegEnd)
			if rel < 0 {
				buf = buf[start:]
				break
			}
			end := start + 2 + rel + 2
			if _, err := r.file.Write(buf[start:end]); err != nil {
				r.streamErr = fmt.Errorf("writing frame: %w", err)
				return
			}
			r.frames++
			buf = buf[end:]
		}
	}
}

// Stop ends the capture and returns the recording's path. The stop
// notification to the daemon is best effort; dropping the connection
// tears the stream down regardless.
func (r *Recorder) Stop() (string, error) {
	r.stopOnce.Do(r.stop)
	return r.path, r.stopErr
}

func (r *Recorder) stop() {
	r.stopping.Store(true)
	r.conn.SetReadDeadline(time.Now())
	<-r.done

	if err := r.send("stopCaptureScreen"); err == nil {
		r.conn.SetReadDeadline(time.Now().Add(stopReplyTimeout))
		if _, _, err := readFrame(r.br); err != nil {
			logger.Debug("stopCaptureScreen reply: %v", err)
		}
	}
	r.conn.Close()

	closeErr := r.file.Close()
	switch {
	case r.streamErr != nil:
		r.stopErr = r.streamErr
	case closeErr != nil:
		r.stopErr = fmt.Errorf("closing recording file: %w", closeErr)
	}
	logger.Debug("screen capture stopped, %d frames in %s", r.frames, r.path)
}

// Frames reports how many complete images reached the file. Only valid
// after Stop.
func (r *Recorder) Frames() int { return r.frames }

package hypium

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"
)

// FakeCall is one request a FakeDaemon served.
// This should only be used in tests.
type FakeCall struct {
	Method    string
	API       string
	This      interface{}
	Args      []interface{}
	RequestID string
}

// FakeHandler produces the reply for one call. A non-nil exception
// wins over the result. Returning NoReply as the result suppresses the
// reply; returning DropConnection closes the connection instead.
// This should only be used in tests.
type FakeHandler func(call FakeCall) (result, exception interface{})

type fakeDirective string

// NoReply makes a FakeHandler leave the call unanswered.
// This should only be used in tests.
const NoReply fakeDirective = "no reply"

// DropConnection makes a FakeHandler close the caller's connection.
// This should only be used in tests.
const DropConnection fakeDirective = "drop connection"

// FakeDaemon speaks the uitest wire protocol over a loopback listener.
// Driver.create succeeds with "Driver#0" unless the handler answers it.
// This should only be used in tests.
type FakeDaemon struct {
	ln      net.Listener
	handler FakeHandler

	mu     sync.Mutex
	calls  []FakeCall
	conns  map[net.Conn]struct{}
	stream [][]byte
	wg     sync.WaitGroup
}

// NewFakeDaemon starts a daemon stub on a loopback port. A nil handler
// answers every call with a null result. Panics when the loopback
// listener cannot be opened, mirroring httptest.NewServer.
// This should only be used in tests.
func NewFakeDaemon(handler FakeHandler) *FakeDaemon {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic("hypium: failed to listen on a loopback port: " + err.Error())
	}
	d := &FakeDaemon{
		ln:      ln,
		handler: handler,
		conns:   make(map[net.Conn]struct{}),
	}
	d.wg.Add(1)
	go d.acceptLoop()
	return d
}

// Addr returns the listener's host:port.
func (d *FakeDaemon) Addr() string {
	return d.ln.Addr().String()
}

// Calls returns a snapshot of every request served so far, in arrival
// order.
func (d *FakeDaemon) Calls() []FakeCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]FakeCall, len(d.calls))
	copy(out, d.calls)
	return out
}

// APIs returns just the api names of every request served so far.
func (d *FakeDaemon) APIs() []string {
	calls := d.Calls()
	out := make([]string, len(calls))
	for i, call := range calls {
		out[i] = call.API
	}
	return out
}

// StreamOnCapture queues raw frame payloads that the daemon writes
// right after acknowledging startCaptureScreen.
// This should only be used in tests.
func (d *FakeDaemon) StreamOnCapture(chunks ...[]byte) {
	d.mu.Lock()
	d.stream = chunks
	d.mu.Unlock()
}

// Close stops the listener, drops live connections and waits for the
// serving goroutines.
func (d *FakeDaemon) Close() {
	d.ln.Close()
	d.mu.Lock()
	for conn := range d.conns {
		conn.Close()
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *FakeDaemon) acceptLoop() {
	defer d.wg.Done()
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		d.mu.Lock()
		d.conns[conn] = struct{}{}
		d.mu.Unlock()
		d.wg.Add(1)
		go d.serve(conn)
	}
}

type fakeRequest struct {
	Method string `json:"method"`
	Params struct {
		API  string        `json:"api"`
		This interface{}   `json:"this"`
		Args []interface{} `json:"args"`
	} `json:"params"`
	RequestID string `json:"request_id"`
}

func (d *FakeDaemon) serve(conn net.Conn) {
	defer d.wg.Done()
	defer func() {
		d.mu.Lock()
		delete(d.conns, conn)
		d.mu.Unlock()
		conn.Close()
	}()

	br := bufio.NewReader(conn)
	for {
		session, body, err := readFrame(br)
		if err != nil {
			return
		}
		var req fakeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			continue
		}
		call := FakeCall{
			Method:    req.Method,
			API:       req.Params.API,
			This:      req.Params.This,
			Args:      req.Params.Args,
			RequestID: req.RequestID,
		}
		d.mu.Lock()
		d.calls = append(d.calls, call)
		d.mu.Unlock()

		result, exception := d.answer(call)
		if result == NoReply {
			continue
		}
		if result == DropConnection {
			return
		}
		reply := map[string]interface{}{"request_id": call.RequestID}
		if exception != nil {
			reply["exception"] = exception
		} else {
			reply["result"] = result
		}
		out, err := marshalCompact(reply)
		if err != nil {
			return
		}
		if err := writeFrame(conn, session, out); err != nil {
			return
		}
		if call.API == "startCaptureScreen" {
			d.mu.Lock()
			chunks := d.stream
			d.mu.Unlock()
			for _, chunk := range chunks {
				if err := writeFrame(conn, session, chunk); err != nil {
					return
				}
			}
		}
	}
}

func (d *FakeDaemon) answer(call FakeCall) (result, exception interface{}) {
	if d.handler != nil {
		result, exception = d.handler(call)
	}
	if call.API == "Driver.create" && result == nil && exception == nil {
		result = rootDriverRef
	}
	return result, exception
}

// NewTestHandle builds a Handle owned by c.
// This should only be used in tests.
func NewTestHandle(c *Client, kind, ref string) Handle {
	return Handle{kind: kind, ref: ref, owner: c}
}

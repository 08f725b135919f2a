package hypium

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/devicelab-dev/harmony-runner/pkg/core"
	"github.com/devicelab-dev/harmony-runner/pkg/device"
	"github.com/devicelab-dev/harmony-runner/pkg/logger"
)

// Options configure a session.
type Options struct {
	// AgentPath optionally points at a local uitest agent library pushed
	// to the device before the daemon starts. Empty keeps whatever agent
	// the device already has.
	AgentPath string
	// Timeout bounds each call's wait for a reply. Zero selects
	// DefaultTimeout.
	Timeout time.Duration
	// SettleDelay is slept after UI actions. Zero selects
	// DefaultSettleDelay, negative disables the delay.
	SettleDelay time.Duration
	// Logger receives wire traces. Nil routes them to the package logger
	// at debug level.
	Logger *log.Logger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.SettleDelay == 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	return o
}

// Client is one RPC session with the uitest daemon. Calls may be issued
// from any goroutine; a single reader demultiplexes replies onto the
// callers by request id.
type Client struct {
	addr string
	conn net.Conn

	dev       *device.Device // non-nil when Open set up the port forward
	localPort int

	timeout     time.Duration
	settleDelay time.Duration
	wlog        *log.Logger

	writeMu sync.Mutex // serializes frames on the wire

	mu      sync.Mutex
	pending map[string]chan callReply
	closed  bool
	termErr error // returned by calls issued after the session ended

	driver Handle
	seq    atomic.Uint64

	dispMu   sync.Mutex
	dispSize *Point
	dispRot  *Rotation

	closeOnce sync.Once
	done      chan struct{} // closed when the read loop has fully unwound
}

type callReply struct {
	resp response
	err  error
}

// Open bootstraps a session against dev: it makes sure the daemon is
// running (pushing the agent from opts.AgentPath when given), forwards a
// local port to it, dials and creates the session driver.
func Open(dev *device.Device, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	if err := dev.EnsureDaemon(opts.AgentPath); err != nil {
		return nil, err
	}
	port, err := dev.ForwardDaemon()
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	c, err := dial(addr, opts)
	if err != nil {
		_ = dev.RemoveForward(port, device.UitestServicePort)
		return nil, err
	}
	c.dev = dev
	c.localPort = port
	if err := c.createDriver(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Dial connects to an already reachable daemon endpoint, typically a
// port forwarded by other means, and creates the session driver.
func Dial(addr string, opts Options) (*Client, error) {
	c, err := dial(addr, opts.withDefaults())
	if err != nil {
		return nil, err
	}
	if err := c.createDriver(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// dialTimeout bounds a single connection attempt.
const dialTimeout = 2 * time.Second

// dial connects with a short retry window: right after the daemon starts
// the forwarded port can still refuse connections.
func dial(addr string, opts Options) (*Client, error) {
	var conn net.Conn
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = 10 * time.Second
	err := backoff.Retry(func() error {
		var derr error
		conn, derr = net.DialTimeout("tcp", addr, dialTimeout)
		return derr
	}, policy)
	if err != nil {
		return nil, core.ErrConnectionFailed.WithMessagef("dial %s", addr).WithCause(err)
	}

	c := &Client{
		addr:        addr,
		conn:        conn,
		timeout:     opts.Timeout,
		settleDelay: opts.SettleDelay,
		wlog:        opts.Logger,
		pending:     make(map[string]chan callReply),
		done:        make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) createDriver() error {
	res, err := c.call(methodHypium, "Driver.create", rootDriverRef, nil)
	if err != nil {
		return err
	}
	h, err := c.handleFromResult("Driver.create", res, KindDriver)
	if err != nil {
		return err
	}
	c.driver = h
	return nil
}

// Driver returns the session's root driver handle.
func (c *Client) Driver() Handle { return c.driver }

// seedOn returns the template handle selector chains grow from.
func (c *Client) seedOn() Handle {
	return Handle{kind: KindOn, ref: seedOnRef, owner: c}
}

// Invoke calls api on the remote object this. A zero this targets no
// object, which creation APIs expect. Handle arguments are sent in their
// wire form after an ownership check.
func (c *Client) Invoke(api string, this Handle, args ...interface{}) (Result, error) {
	if err := c.checkHandle(this); err != nil {
		return Result{}, err
	}
	wired, err := c.wireArgs(args)
	if err != nil {
		return Result{}, err
	}
	var target interface{}
	if !this.IsZero() {
		target = this.ref
	}
	return c.call(methodHypium, api, target, wired)
}

// InvokeCaptures calls a capture API such as captureLayout.
func (c *Client) InvokeCaptures(api string, args ...interface{}) (Result, error) {
	wired, err := c.wireArgs(args)
	if err != nil {
		return Result{}, err
	}
	return c.call(methodCaptures, api, nil, wired)
}

// invokeDriver calls a Driver.* API on the session driver.
func (c *Client) invokeDriver(api string, args ...interface{}) (Result, error) {
	return c.Invoke(api, c.driver, args...)
}

func (c *Client) wireArgs(args []interface{}) ([]interface{}, error) {
	wired := make([]interface{}, len(args))
	for i, arg := range args {
		h, ok := arg.(Handle)
		if !ok {
			wired[i] = arg
			continue
		}
		if err := c.checkHandle(h); err != nil {
			return nil, err
		}
		wired[i] = h.ref
	}
	return wired, nil
}

func (c *Client) call(method, api string, this interface{}, args []interface{}) (Result, error) {
	if args == nil {
		args = []interface{}{}
	}
	var params interface{}
	if method == methodCaptures {
		params = capturesParams{API: api, Args: args}
	} else {
		params = hypiumParams{API: api, This: this, Args: args, MessageType: hypiumMessage}
	}

	id, ch, err := c.register()
	if err != nil {
		return Result{}, err
	}
	body, err := marshalCompact(request{Module: rpcModule, Method: method, Params: params, RequestID: id})
	if err != nil {
		c.unregister(id)
		return Result{}, fmt.Errorf("encoding %s call: %w", api, err)
	}
	c.logf("send %s", body)
	if err := c.send(body); err != nil {
		c.unregister(id)
		return Result{}, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case reply := <-ch:
		if reply.err != nil {
			return Result{}, reply.err
		}
		return c.decodeReply(api, reply.resp)
	case <-timer.C:
		if reply, ok := c.abandon(id, ch); ok {
			// The reply raced the deadline; take it.
			if reply.err != nil {
				return Result{}, reply.err
			}
			return c.decodeReply(api, reply.resp)
		}
		return Result{}, core.ErrRPCTimeout.WithMessagef("%s: no reply within %s", api, c.timeout)
	}
}

func (c *Client) register() (string, chan callReply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", nil, c.termErr
	}
	id := c.nextRequestID()
	for {
		if _, dup := c.pending[id]; !dup {
			break
		}
		id = c.nextRequestID()
	}
	ch := make(chan callReply, 1)
	c.pending[id] = ch
	return id, ch, nil
}

func (c *Client) unregister(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// abandon gives up on id after its deadline passed. When the reply was
// already delivered it is returned instead, so it is not lost to the
// race between the timer and the reader.
func (c *Client) abandon(id string, ch chan callReply) (callReply, bool) {
	c.mu.Lock()
	_, inFlight := c.pending[id]
	if inFlight {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if inFlight {
		return callReply{}, false
	}
	// Delivery happens under the lock and the channel is buffered, so
	// the reply is already here.
	select {
	case reply := <-ch:
		return reply, true
	default:
		return callReply{}, false
	}
}

// nextRequestID returns a request id in the daemon's expected
// timestamp-plus-counter shape. Uniqueness within the session comes from
// the counter; register re-rolls the rare wrap collision.
func (c *Client) nextRequestID() string {
	seq := c.seq.Add(1) % 1000000
	return time.Now().Format("20060102150405") + fmt.Sprintf("%06d", seq)
}

func (c *Client) send(body []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := writeFrame(c.conn, newSessionID(body), body); err != nil {
		return core.ErrConnectionLost.WithMessage("write failed").WithCause(err)
	}
	return nil
}

func (c *Client) readLoop() {
	reader := bufio.NewReader(c.conn)
	for {
		_, body, err := readFrame(reader)
		if err != nil {
			c.teardown(err)
			return
		}
		c.logf("recv %s", body)
		var resp response
		if jerr := json.Unmarshal(body, &resp); jerr != nil {
			logger.Warn("hypium: discarding unparseable reply: %v", jerr)
			continue
		}
		c.deliver(resp)
	}
}

func (c *Client) deliver(resp response) {
	c.mu.Lock()
	ch, ok := c.pending[resp.RequestID]
	if ok {
		delete(c.pending, resp.RequestID)
		ch <- callReply{resp: resp}
	}
	c.mu.Unlock()
	if !ok {
		logger.Debug("hypium: dropping reply %q (timed out or unsolicited)", resp.RequestID)
	}
}

// teardown runs exactly once, when the read loop exits. Every pending
// call resolves with ConnectionLost; anything issued afterwards fails
// fast with termErr.
func (c *Client) teardown(cause error) {
	lost := core.ErrConnectionLost.WithCause(cause)
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.termErr = lost
	}
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- callReply{err: lost}
	}
	c.mu.Unlock()
	close(c.done)
}

func (c *Client) decodeReply(api string, resp response) (Result, error) {
	if len(resp.Exception) > 0 && !bytes.Equal(resp.Exception, []byte("null")) {
		return Result{}, core.ErrRemoteCall.WithMessagef("%s: %s", api, exceptionText(resp.Exception))
	}
	return Result{raw: resp.Result}, nil
}

func exceptionText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Close ends the session. In-flight calls resolve with ConnectionLost,
// later ones fail with ObjectDropped, and the port forward set up by
// Open is removed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if !c.closed {
			c.closed = true
			c.termErr = core.ErrObjectDropped.WithMessage("session closed")
		}
		c.mu.Unlock()
		_ = c.conn.Close()
		<-c.done
		if c.dev != nil && c.localPort > 0 {
			if err := c.dev.RemoveForward(c.localPort, device.UitestServicePort); err != nil {
				logger.Debug("hypium: removing port forward: %v", err)
			}
		}
	})
	return nil
}

func (c *Client) logf(format string, v ...interface{}) {
	if c.wlog != nil {
		c.wlog.Printf(format, v...)
		return
	}
	logger.Debug("hypium: "+format, v...)
}

// settle waits out the post-action delay.
func (c *Client) settle() {
	if c.settleDelay > 0 {
		time.Sleep(c.settleDelay)
	}
}

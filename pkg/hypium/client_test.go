package hypium

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/devicelab-dev/harmony-runner/pkg/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newTestClient dials a fake daemon with a short timeout and the settle
// delay disabled.
func newTestClient(t *testing.T, handler FakeHandler) (*Client, *FakeDaemon) {
	t.Helper()
	daemon := NewFakeDaemon(handler)
	c, err := Dial(daemon.Addr(), Options{Timeout: time.Second, SettleDelay: -1})
	if err != nil {
		daemon.Close()
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() {
		c.Close()
		daemon.Close()
	})
	return c, daemon
}

func TestDialCreatesDriver(t *testing.T) {
	c, daemon := newTestClient(t, nil)

	if got := c.Driver().Ref(); got != "Driver#0" {
		t.Errorf("driver ref = %q, want Driver#0", got)
	}
	calls := daemon.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	create := calls[0]
	if create.Method != "callHypiumApi" || create.API != "Driver.create" {
		t.Errorf("first call = %s %s, want callHypiumApi Driver.create", create.Method, create.API)
	}
	// The bootstrap call names the driver it is about to create.
	if create.This != "Driver#0" {
		t.Errorf("create this = %v, want Driver#0", create.This)
	}
	if len(create.RequestID) != 20 {
		t.Errorf("request id %q, want 20 digits", create.RequestID)
	}
}

func TestDialRefusedDriver(t *testing.T) {
	daemon := NewFakeDaemon(func(call FakeCall) (interface{}, interface{}) {
		return nil, "uitest agent too old"
	})
	defer daemon.Close()

	_, err := Dial(daemon.Addr(), Options{Timeout: time.Second, SettleDelay: -1})
	if !errors.Is(err, core.ErrRemoteCall) {
		t.Fatalf("err = %v, want ErrRemoteCall", err)
	}
}

func TestInvokeRoundTrip(t *testing.T) {
	c, daemon := newTestClient(t, func(call FakeCall) (interface{}, interface{}) {
		if call.API == "Component.getText" {
			return "Send", nil
		}
		return nil, nil
	})

	h := NewTestHandle(c, KindComponent, "Component#42")
	res, err := c.Invoke("Component.getText", h)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	var text string
	if err := res.Decode(&text); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if text != "Send" {
		t.Errorf("text = %q, want Send", text)
	}

	calls := daemon.Calls()
	last := calls[len(calls)-1]
	if last.This != "Component#42" {
		t.Errorf("this = %v, want Component#42", last.This)
	}
	if len(last.Args) != 0 {
		t.Errorf("args = %v, want none", last.Args)
	}
}

func TestInvokeSendsHandleArgsAsRefs(t *testing.T) {
	c, daemon := newTestClient(t, nil)

	target := NewTestHandle(c, KindComponent, "Component#9")
	if _, err := c.Invoke("Component.dragTo", c.Driver(), target); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	calls := daemon.Calls()
	last := calls[len(calls)-1]
	if len(last.Args) != 1 || last.Args[0] != "Component#9" {
		t.Errorf("args = %v, want [Component#9]", last.Args)
	}
}

func TestInvokeException(t *testing.T) {
	c, _ := newTestClient(t, func(call FakeCall) (interface{}, interface{}) {
		if call.API == "Driver.swipe" {
			return nil, "java.lang.IllegalArgumentException: speed"
		}
		return nil, nil
	})

	_, err := c.Invoke("Driver.swipe", c.Driver(), 1, 2, 3, 4, 600)
	if !errors.Is(err, core.ErrRemoteCall) {
		t.Fatalf("err = %v, want ErrRemoteCall", err)
	}
	if want := "IllegalArgumentException"; !strings.Contains(err.Error(), want) {
		t.Errorf("err %q does not mention %s", err, want)
	}
}

func TestInvokeTimeout(t *testing.T) {
	daemon := NewFakeDaemon(func(call FakeCall) (interface{}, interface{}) {
		if call.API == "test.park" {
			return NoReply, nil
		}
		return nil, nil
	})
	defer daemon.Close()
	c, err := Dial(daemon.Addr(), Options{Timeout: 80 * time.Millisecond, SettleDelay: -1})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	start := time.Now()
	_, err = c.Invoke("test.park", Handle{})
	if !errors.Is(err, core.ErrRPCTimeout) {
		t.Fatalf("err = %v, want ErrRPCTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %s", elapsed)
	}
}

func TestLateReplyDoesNotCrossTalk(t *testing.T) {
	daemon := NewFakeDaemon(func(call FakeCall) (interface{}, interface{}) {
		switch call.API {
		case "test.slow":
			time.Sleep(250 * time.Millisecond)
			return "slow", nil
		case "test.fast":
			return "fast", nil
		}
		return nil, nil
	})
	defer daemon.Close()
	c, err := Dial(daemon.Addr(), Options{Timeout: 80 * time.Millisecond, SettleDelay: -1})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if _, err := c.Invoke("test.slow", Handle{}); !errors.Is(err, core.ErrRPCTimeout) {
		t.Fatalf("slow err = %v, want ErrRPCTimeout", err)
	}

	// Let the abandoned reply land while nothing is pending; it must
	// be dropped, not delivered to the next call.
	time.Sleep(300 * time.Millisecond)

	res, err := c.Invoke("test.fast", Handle{})
	if err != nil {
		t.Fatalf("fast: %v", err)
	}
	var got string
	if err := res.Decode(&got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "fast" {
		t.Errorf("result = %q, want fast", got)
	}
}

func TestConcurrentInvokesDemux(t *testing.T) {
	c, _ := newTestClient(t, func(call FakeCall) (interface{}, interface{}) {
		if call.API == "test.echo" {
			return call.Args[0], nil
		}
		return nil, nil
	})

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	got := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.Invoke("test.echo", Handle{}, fmt.Sprintf("v%02d", i))
			if err != nil {
				errs[i] = err
				return
			}
			errs[i] = res.Decode(&got[i])
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if want := fmt.Sprintf("v%02d", i); got[i] != want {
			t.Errorf("call %d got %q, want %q", i, got[i], want)
		}
	}
}

func TestDisconnectResolvesPendingCalls(t *testing.T) {
	daemon := NewFakeDaemon(func(call FakeCall) (interface{}, interface{}) {
		if call.API == "test.park" {
			return NoReply, nil
		}
		return nil, nil
	})
	c, err := Dial(daemon.Addr(), Options{Timeout: 10 * time.Second, SettleDelay: -1})
	if err != nil {
		daemon.Close()
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	defer daemon.Close()

	const parked = 8
	var wg sync.WaitGroup
	errs := make([]error, parked)
	for i := 0; i < parked; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Invoke("test.park", Handle{})
		}(i)
	}

	// Wait for every call to reach the daemon, then cut the connection.
	deadline := time.Now().Add(2 * time.Second)
	for len(daemon.Calls()) < parked+1 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d calls arrived", len(daemon.Calls()))
		}
		time.Sleep(5 * time.Millisecond)
	}
	daemon.Close()
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, core.ErrConnectionLost) {
			t.Errorf("call %d err = %v, want ErrConnectionLost", i, err)
		}
	}

	// The session stays dead: later calls fail fast.
	if _, err := c.Invoke("test.after", Handle{}); !errors.Is(err, core.ErrConnectionLost) {
		t.Errorf("post-disconnect err = %v, want ErrConnectionLost", err)
	}
}

func TestInvokeAfterClose(t *testing.T) {
	c, _ := newTestClient(t, nil)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	_, err := c.Invoke("Driver.click", c.Driver(), 10, 10)
	if !errors.Is(err, core.ErrObjectDropped) {
		t.Fatalf("err = %v, want ErrObjectDropped", err)
	}
}

func TestCrossSessionHandleRejected(t *testing.T) {
	c1, _ := newTestClient(t, nil)
	c2, _ := newTestClient(t, nil)

	if _, err := c1.Invoke("Driver.getDisplaySize", c2.Driver()); !errors.Is(err, core.ErrObjectDropped) {
		t.Errorf("foreign this err = %v, want ErrObjectDropped", err)
	}

	foreign := NewTestHandle(c2, KindComponent, "Component#1")
	if _, err := c1.Invoke("Component.dragTo", c1.Driver(), foreign); !errors.Is(err, core.ErrObjectDropped) {
		t.Errorf("foreign arg err = %v, want ErrObjectDropped", err)
	}
}

func TestRequestIDsUnique(t *testing.T) {
	c, daemon := newTestClient(t, nil)

	for i := 0; i < 40; i++ {
		if _, err := c.Invoke("test.ping", Handle{}); err != nil {
			t.Fatalf("Invoke %d: %v", i, err)
		}
	}
	seen := make(map[string]bool)
	for _, call := range daemon.Calls() {
		if seen[call.RequestID] {
			t.Fatalf("duplicate request id %q", call.RequestID)
		}
		seen[call.RequestID] = true
	}
}

package hypium

import (
	"errors"
	"testing"
	"time"

	"github.com/devicelab-dev/harmony-runner/pkg/core"
)

func TestToastWatcher(t *testing.T) {
	c, daemon := newTestClient(t, func(call FakeCall) (interface{}, interface{}) {
		switch call.API {
		case "Driver.uiEventObserverOnce":
			return true, nil
		case "Driver.getRecentUiEvent":
			return map[string]string{"text": "Saved", "type": "Toast", "bundleName": "com.example.app"}, nil
		}
		return nil, nil
	})

	w := c.ToastWatcher()
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	arm := lastCall(t, daemon, "Driver.uiEventObserverOnce")
	if arm.Args[0] != "toastShow" {
		t.Errorf("observer args = %v, want [toastShow]", arm.Args)
	}

	text, err := w.Get(3 * time.Second)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if text != "Saved" {
		t.Errorf("text = %q, want Saved", text)
	}
	get := lastCall(t, daemon, "Driver.getRecentUiEvent")
	if get.Args[0] != float64(3) {
		t.Errorf("timeout arg = %v, want 3 seconds", get.Args)
	}
}

func TestToastWatcherNoToast(t *testing.T) {
	c, _ := newTestClient(t, func(call FakeCall) (interface{}, interface{}) {
		if call.API == "Driver.uiEventObserverOnce" {
			return true, nil
		}
		return nil, nil
	})

	w := c.ToastWatcher()
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	text, err := w.Get(time.Second)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
}

func TestToastWatcherArmRefused(t *testing.T) {
	c, _ := newTestClient(t, func(call FakeCall) (interface{}, interface{}) {
		if call.API == "Driver.uiEventObserverOnce" {
			return false, nil
		}
		return nil, nil
	})

	if err := c.ToastWatcher().Start(); !errors.Is(err, core.ErrRemoteCall) {
		t.Fatalf("err = %v, want ErrRemoteCall", err)
	}
}

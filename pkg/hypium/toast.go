package hypium

import (
	"time"

	"github.com/devicelab-dev/harmony-runner/pkg/core"
)

// ToastWatcher captures the next toast shown on screen. Arm it with
// Start before triggering the toast, then collect the text with Get.
// Get is an ordinary call on the session, so it can run concurrently
// with the actions that trigger the toast.
type ToastWatcher struct {
	client *Client
}

// ToastWatcher returns a watcher on this session.
func (c *Client) ToastWatcher() *ToastWatcher {
	return &ToastWatcher{client: c}
}

// Start arms the daemon's one-shot toast observer.
func (w *ToastWatcher) Start() error {
	res, err := w.client.invokeDriver("Driver.uiEventObserverOnce", "toastShow")
	if err != nil {
		return err
	}
	var ok bool
	if err := res.Decode(&ok); err != nil || !ok {
		return core.ErrRemoteCall.WithMessage("toast observer did not arm")
	}
	return nil
}

// Get returns the observed toast text. An empty string means no toast
// appeared within timeout.
func (w *ToastWatcher) Get(timeout time.Duration) (string, error) {
	res, err := w.client.invokeDriver("Driver.getRecentUiEvent", int(timeout/time.Second))
	if err != nil {
		return "", err
	}
	if res.IsNull() {
		return "", nil
	}
	var event struct {
		Text string `json:"text"`
	}
	if err := res.Decode(&event); err != nil {
		return "", core.ErrRemoteCall.WithMessage("decoding ui event").WithCause(err)
	}
	return event.Text, nil
}

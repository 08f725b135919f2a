package hypium

import (
	"strings"

	"github.com/devicelab-dev/harmony-runner/pkg/core"
)

// Handle kinds minted by the daemon.
const (
	KindDriver        = "Driver"
	KindOn            = "On"
	KindComponent     = "Component"
	KindPointerMatrix = "PointerMatrix"
)

const (
	// rootDriverRef is the well-known handle of the session driver. The
	// daemon also accepts it as the target of Driver.create itself.
	rootDriverRef = "Driver#0"
	// seedOnRef is the template selectors chains grow from.
	seedOnRef = "On#seed"
)

// Handle identifies a remote object such as "Component#7". The ordinal
// after '#' is opaque; only the daemon interprets it. A handle is pinned
// to the session that minted it and must not outlive it.
type Handle struct {
	kind  string
	ref   string
	owner *Client
}

// Kind returns the object kind, e.g. "Component".
func (h Handle) Kind() string { return h.kind }

// Ref returns the wire form of the handle, e.g. "Component#7".
func (h Handle) Ref() string { return h.ref }

// IsZero reports whether the handle refers to nothing. A zero handle is
// sent as null.
func (h Handle) IsZero() bool { return h.ref == "" }

func (h Handle) String() string {
	if h.IsZero() {
		return "<nil>"
	}
	return h.ref
}

// parseHandle validates a handle string returned by the daemon and binds
// it to the owning session.
func parseHandle(owner *Client, ref string) (Handle, error) {
	kind, _, ok := strings.Cut(ref, "#")
	if !ok || kind == "" {
		return Handle{}, core.ErrRemoteCall.WithMessagef("malformed object handle %q", ref)
	}
	return Handle{kind: kind, ref: ref, owner: owner}, nil
}

// checkHandle rejects handles that were minted by a different session.
func (c *Client) checkHandle(h Handle) error {
	if h.IsZero() {
		return nil
	}
	if h.owner != c {
		return core.ErrObjectDropped.WithMessagef("%s belongs to another session", h.ref)
	}
	return nil
}

// handleFromResult reads an object handle out of a reply. wantKind is
// enforced when non-empty.
func (c *Client) handleFromResult(api string, res Result, wantKind string) (Handle, error) {
	var ref string
	if err := res.Decode(&ref); err != nil {
		return Handle{}, core.ErrRemoteCall.WithMessagef("%s did not return an object handle", api).WithCause(err)
	}
	h, err := parseHandle(c, ref)
	if err != nil {
		return Handle{}, err
	}
	if wantKind != "" && h.kind != wantKind {
		return Handle{}, core.ErrRemoteCall.WithMessagef("%s returned %s, want a %s handle", api, ref, wantKind)
	}
	return h, nil
}

package hypium

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/devicelab-dev/harmony-runner/pkg/core"
)

// newSelectorHandler mints sequential On handles and answers component
// lookups with component.
func newSelectorHandler(component interface{}) FakeHandler {
	n := 0
	return func(call FakeCall) (interface{}, interface{}) {
		if strings.HasPrefix(call.API, "On.") {
			n++
			return fmt.Sprintf("On#%d", n), nil
		}
		if call.API == "Driver.findComponent" || call.API == "Driver.findComponents" {
			return component, nil
		}
		return nil, nil
	}
}

func TestSelectorCompileSequence(t *testing.T) {
	c, daemon := newTestClient(t, newSelectorHandler("Component#5"))

	if err := c.Element(ByText("Send").Type("Button")).Find(); err != nil {
		t.Fatalf("Find: %v", err)
	}

	wantAPIs := []string{"Driver.create", "On.text", "On.type", "Driver.findComponent"}
	if got := daemon.APIs(); !reflect.DeepEqual(got, wantAPIs) {
		t.Fatalf("apis = %v, want %v", got, wantAPIs)
	}

	calls := daemon.Calls()
	if calls[1].This != "On#seed" || calls[1].Args[0] != "Send" {
		t.Errorf("On.text call = this %v args %v", calls[1].This, calls[1].Args)
	}
	if calls[2].This != "On#1" || calls[2].Args[0] != "Button" {
		t.Errorf("On.type call = this %v args %v", calls[2].This, calls[2].Args)
	}
	if calls[3].This != "Driver#0" || calls[3].Args[0] != "On#2" {
		t.Errorf("findComponent call = this %v args %v", calls[3].This, calls[3].Args)
	}
}

func TestSelectorOperandCompilesFirst(t *testing.T) {
	c, daemon := newTestClient(t, newSelectorHandler("Component#5"))

	by := ByText("OK").IsBefore(ByType("List"))
	if err := c.Element(by).Find(); err != nil {
		t.Fatalf("Find: %v", err)
	}

	wantAPIs := []string{"Driver.create", "On.text", "On.type", "On.isBefore", "Driver.findComponent"}
	if got := daemon.APIs(); !reflect.DeepEqual(got, wantAPIs) {
		t.Fatalf("apis = %v, want %v", got, wantAPIs)
	}

	calls := daemon.Calls()
	// The operand chain starts fresh from the seed.
	if calls[2].This != "On#seed" {
		t.Errorf("operand On.type this = %v, want On#seed", calls[2].This)
	}
	// isBefore continues the outer chain with the operand's handle.
	if calls[3].This != "On#1" || calls[3].Args[0] != "On#2" {
		t.Errorf("On.isBefore call = this %v args %v", calls[3].This, calls[3].Args)
	}
	if calls[4].Args[0] != "On#3" {
		t.Errorf("findComponent arg = %v, want On#3", calls[4].Args)
	}
}

func TestSelectorBoolCriterion(t *testing.T) {
	c, daemon := newTestClient(t, newSelectorHandler("Component#1"))

	if err := c.Element(ByType("Toggle").Checked(true)).Find(); err != nil {
		t.Fatalf("Find: %v", err)
	}
	calls := daemon.Calls()
	checked := calls[2]
	if checked.API != "On.checked" || checked.Args[0] != true {
		t.Errorf("On.checked call = %s %v", checked.API, checked.Args)
	}
}

func TestSelectorEmpty(t *testing.T) {
	c, daemon := newTestClient(t, nil)

	if err := c.Element(&By{}).Find(); !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("Find err = %v, want ErrInvalidConfig", err)
	}
	if _, err := c.FindAll(nil); !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("FindAll err = %v, want ErrInvalidConfig", err)
	}
	// Nothing reached the daemon beyond the session bootstrap.
	if got := daemon.APIs(); len(got) != 1 {
		t.Errorf("apis = %v, want only Driver.create", got)
	}
}

func TestSelectorBuildersCopy(t *testing.T) {
	base := ByType("Button")
	a := base.Text("A")
	b := base.Text("B")

	if got := base.String(); got != "type=Button" {
		t.Errorf("base = %q, extending it must not mutate it", got)
	}
	if got := a.String(); got != "type=Button text=A" {
		t.Errorf("a = %q", got)
	}
	if got := b.String(); got != "type=Button text=B" {
		t.Errorf("b = %q", got)
	}
}

func TestSelectorString(t *testing.T) {
	tests := []struct {
		by   *By
		want string
	}{
		{ByText("Send"), "text=Send"},
		{ByText("Send").Type("Button").Clickable(true), "text=Send type=Button clickable=true"},
		{ByID("login").Enabled(false), "id=login enabled=false"},
		{ByText("X").IsBefore(ByType("List")), "text=X isBefore(type=List)"},
		{ByKey("k").Within(ByType("Scroll").Scrollable(true)), "key=k within(type=Scroll scrollable=true)"},
		{&By{}, "<empty selector>"},
	}
	for _, tt := range tests {
		if got := tt.by.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

package hypium

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/harmony-runner/pkg/core"
)

// By describes how to locate a component. Criteria accumulate in
// declaration order; every builder method returns a copy, so partial
// chains can be shared and extended independently.
//
//	by := hypium.ByText("Send").Type("Button")
type By struct {
	criteria []criterion
}

type criterion struct {
	api     string
	value   interface{}
	operand *By // isBefore/isAfter/within take another selector
}

// ByText matches on the exact text attribute.
func ByText(text string) *By { return (&By{}).Text(text) }

// ByID matches on the component id.
func ByID(id string) *By { return (&By{}).ID(id) }

// ByKey matches on the component key.
func ByKey(key string) *By { return (&By{}).Key(key) }

// ByType matches on the component type, e.g. "Button".
func ByType(typ string) *By { return (&By{}).Type(typ) }

// ByDescription matches on the accessibility description.
func ByDescription(desc string) *By { return (&By{}).Description(desc) }

func (b *By) clone() *By {
	if b == nil {
		return &By{}
	}
	dup := &By{criteria: make([]criterion, len(b.criteria))}
	copy(dup.criteria, b.criteria)
	return dup
}

func (b *By) add(name string, value interface{}, operand *By) *By {
	dup := b.clone()
	dup.criteria = append(dup.criteria, criterion{api: "On." + name, value: value, operand: operand})
	return dup
}

func (b *By) Text(text string) *By        { return b.add("text", text, nil) }
func (b *By) ID(id string) *By            { return b.add("id", id, nil) }
func (b *By) Key(key string) *By          { return b.add("key", key, nil) }
func (b *By) Type(typ string) *By         { return b.add("type", typ, nil) }
func (b *By) Description(desc string) *By { return b.add("description", desc, nil) }

func (b *By) Clickable(v bool) *By     { return b.add("clickable", v, nil) }
func (b *By) LongClickable(v bool) *By { return b.add("longClickable", v, nil) }
func (b *By) Scrollable(v bool) *By    { return b.add("scrollable", v, nil) }
func (b *By) Enabled(v bool) *By       { return b.add("enabled", v, nil) }
func (b *By) Focused(v bool) *By       { return b.add("focused", v, nil) }
func (b *By) Selected(v bool) *By      { return b.add("selected", v, nil) }
func (b *By) Checked(v bool) *By       { return b.add("checked", v, nil) }
func (b *By) Checkable(v bool) *By     { return b.add("checkable", v, nil) }

// IsBefore keeps matches that appear before a component matching other.
func (b *By) IsBefore(other *By) *By { return b.add("isBefore", nil, other) }

// IsAfter keeps matches that appear after a component matching other.
func (b *By) IsAfter(other *By) *By { return b.add("isAfter", nil, other) }

// Within keeps matches inside a component matching other.
func (b *By) Within(other *By) *By { return b.add("within", nil, other) }

// IsEmpty reports whether no criteria were set.
func (b *By) IsEmpty() bool { return b == nil || len(b.criteria) == 0 }

func (b *By) String() string {
	if b.IsEmpty() {
		return "<empty selector>"
	}
	parts := make([]string, 0, len(b.criteria))
	for _, cr := range b.criteria {
		name := strings.TrimPrefix(cr.api, "On.")
		if cr.operand != nil {
			parts = append(parts, fmt.Sprintf("%s(%s)", name, cr.operand))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", name, cr.value))
	}
	return strings.Join(parts, " ")
}

// compile walks the criterion chain on the daemon, threading each
// returned On handle into the next call, and returns the final handle.
// Operand selectors compile fully first; their handle becomes the
// argument.
func (b *By) compile(c *Client) (Handle, error) {
	if b.IsEmpty() {
		return Handle{}, core.ErrInvalidConfig.WithMessage("selector has no criteria")
	}
	this := c.seedOn()
	for _, cr := range b.criteria {
		arg := cr.value
		if cr.operand != nil {
			operand, err := cr.operand.compile(c)
			if err != nil {
				return Handle{}, err
			}
			arg = operand
		}
		res, err := c.Invoke(cr.api, this, arg)
		if err != nil {
			return Handle{}, err
		}
		this, err = c.handleFromResult(cr.api, res, KindOn)
		if err != nil {
			return Handle{}, err
		}
	}
	return this, nil
}

package hypium

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"

	"github.com/antchfx/xpath"

	"github.com/devicelab-dev/harmony-runner/pkg/core"
)

// LayoutNode is one node of the captured UI tree.
type LayoutNode struct {
	Attributes map[string]string `json:"attributes"`
	Children   []*LayoutNode     `json:"children"`
}

// Attr returns an attribute value, "" when absent.
func (n *LayoutNode) Attr(name string) string {
	return n.Attributes[name]
}

var boundsPattern = regexp.MustCompile(`^\[(\d+),(\d+)\]\[(\d+),(\d+)\]`)

// ParseBounds reads the "[l,t][r,b]" attribute format.
func ParseBounds(s string) (Bounds, bool) {
	m := boundsPattern.FindStringSubmatch(s)
	if m == nil {
		return Bounds{}, false
	}
	left, _ := strconv.Atoi(m[1])
	top, _ := strconv.Atoi(m[2])
	right, _ := strconv.Atoi(m[3])
	bottom, _ := strconv.Atoi(m[4])
	return Bounds{Left: left, Top: top, Right: right, Bottom: bottom}, true
}

// DumpHierarchy captures the UI tree and returns it as raw JSON. Some
// daemon builds wrap the tree in a JSON string; the wrapper is removed.
func (c *Client) DumpHierarchy() ([]byte, error) {
	res, err := c.InvokeCaptures("captureLayout")
	if err != nil {
		return nil, err
	}
	if res.IsNull() {
		return nil, core.ErrRemoteCall.WithMessage("layout capture returned nothing")
	}
	raw := res.Raw()
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, core.ErrRemoteCall.WithMessage("decoding layout capture").WithCause(err)
		}
		return []byte(s), nil
	}
	return raw, nil
}

// Layout captures and parses the UI tree.
func (c *Client) Layout() (*LayoutNode, error) {
	raw, err := c.DumpHierarchy()
	if err != nil {
		return nil, err
	}
	var root LayoutNode
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, core.ErrRemoteCall.WithMessage("parsing layout capture").WithCause(err)
	}
	return &root, nil
}

// XPath captures the layout and returns the first node matching expr,
// wrapped for interaction. A query without matches still returns an
// element; check Exists before acting on it or use ClickIfExists.
func (c *Client) XPath(expr string) (*XPathElement, error) {
	matches, err := c.XPathAll(expr)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return &XPathElement{client: c, query: expr}, nil
	}
	return matches[0], nil
}

// XPathAll captures the layout and returns every match in document
// order.
func (c *Client) XPathAll(expr string) ([]*XPathElement, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, core.ErrInvalidConfig.WithMessagef("bad xpath %q", expr).WithCause(err)
	}
	root, err := c.Layout()
	if err != nil {
		return nil, err
	}
	doc := buildLayoutTree(root)
	iter := compiled.Select(&layoutNavigator{root: doc, cur: doc, attr: -1})
	var out []*XPathElement
	for iter.MoveNext() {
		nav, ok := iter.Current().(*layoutNavigator)
		if !ok || nav.cur.src == nil {
			continue
		}
		out = append(out, newXPathElement(c, expr, nav.cur.src))
	}
	return out, nil
}

// XPathElement is a layout tree match. It carries no daemon handle;
// interactions go through the node's bounds center.
type XPathElement struct {
	client *Client
	query  string
	attrs  map[string]string
	bounds *Bounds
}

func newXPathElement(c *Client, query string, node *LayoutNode) *XPathElement {
	el := &XPathElement{client: c, query: query, attrs: node.Attributes}
	if b, ok := ParseBounds(node.Attr("bounds")); ok {
		el.bounds = &b
	}
	return el
}

// Exists reports whether the query matched a node with usable bounds.
func (el *XPathElement) Exists() bool { return el.bounds != nil }

// Attributes returns the matched node's attributes, nil for a miss.
func (el *XPathElement) Attributes() map[string]string { return el.attrs }

// Text returns the matched node's text attribute.
func (el *XPathElement) Text() string { return el.attrs["text"] }

// Bounds returns the matched node's rectangle.
func (el *XPathElement) Bounds() (Bounds, bool) {
	if el.bounds == nil {
		return Bounds{}, false
	}
	return *el.bounds, true
}

// Center returns the match's center point, or ElementNotFound for a
// miss.
func (el *XPathElement) Center() (Point, error) {
	if el.bounds == nil {
		return Point{}, core.ErrElementNotFound.WithMessagef("no node matches xpath %q", el.query)
	}
	return el.bounds.Center(), nil
}

// Click taps the center of the match.
func (el *XPathElement) Click() error {
	p, err := el.Center()
	if err != nil {
		return err
	}
	return el.client.tapAbs("Driver.click", p)
}

// ClickIfExists taps the match, quietly doing nothing for a miss.
func (el *XPathElement) ClickIfExists() error {
	if !el.Exists() {
		return nil
	}
	return el.Click()
}

// DoubleClick double-taps the center of the match.
func (el *XPathElement) DoubleClick() error {
	p, err := el.Center()
	if err != nil {
		return err
	}
	return el.client.tapAbs("Driver.doubleClick", p)
}

// LongClick long-presses the center of the match.
func (el *XPathElement) LongClick() error {
	p, err := el.Center()
	if err != nil {
		return err
	}
	return el.client.tapAbs("Driver.longClick", p)
}

// InputText focuses the match with a tap, then types into it.
func (el *XPathElement) InputText(text string) error {
	if err := el.Click(); err != nil {
		return err
	}
	return el.client.InputText(text)
}

// treeNode adapts the layout tree for xpath navigation. The document
// root has a nil src and the capture root as its only child.
type treeNode struct {
	src      *LayoutNode
	parent   *treeNode
	children []*treeNode
	index    int
	tag      string
	attrs    []attrPair
}

type attrPair struct {
	name, value string
}

func buildLayoutTree(root *LayoutNode) *treeNode {
	doc := &treeNode{}
	doc.children = []*treeNode{buildLayoutNode(root, doc, 0)}
	return doc
}

func buildLayoutNode(src *LayoutNode, parent *treeNode, index int) *treeNode {
	tag := src.Attr("type")
	if tag == "" {
		tag = "orgRoot"
	}
	n := &treeNode{src: src, parent: parent, index: index, tag: tag}
	names := make([]string, 0, len(src.Attributes))
	for name := range src.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		n.attrs = append(n.attrs, attrPair{name: name, value: src.Attributes[name]})
	}
	for i, child := range src.Children {
		n.children = append(n.children, buildLayoutNode(child, n, i))
	}
	return n
}

// layoutNavigator implements xpath.NodeNavigator over a treeNode tree.
// attr is -1 while positioned on the node itself.
type layoutNavigator struct {
	root, cur *treeNode
	attr      int
}

func (n *layoutNavigator) NodeType() xpath.NodeType {
	if n.attr >= 0 {
		return xpath.AttributeNode
	}
	if n.cur == n.root {
		return xpath.RootNode
	}
	return xpath.ElementNode
}

func (n *layoutNavigator) LocalName() string {
	if n.attr >= 0 {
		return n.cur.attrs[n.attr].name
	}
	return n.cur.tag
}

func (n *layoutNavigator) Prefix() string { return "" }

// Value returns the attribute value, or the node's text attribute so
// that string comparisons on elements behave usefully.
func (n *layoutNavigator) Value() string {
	if n.attr >= 0 {
		return n.cur.attrs[n.attr].value
	}
	if n.cur.src == nil {
		return ""
	}
	return n.cur.src.Attr("text")
}

func (n *layoutNavigator) Copy() xpath.NodeNavigator {
	clone := *n
	return &clone
}

func (n *layoutNavigator) MoveToRoot() {
	n.cur = n.root
	n.attr = -1
}

func (n *layoutNavigator) MoveToParent() bool {
	if n.attr >= 0 {
		n.attr = -1
		return true
	}
	if n.cur.parent == nil {
		return false
	}
	n.cur = n.cur.parent
	return true
}

func (n *layoutNavigator) MoveToNextAttribute() bool {
	if n.attr+1 >= len(n.cur.attrs) {
		return false
	}
	n.attr++
	return true
}

func (n *layoutNavigator) MoveToChild() bool {
	if n.attr >= 0 || len(n.cur.children) == 0 {
		return false
	}
	n.cur = n.cur.children[0]
	return true
}

func (n *layoutNavigator) MoveToFirst() bool {
	if n.attr >= 0 {
		return false
	}
	if n.cur.parent != nil {
		n.cur = n.cur.parent.children[0]
	}
	return true
}

func (n *layoutNavigator) MoveToNext() bool {
	if n.attr >= 0 {
		return false
	}
	p := n.cur.parent
	if p == nil || n.cur.index+1 >= len(p.children) {
		return false
	}
	n.cur = p.children[n.cur.index+1]
	return true
}

func (n *layoutNavigator) MoveToPrevious() bool {
	if n.attr >= 0 {
		return false
	}
	p := n.cur.parent
	if p == nil || n.cur.index == 0 {
		return false
	}
	n.cur = p.children[n.cur.index-1]
	return true
}

func (n *layoutNavigator) MoveTo(other xpath.NodeNavigator) bool {
	o, ok := other.(*layoutNavigator)
	if !ok || o.root != n.root {
		return false
	}
	n.cur = o.cur
	n.attr = o.attr
	return true
}

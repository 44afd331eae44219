//go:build js && wasm

// Package dom hosts the fallback emulator as absolutely positioned divs.
package dom

import (
	"fmt"
	"strconv"
	"syscall/js"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/pthm-cable/starfield/fallback"
)

// Container implements fallback.Container over a DOM node.
type Container struct {
	document js.Value
	root     js.Value
}

// New returns a container for the element with the given id.
func New(id string) (*Container, error) {
	doc := js.Global().Get("document")
	root := doc.Call("getElementById", id)
	if root.IsNull() || root.IsUndefined() {
		return nil, fmt.Errorf("%w: #%s", fallback.ErrNoContainer, id)
	}
	return &Container{document: doc, root: root}, nil
}

// Bounds implements fallback.Container.
func (c *Container) Bounds() (float64, float64) {
	return c.root.Get("clientWidth").Float(), c.root.Get("clientHeight").Float()
}

// CreateElement implements fallback.Container.
func (c *Container) CreateElement() (fallback.Element, error) {
	div := c.document.Call("createElement", "div")
	div.Set("className", "starfield-fallback-particle")
	c.root.Call("appendChild", div)
	return &element{node: div, style: div.Get("style")}, nil
}

// InjectStyle implements fallback.Container.
func (c *Container) InjectStyle(css string) (fallback.Style, error) {
	head := c.document.Get("head")
	if head.IsNull() || head.IsUndefined() {
		return nil, fmt.Errorf("document has no head")
	}
	node := c.document.Call("createElement", "style")
	node.Set("textContent", css)
	head.Call("appendChild", node)
	return style{node: node}, nil
}

type element struct {
	node  js.Value
	style js.Value
}

func (e *element) Move(x, y float64) {
	e.style.Set("transform", "translate("+px(x)+","+px(y)+")")
}

func (e *element) SetOpacity(a float64) {
	e.style.Set("opacity", strconv.FormatFloat(a, 'f', 3, 64))
}

func (e *element) SetColor(c colorful.Color) {
	hex := c.Clamped().Hex()
	e.style.Set("background", hex)
	e.style.Set("boxShadow", "0 0 4px "+hex)
}

func (e *element) SetSize(size float64) {
	e.style.Set("width", px(size))
	e.style.Set("height", px(size))
}

func (e *element) Remove() {
	e.node.Call("remove")
}

type style struct {
	node js.Value
}

func (s style) Remove() { s.node.Call("remove") }

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "px"
}

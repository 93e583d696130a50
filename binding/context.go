package qbind

import "slices"

// Node is an element in a tree of DataContexts. A node's effective
// context is its own context if it has one, otherwise that of the nearest
// ancestor with one. Bindings created with Node.Bind use the effective
// context as their source and follow it when it changes.
//
// Nodes are themselves observable: a change of effective context is
// announced as the "DataContext" property, and paths on a node can read
// "DataContext".
type Node struct {
	engine   *Engine
	parent   *Node
	children []*Node
	bindings []*Binding

	context    interface{}
	hasContext bool

	// Memoized effective context, valid until an ancestor changes
	cached      interface{}
	cachedValid bool

	removed bool
}

// NewNode creates a node under parent, or a root node if parent is nil.
func (e *Engine) NewNode(parent *Node) *Node {
	n := &Node{engine: e}
	if parent != nil {
		n.parent = parent
		parent.children = append(parent.children, n)
	}
	return n
}

// Parent returns the parent node, nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns a copy of the node's children.
func (n *Node) Children() []*Node {
	return slices.Clone(n.children)
}

// HasOwnContext reports whether SetContext was called without a later
// ClearContext.
func (n *Node) HasOwnContext() bool {
	return n.hasContext
}

// Context returns the effective context, nil if neither the node nor any
// ancestor has one.
func (n *Node) Context() interface{} {
	if n.hasContext {
		return n.context
	}
	if n.cachedValid {
		return n.cached
	}

	var v interface{}
	for p := n.parent; p != nil; p = p.parent {
		if p.hasContext {
			v = p.context
			break
		}
	}
	n.cached, n.cachedValid = v, true
	return v
}

// SetContext gives the node its own context, shadowing any inherited one
// for the node and its descendants.
func (n *Node) SetContext(v interface{}) {
	n.context = v
	n.hasContext = true
	n.contextChanged()
}

// ClearContext removes the node's own context, so that it inherits again.
func (n *Node) ClearContext() {
	if !n.hasContext {
		return
	}
	n.context = nil
	n.hasContext = false
	n.contextChanged()
}

// SetParent moves the node under p, or makes it a root if p is nil. Moving
// a node under itself or one of its descendants fails with ErrCycle.
func (n *Node) SetParent(p *Node) error {
	if n.removed {
		return ErrDisposed
	}
	if p == n.parent {
		return nil
	}
	for a := p; a != nil; a = a.parent {
		if a == n {
			return ErrCycle
		}
	}

	n.unlink()
	n.parent = p
	if p != nil {
		p.children = append(p.children, n)
	}
	if !n.hasContext {
		n.contextChanged()
	}
	return nil
}

// Bind creates a binding whose source is the node's effective context. The
// binding belongs to the node and is disposed with it.
func (n *Node) Bind(p BindParams) (*Binding, error) {
	if n.removed {
		return nil, ErrDisposed
	}
	b, err := n.engine.bind(n.Context(), n, p)
	if err != nil {
		return nil, err
	}
	n.bindings = append(n.bindings, b)
	return b, nil
}

// Bindings returns the live bindings owned by the node.
func (n *Node) Bindings() []*Binding {
	return slices.Clone(n.bindings)
}

func (n *Node) removeBinding(b *Binding) {
	if i := slices.Index(n.bindings, b); i >= 0 {
		n.bindings = slices.Delete(n.bindings, i, i+1)
	}
}

// Remove detaches the node from its parent and disposes every binding in
// its subtree. A removed node cannot be bound or reparented.
func (n *Node) Remove() {
	if n.removed {
		return
	}
	n.unlink()
	n.parent = nil
	n.dispose()
}

func (n *Node) dispose() {
	n.removed = true
	for _, b := range slices.Clone(n.bindings) {
		b.Dispose()
	}
	n.bindings = nil
	for _, c := range n.children {
		c.dispose()
	}
}

func (n *Node) unlink() {
	if n.parent == nil {
		return
	}
	siblings := n.parent.children
	if i := slices.Index(siblings, n); i >= 0 {
		n.parent.children = slices.Delete(siblings, i, i+1)
	}
}

// Property exposes the effective context to paths as "DataContext".
func (n *Node) Property(name string) (interface{}, bool) {
	if lowerFirst(name) == "dataContext" {
		return n.Context(), true
	}
	return nil, false
}

// contextChanged invalidates the memoized context of n and every
// descendant that inherits it, then refires their bindings top-down.
func (n *Node) contextChanged() {
	var affected []*Node
	n.invalidate(&affected)

	for _, a := range affected {
		if a.removed {
			continue
		}
		ctx := a.Context()
		for _, b := range slices.Clone(a.bindings) {
			b.attach(ctx)
		}
		a.engine.bus.notify(a, "DataContext")
	}
}

func (n *Node) invalidate(affected *[]*Node) {
	n.cached, n.cachedValid = nil, false
	*affected = append(*affected, n)
	for _, c := range n.children {
		if !c.hasContext {
			c.invalidate(affected)
		}
	}
}

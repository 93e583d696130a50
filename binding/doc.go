// qbind is a data-binding and change-propagation engine for Go values.
//
// A binding keeps a target property in sync with a value somewhere inside a source, addressed by a property
// path such as "Customer.Address.City" or "Orders[0].Total". When anything along the path changes, the
// binding re-resolves the path, re-subscribes to whatever it now walks through, and pushes the new value to
// the target. Two-way bindings also write edits of the target back to the source.
//
// Objects
//
// Sources and targets can be any struct pointer, map, or slice, but changes are only seen when they are
// announced. The easiest way to do that is to embed Object. The exported fields become bindable properties,
// and Changed announces that one of them was modified:
//
//  type Person struct {
//      qbind.Object
//      Name string
//      Age  int
//  }
//
//  p.Name = "Robin"
//  p.Changed("Name")
//
// Objects do not need to be initialized explicitly; they are initialized the first time a binding sees them.
// Bindings only hold weak references to objects, so a binding never keeps its source or target alive.
// Property names in paths match the field name, its lowercase-initial form, or its json tag.
//
// Values that do not embed Object can announce changes with Engine.Notify, and types can provide computed
// properties by implementing PropertyGetter and PropertySetter.
//
// Bindings
//
// Engine.Bind creates a binding from a source, a path, and a target property. The Mode selects the direction
// (OneWay, TwoWay, OneWayToSource, OneTime) and the Trigger selects whether target edits are written back
// immediately or on UpdateSource. A path that cannot be resolved, for example because an intermediate value
// is nil, is not an error: the binding has StatusNoValue and the target receives the fallback value until
// the path resolves again.
//
//  b, err := engine.Bind(order, qbind.BindParams{
//      Path:     "Customer.Name",
//      Target:   form,
//      Property: "Title",
//  })
//
// Data Contexts
//
// Bindings are usually created on a Node instead. Nodes form a tree, and each node's DataContext is its own
// context or that of its nearest ancestor with one. Bindings created with Node.Bind use the node's context as
// their source and follow it when it changes anywhere above them. Removing a node disposes its bindings.
//
// Data Models
//
// For collections, Model provides change notifications for inserted, removed, moved, and updated rows. An
// object which embeds Model, implements the ModelDataSource interface, and calls Model's methods for changes
// to data can be indexed by paths, observed by a View, and shared through a Cursor. List is a ready-made
// model for a slice.
//
// A Cursor is the current item of a collection, shared by a list and any detail views. It follows the
// collection's changes, and a detail binding on "Current.Name" with the cursor as source always shows the
// selected row.
//
// Threads
//
// An Engine is single-threaded: every call, including Changed and mutations of bound data, must happen on
// one goroutine. Other goroutines use Engine.Post to run functions there, and that goroutine calls Process,
// or uses Run or RunLockable.
package qbind

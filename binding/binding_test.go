package qbind

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countNotifications(e *Engine, obj interface{}, property string) *int {
	count := new(int)
	e.Subscribe(obj, property, func(ChangeNotification) error {
		*count++
		return nil
	})
	return count
}

func TestBindInitialValue(t *testing.T) {
	p := &Person{Name: "Ann"}
	l := &Label{}

	b, err := testEngine.Bind(p, BindParams{Path: "Name", Target: l, Property: "Text"})
	require.NoError(t, err)
	assert.Equal(t, "Ann", l.Text)
	assert.Equal(t, StatusActive, b.Status())
	assert.Equal(t, "Ann", b.Value())
	assert.Equal(t, OneWay, b.Mode())
	assert.Equal(t, TriggerPropertyChanged, b.Trigger())
	assert.NotEmpty(t, b.ID())
	assert.Same(t, p, b.Source())

	p.Name = "Bob"
	p.Changed("Name")
	assert.Equal(t, "Bob", l.Text)

	// Unrelated properties do not refresh the target
	l.Text = "untouched"
	p.Changed("Age")
	assert.Equal(t, "untouched", l.Text)
}

func TestBindParseError(t *testing.T) {
	b, err := testEngine.Bind(&Person{}, BindParams{Path: "Address..City", Target: &Label{}, Property: "Text"})
	assert.Nil(t, b)
	var perr *ParseError
	assert.True(t, errors.As(err, &perr), "expected *ParseError, got %v", err)

	_, err = testEngine.Bind(&Person{}, BindParams{Path: "Name", Property: "Text"})
	assert.Error(t, err)
	_, err = testEngine.Bind(&Person{}, BindParams{Path: "Name", Target: &Label{}})
	assert.Error(t, err)
}

func TestBindIntermediateReplaced(t *testing.T) {
	old := &Address{City: "Oslo"}
	p := &Person{Address: old}
	l := &Label{}

	_, err := testEngine.Bind(p, BindParams{Path: "Address.City", Target: l, Property: "Text"})
	require.NoError(t, err)
	assert.Equal(t, "Oslo", l.Text)
	assert.Equal(t, 1, testEngine.Bus().SubscriberCount(old))

	p.Address = &Address{City: "Bergen"}
	p.Changed("Address")
	assert.Equal(t, "Bergen", l.Text)

	// The replaced intermediate is no longer observed
	assert.Equal(t, 0, testEngine.Bus().SubscriberCount(old))
	old.City = "Trondheim"
	old.Changed("City")
	assert.Equal(t, "Bergen", l.Text)

	p.Address.City = "Stavanger"
	p.Address.Changed("City")
	assert.Equal(t, "Stavanger", l.Text)
}

func TestBindNoValue(t *testing.T) {
	p := &Person{}
	l := &Label{Text: "initial"}

	b, err := testEngine.Bind(p, BindParams{Path: "Address.City", Target: l, Property: "Text", Fallback: "n/a"})
	require.NoError(t, err)
	assert.Equal(t, StatusNoValue, b.Status())
	assert.Equal(t, "n/a", l.Text)
	assert.Nil(t, b.Value())
	assert.ErrorIs(t, b.Err(), &ResolutionError{Kind: NullIntermediate})

	// The binding recovers once the intermediate appears
	p.Address = &Address{City: "Oslo"}
	p.Changed("Address")
	assert.Equal(t, StatusActive, b.Status())
	assert.NoError(t, b.Err())
	assert.Equal(t, "Oslo", l.Text)

	// Without a fallback, the target gets its zero value
	b2, err := testEngine.Bind(p, BindParams{Path: "Nope", Target: l, Property: "Count"})
	require.NoError(t, err)
	assert.Equal(t, StatusNoValue, b2.Status())
	assert.ErrorIs(t, b2.Err(), &ResolutionError{Kind: MissingMember})
	assert.Equal(t, 0, l.Count)
}

func TestBindDispose(t *testing.T) {
	p := &Person{Name: "Ann", Address: &Address{City: "Oslo"}}
	l := &Label{}

	b, err := testEngine.Bind(p, BindParams{Path: "Address.City", Target: l, Property: "Text", Mode: TwoWay})
	require.NoError(t, err)
	require.Equal(t, 1, testEngine.Bus().SubscriberCount(l))

	b.Dispose()
	assert.Equal(t, StatusDisposed, b.Status())
	assert.Equal(t, 0, testEngine.Bus().SubscriberCount(p))
	assert.Equal(t, 0, testEngine.Bus().SubscriberCount(p.Address))
	assert.Equal(t, 0, testEngine.Bus().SubscriberCount(l))

	p.Address.City = "Bergen"
	p.Address.Changed("City")
	assert.Equal(t, "Oslo", l.Text)

	l.Text = "edited"
	l.Changed("Text")
	assert.Equal(t, "Bergen", p.Address.City)

	assert.NotPanics(t, b.Dispose)
	assert.ErrorIs(t, b.Refresh(), ErrDisposed)
	assert.ErrorIs(t, b.UpdateSource(), ErrDisposed)
}

func TestBindTwoWay(t *testing.T) {
	p := &Person{Name: "Ann"}
	l := &Label{}

	_, err := testEngine.Bind(p, BindParams{Path: "Name", Target: l, Property: "Text", Mode: TwoWay})
	require.NoError(t, err)
	assert.Equal(t, "Ann", l.Text)

	sourceChanges := countNotifications(testEngine, p, "Name")
	targetChanges := countNotifications(testEngine, l, "Text")

	// Target edits propagate to the source exactly once, without echo
	l.Text = "Zed"
	l.Changed("Text")
	assert.Equal(t, "Zed", p.Name)
	assert.Equal(t, 1, *sourceChanges)
	assert.Equal(t, 1, *targetChanges)

	// And source changes propagate to the target exactly once
	p.Name = "Quinn"
	p.Changed("Name")
	assert.Equal(t, "Quinn", l.Text)
	assert.Equal(t, 2, *sourceChanges)
	assert.Equal(t, 2, *targetChanges)
}

func TestBindTwoWayOtherObservers(t *testing.T) {
	p := &Person{Name: "Ann"}
	editor, display := &Label{}, &Label{}

	_, err := testEngine.Bind(p, BindParams{Path: "Name", Target: editor, Property: "Text", Mode: TwoWay})
	require.NoError(t, err)
	_, err = testEngine.Bind(p, BindParams{Path: "Name", Target: display, Property: "Text"})
	require.NoError(t, err)

	editor.Text = "Robin"
	editor.Changed("Text")
	assert.Equal(t, "Robin", display.Text)
}

func TestBindExplicitTrigger(t *testing.T) {
	p := &Person{Name: "Ann"}
	l := &Label{}

	b, err := testEngine.Bind(p, BindParams{Path: "Name", Target: l, Property: "Text", Mode: TwoWay, Trigger: TriggerExplicit})
	require.NoError(t, err)

	l.Text = "Draft"
	l.Changed("Text")
	assert.Equal(t, "Ann", p.Name)
	assert.True(t, b.IsDirty())

	require.NoError(t, b.UpdateSource())
	assert.Equal(t, "Draft", p.Name)
	assert.False(t, b.IsDirty())
}

func TestBindWritebackConversion(t *testing.T) {
	p := &Person{Age: 30}
	l := &Label{}

	b, err := testEngine.Bind(p, BindParams{Path: "Age", Target: l, Property: "Text", Mode: TwoWay})
	require.NoError(t, err)
	assert.Equal(t, "30", l.Text)

	l.Text = "abc"
	l.Changed("Text")
	assert.Equal(t, 30, p.Age)
	var cerr *ConversionError
	require.True(t, errors.As(b.Err(), &cerr), "expected *ConversionError, got %v", b.Err())
	assert.Equal(t, "int", cerr.Want)
	assert.Equal(t, "string", cerr.Got)

	l.Text = "41"
	l.Changed("Text")
	assert.Equal(t, 41, p.Age)
	assert.NoError(t, b.Err())
}

func TestBindConverter(t *testing.T) {
	p := &Person{Name: "ann"}
	l := &Label{}
	upper := ConverterFuncs{
		To: func(v interface{}) (interface{}, error) {
			return strings.ToUpper(v.(string)), nil
		},
		From: func(v interface{}) (interface{}, error) {
			s := v.(string)
			if s == "" {
				return nil, errors.New("empty name")
			}
			return strings.ToLower(s), nil
		},
	}

	b, err := testEngine.Bind(p, BindParams{Path: "Name", Target: l, Property: "Text", Mode: TwoWay, Converter: upper})
	require.NoError(t, err)
	assert.Equal(t, "ANN", l.Text)

	l.Text = "BOB"
	l.Changed("Text")
	assert.Equal(t, "bob", p.Name)
	assert.Equal(t, "bob", b.Value())

	// A failing ConvertBack skips the writeback
	l.Text = ""
	l.Changed("Text")
	assert.Equal(t, "bob", p.Name)
	assert.EqualError(t, b.Err(), "empty name")
}

func TestBindOneTime(t *testing.T) {
	p := &Person{Name: "Ann"}
	l := &Label{}

	_, err := testEngine.Bind(p, BindParams{Path: "Name", Target: l, Property: "Text", Mode: OneTime})
	require.NoError(t, err)
	assert.Equal(t, "Ann", l.Text)
	assert.Equal(t, 0, testEngine.Bus().SubscriberCount(p))

	p.Name = "Bob"
	p.Changed("Name")
	assert.Equal(t, "Ann", l.Text)
}

func TestBindOneWayToSource(t *testing.T) {
	p := &Person{Name: "Ann"}
	l := &Label{Text: "from target"}

	_, err := testEngine.Bind(p, BindParams{Path: "Name", Target: l, Property: "Text", Mode: OneWayToSource})
	require.NoError(t, err)
	assert.Equal(t, "from target", p.Name)

	p.Name = "Bob"
	p.Changed("Name")
	assert.Equal(t, "from target", l.Text)

	l.Text = "again"
	l.Changed("Text")
	assert.Equal(t, "again", p.Name)
}

func TestBindEmptyPath(t *testing.T) {
	p := &Person{Name: "Ann"}
	target := map[string]interface{}{}

	b, err := testEngine.Bind(p, BindParams{Path: "", Target: target, Property: "item", Mode: TwoWay})
	require.NoError(t, err)
	assert.Same(t, p, target["item"])
	assert.ErrorIs(t, b.UpdateSource(), ErrNotWritable)
}

func TestBindOneWayUpdateSource(t *testing.T) {
	b, err := testEngine.Bind(&Person{}, BindParams{Path: "Name", Target: &Label{}, Property: "Text"})
	require.NoError(t, err)
	assert.Error(t, b.UpdateSource())
}

func TestBindIndexedModel(t *testing.T) {
	people := NewList(testEngine, &Person{Name: "Ann"}, &Person{Name: "Bob"})
	l := &Label{}

	b, err := testEngine.Bind(people, BindParams{Path: "[1].Name", Target: l, Property: "Text"})
	require.NoError(t, err)
	assert.Equal(t, "Bob", l.Text)

	people.Insert(0, &Person{Name: "Cleo"})
	assert.Equal(t, "Ann", l.Text)

	people.At(1).Name = "Anna"
	people.At(1).Changed("Name")
	assert.Equal(t, "Anna", l.Text)

	people.RemoveAt(0, 3)
	assert.Equal(t, StatusNoValue, b.Status())
	assert.ErrorIs(t, b.Err(), &ResolutionError{Kind: IndexOutOfRange})

	people.Append(&Person{Name: "Dana"}, &Person{Name: "Eli"})
	assert.Equal(t, "Eli", l.Text)
}

func TestBindWritebackIndexed(t *testing.T) {
	tags := NewList(testEngine, "a", "b")
	l := &Label{}
	changes := 0
	testEngine.SubscribeCollection(tags, func(ChangeNotification) error {
		changes++
		return nil
	})

	_, err := testEngine.Bind(tags, BindParams{Path: "[0]", Target: l, Property: "Text", Mode: TwoWay})
	require.NoError(t, err)

	l.Text = "z"
	l.Changed("Text")
	assert.Equal(t, []string{"z", "b"}, tags.Items())
	assert.Equal(t, 1, changes)

	// Plain slices are written in place and announced as a replacement
	p := &Person{Tags: []string{"x"}}
	l2 := &Label{}
	_, err = testEngine.Bind(p, BindParams{Path: "Tags[0]", Target: l2, Property: "Text", Mode: TwoWay})
	require.NoError(t, err)
	l2.Text = "y"
	l2.Changed("Text")
	assert.Equal(t, "y", p.Tags[0])
}

func TestBindPlainSources(t *testing.T) {
	settings := map[string]interface{}{"theme": "dark"}
	l := &Label{}

	_, err := testEngine.Bind(settings, BindParams{Path: "theme", Target: l, Property: "Text", Mode: TwoWay})
	require.NoError(t, err)
	assert.Equal(t, "dark", l.Text)

	settings["theme"] = "light"
	require.NoError(t, testEngine.Notify(settings, "theme"))
	assert.Equal(t, "light", l.Text)

	l.Text = "solarized"
	l.Changed("Text")
	assert.Equal(t, "solarized", settings["theme"])
}

type Gauge struct {
	values map[string]interface{}
	sets   int
}

func (g *Gauge) Property(name string) (interface{}, bool) {
	v, ok := g.values[name]
	return v, ok
}

func (g *Gauge) SetProperty(name string, value interface{}) error {
	if _, ok := g.values[name]; !ok {
		return fmt.Errorf("no property %s", name)
	}
	g.values[name] = value
	g.sets++
	return nil
}

func TestBindPropertyInterfaces(t *testing.T) {
	src := &Gauge{values: map[string]interface{}{"level": 3}}
	dst := &Gauge{values: map[string]interface{}{"shown": nil}}

	b, err := testEngine.Bind(src, BindParams{Path: "level", Target: dst, Property: "shown", Mode: TwoWay})
	require.NoError(t, err)
	assert.Equal(t, 3, dst.values["shown"])
	assert.Equal(t, 1, dst.sets)

	dst.values["shown"] = 5
	require.NoError(t, testEngine.Notify(dst, "shown"))
	assert.Equal(t, 5, src.values["level"])
	assert.Equal(t, 1, src.sets)
	assert.Equal(t, StatusActive, b.Status())
}

func TestBindTargetCollected(t *testing.T) {
	e := newTestEngine(Options{})
	p := &Person{Name: "Ann"}
	b, targetID := bindCollectableTarget(t, e, p)
	require.Equal(t, 1, e.Bus().SubscriberCount(p))
	require.Len(t, e.bus.table, 2)

	runtime.GC()
	runtime.GC()

	p.Name = "Bob"
	p.Changed("Name")
	assert.Equal(t, StatusDetached, b.Status())
	assert.ErrorIs(t, b.Err(), ErrSourceCollected)

	// The writeback subscription on the collected target is released
	assert.NotContains(t, e.bus.table, objectID(targetID))
	assert.Equal(t, 0, e.Bus().SubscriberCount(p))
	assert.Empty(t, e.bus.table)
}

func bindCollectableTarget(t *testing.T, e *Engine, p *Person) (*Binding, string) {
	l := &Label{}
	b, err := e.Bind(p, BindParams{Path: "Name", Target: l, Property: "Text", Mode: TwoWay})
	require.NoError(t, err)
	return b, l.Identifier()
}

func TestModeText(t *testing.T) {
	for _, m := range []Mode{ModeDefault, OneWay, TwoWay, OneWayToSource, OneTime} {
		text, err := m.MarshalText()
		require.NoError(t, err)
		var back Mode
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, m, back)
	}

	var m Mode
	assert.NoError(t, m.UnmarshalText([]byte("TwoWay")))
	assert.Equal(t, TwoWay, m)
	assert.Error(t, m.UnmarshalText([]byte("sideways")))

	var tr Trigger
	assert.NoError(t, tr.UnmarshalText([]byte("explicit")))
	assert.Equal(t, TriggerExplicit, tr)
	assert.Error(t, tr.UnmarshalText([]byte("never")))
}

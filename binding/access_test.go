package qbind

import (
	"errors"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Order struct {
	ID       int `json:"id"`
	Customer *Person
	Lines    []OrderLine
	Meta     map[string]interface{}
	Counts   map[int]string
}

type OrderLine struct {
	Product string
	Qty     int
}

var dumper = spew.ConfigState{Indent: " ", SortKeys: true}

func newOrder() *Order {
	return &Order{
		ID: 7,
		Customer: &Person{
			Name:    "Ann",
			Age:     31,
			Address: &Address{City: "Oslo", Zip: "0150"},
			Tags:    []string{"vip", "early"},
		},
		Lines: []OrderLine{{"apple", 3}, {"pear", 1}},
		Meta: map[string]interface{}{
			"source": "web",
			"nested": map[string]int{"depth": 2},
		},
		Counts: map[int]string{1: "one"},
	}
}

func TestResolveMatchesDirectAccess(t *testing.T) {
	o := newOrder()
	tests := []struct {
		path string
		want interface{}
	}{
		{"", o},
		{"ID", o.ID},
		{"id", o.ID},
		{"Customer", o.Customer},
		{"Customer.Name", o.Customer.Name},
		{"customer.name", o.Customer.Name},
		{"Customer.Address.City", o.Customer.Address.City},
		{"Customer.Address.postcode", o.Customer.Address.Zip},
		{"Customer.Address.Zip", o.Customer.Address.Zip},
		{"Customer.Tags[1]", o.Customer.Tags[1]},
		{"Lines[0].Product", o.Lines[0].Product},
		{"Lines[1].Qty", o.Lines[1].Qty},
		{"Meta.source", o.Meta["source"]},
		{`Meta["source"]`, o.Meta["source"]},
		{"Meta.nested.depth", 2},
		{"Counts[1]", o.Counts[1]},
		{"Customer.Name[0]", o.Customer.Name[0]},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			v, err := Resolve(o, MustParsePath(tc.path))
			require.NoError(t, err)
			assert.Equal(t, tc.want, v)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	o := newOrder()
	o.Customer.Address = nil

	tests := []struct {
		root interface{}
		path string
		kind ResolutionKind
		step int
	}{
		{o, "Customer.Address.City", NullIntermediate, 1},
		{nil, "Name", NullIntermediate, -1},
		{(*Person)(nil), "Name", NullIntermediate, -1},
		{o, "Customer.Nope", MissingMember, 1},
		{o, "Customer.age2", MissingMember, 1},
		{o, "Lines[2].Product", IndexOutOfRange, 1},
		{o, "Lines[-1]", IndexOutOfRange, 1},
		{o, "Lines[x]", MissingMember, 1},
		{o, "Meta.missing", MissingMember, 1},
		{o, "Counts[2]", MissingMember, 1},
		{o, "Counts[x]", MissingMember, 1},
		{o, "ID.Value", MissingMember, 1},
		{o, "Customer[0]", MissingMember, 1},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			_, err := Resolve(tc.root, MustParsePath(tc.path))
			require.Error(t, err)

			var rerr *ResolutionError
			require.True(t, errors.As(err, &rerr), "expected *ResolutionError, got %s", dumper.Sdump(err))
			assert.Equal(t, tc.kind, rerr.Kind, err.Error())
			assert.Equal(t, tc.step, rerr.Step, err.Error())
			assert.ErrorIs(t, err, &ResolutionError{Kind: tc.kind})
		})
	}
}

func TestResolveModel(t *testing.T) {
	people := NewList(testEngine, &Person{Name: "Ann"}, &Person{Name: "Bob"})
	root := map[string]interface{}{"people": people}

	v, err := Resolve(root, MustParsePath("people[1].Name"))
	require.NoError(t, err)
	assert.Equal(t, "Bob", v)

	v, err = Resolve(root, MustParsePath("people.Count"))
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = Resolve(root, MustParsePath("people[2]"))
	assert.ErrorIs(t, err, &ResolutionError{Kind: IndexOutOfRange})
}

func TestResolveDoesNotModify(t *testing.T) {
	o := newOrder()
	before := dumper.Sdump(o)
	for _, path := range []string{"Customer.Address.City", "Meta.missing", "Lines[5]", "Counts[9]"} {
		Resolve(o, MustParsePath(path))
	}
	assert.Equal(t, before, dumper.Sdump(o))
}

func TestSetTerminal(t *testing.T) {
	o := newOrder()

	require.NoError(t, setTerminal(o.Customer, pathStep{kind: stepName, name: "name"}, "Eve"))
	assert.Equal(t, "Eve", o.Customer.Name)

	require.NoError(t, setTerminal(o.Customer, pathStep{kind: stepName, name: "Age"}, "40"))
	assert.Equal(t, 40, o.Customer.Age)

	require.NoError(t, setTerminal(o.Customer.Tags, pathStep{kind: stepIndex, index: 0, isInt: true}, "gold"))
	assert.Equal(t, "gold", o.Customer.Tags[0])

	require.NoError(t, setTerminal(o.Counts, pathStep{kind: stepIndex, name: "2"}, "two"))
	assert.Equal(t, "two", o.Counts[2])

	require.NoError(t, setTerminal(o.Meta, pathStep{kind: stepName, name: "source"}, "app"))
	assert.Equal(t, "app", o.Meta["source"])

	err := setTerminal(o.Customer, pathStep{kind: stepName, name: "Age"}, "old")
	var cerr *ConversionError
	require.True(t, errors.As(err, &cerr), "expected *ConversionError, got %v", err)
	assert.Equal(t, 40, o.Customer.Age)

	err = setTerminal(*o.Customer.Address, pathStep{kind: stepName, name: "City"}, "Bergen")
	assert.ErrorIs(t, err, ErrNotWritable)

	err = setTerminal(o.Customer, pathStep{kind: stepName, name: "missing"}, 1)
	assert.ErrorIs(t, err, ErrNotWritable)

	err = setTerminal(o.Customer.Tags, pathStep{kind: stepIndex, index: 9, isInt: true}, "x")
	var oerr *OutOfRangeError
	assert.True(t, errors.As(err, &oerr))
}

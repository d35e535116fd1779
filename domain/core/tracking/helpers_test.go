package tracking

import "time"

type fakeOwner struct {
	new bool
}

func (o *fakeOwner) IsNew() bool { return o.new }

// node wires string collections into base/parent chains for tests
type node struct {
	owner  *fakeOwner
	base   *node
	parent *node
	attrs  *Collection[string]
}

var fixedClock = func() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func stringOptions() Options[string] {
	return Options[string]{
		Equal:   func(a, b string) bool { return a == b },
		IsEmpty: func(v string) bool { return v == "" },
		Clock:   fixedClock,
	}
}

func newNode(isNew bool) *node {
	n := &node{owner: &fakeOwner{new: isNew}}
	opts := stringOptions()
	opts.Lineage = func() (*Collection[string], *Collection[string]) {
		var base, parent *Collection[string]
		if n.base != nil {
			base = n.base.attrs
		}
		if n.parent != nil {
			parent = n.parent.attrs
		}
		return base, parent
	}
	n.attrs = NewCollection[string](n.owner, opts)
	return n
}

func newStrings(isNew bool) *Collection[string] {
	return NewCollection[string](&fakeOwner{new: isNew}, stringOptions())
}

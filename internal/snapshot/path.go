package snapshot

import (
	"strconv"
	"strings"
)

// Segment is one step of a Path: a map key or a list index.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

// Key descends into a map field.
func Key(name string) Segment { return Segment{key: name} }

// At descends into a list element.
func At(i int) Segment { return Segment{index: i, isIndex: true} }

func (s Segment) String() string {
	if s.isIndex {
		return "[" + strconv.Itoa(s.index) + "]"
	}
	return s.key
}

// Path is an ordered descent through nested maps and lists.
type Path []Segment

// P builds a Path.
func P(segments ...Segment) Path { return Path(segments) }

func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		if i > 0 && !s.isIndex {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// Lookup descends p from v. It reports false when v is null, when any
// segment is missing or has the wrong shape, or when the value found is null.
func Lookup(v Value, p Path) (Value, bool) {
	cur := v
	for _, seg := range p {
		if cur.IsNull() {
			return Value{}, false
		}
		var ok bool
		if seg.isIndex {
			cur, ok = cur.Index(seg.index)
		} else {
			cur, ok = cur.Field(seg.key)
		}
		if !ok {
			return Value{}, false
		}
	}
	if cur.IsNull() {
		return Value{}, false
	}
	return cur, true
}

// Extract returns the value at p, or def when Lookup fails. It never panics.
func Extract(v Value, p Path, def Value) Value {
	if found, ok := Lookup(v, p); ok {
		return found
	}
	return def
}

package olap

import (
	"fmt"

	"github.com/dvloznov/billing-olap/internal/snapshot"
)

// Row is one keyed record of a Frame.
type Row map[string]snapshot.Value

// Get returns the named cell, null when absent.
func (r Row) Get(column string) snapshot.Value {
	return r[column]
}

// Frame is an intermediate, column-keyed view over entity records used while
// joining. Columns fixes the output order.
type Frame struct {
	Columns []string
	Rows    []Row
}

// FrameOf projects records onto fields. Missing fields become null; records
// that are not maps yield all-null rows.
func FrameOf(records []snapshot.Value, fields ...string) *Frame {
	f := &Frame{Columns: append([]string(nil), fields...), Rows: make([]Row, 0, len(records))}
	for _, rec := range records {
		row := make(Row, len(fields))
		for _, name := range fields {
			v, ok := rec.Field(name)
			if !ok {
				v = snapshot.Null()
			}
			row[name] = v
		}
		f.Rows = append(f.Rows, row)
	}
	return f
}

// With returns a copy of f with column derived from each row. An existing
// column of the same name is overwritten.
func (f *Frame) With(column string, derive func(Row) snapshot.Value) *Frame {
	out := &Frame{Columns: append([]string(nil), f.Columns...), Rows: make([]Row, len(f.Rows))}
	if !f.hasColumn(column) {
		out.Columns = append(out.Columns, column)
	}
	for i, r := range f.Rows {
		row := make(Row, len(r)+1)
		for k, v := range r {
			row[k] = v
		}
		row[column] = derive(r)
		out.Rows[i] = row
	}
	return out
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Rows)
}

func (f *Frame) hasColumn(name string) bool {
	for _, c := range f.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// JoinKind selects what happens to a left row with no usable right match.
type JoinKind int

const (
	// InnerJoin drops unmatched left rows.
	InnerJoin JoinKind = iota
	// LeftJoin keeps unmatched left rows with nulls in the pulled columns.
	LeftJoin
)

func (k JoinKind) String() string {
	if k == LeftJoin {
		return "left"
	}
	return "inner"
}

// Pull copies column From of the right side into the result as As. An empty
// As keeps the source name.
type Pull struct {
	From string
	As   string
}

func (p Pull) target() string {
	if p.As != "" {
		return p.As
	}
	return p.From
}

// JoinStep describes one enrichment against a right-hand entity frame.
// A right key that matches more than one right row is ambiguous and is
// treated as no match.
type JoinStep struct {
	Name     string
	Right    *Frame
	LeftKey  string
	RightKey string
	Pull     []Pull
	Kind     JoinKind
	// Suffix is appended to a pulled column whose name is already taken.
	Suffix string
}

// StepStats counts what one step did to the rows flowing through it.
type StepStats struct {
	Name      string
	Kind      JoinKind
	Input     int
	Matched   int
	Unmatched int
	Ambiguous int
	Dropped   int
	Output    int
}

// JoinStats summarises a Join run.
type JoinStats struct {
	Input  int
	Output int
	Steps  []StepStats
}

// Dropped returns the number of left rows removed across all steps.
func (s JoinStats) Dropped() int {
	return s.Input - s.Output
}

// Join applies steps to left in order. Left row order is preserved and each
// left row appears at most once in the result. An error is returned only for
// a misconfigured step.
func Join(left *Frame, steps ...JoinStep) (*Frame, JoinStats, error) {
	stats := JoinStats{Input: left.Len()}
	cur := &Frame{Columns: append([]string(nil), left.Columns...), Rows: left.Rows}

	for _, step := range steps {
		next, st, err := joinStep(cur, step)
		if err != nil {
			return nil, stats, err
		}
		stats.Steps = append(stats.Steps, st)
		cur = next
	}

	stats.Output = cur.Len()
	return cur, stats, nil
}

func joinStep(left *Frame, step JoinStep) (*Frame, StepStats, error) {
	st := StepStats{Name: step.Name, Kind: step.Kind, Input: left.Len()}

	if step.Right == nil {
		return nil, st, fmt.Errorf("join %s: right frame is nil", step.Name)
	}
	if !left.hasColumn(step.LeftKey) {
		return nil, st, fmt.Errorf("join %s: left key %q not present", step.Name, step.LeftKey)
	}
	if !step.Right.hasColumn(step.RightKey) {
		return nil, st, fmt.Errorf("join %s: right key %q not present", step.Name, step.RightKey)
	}

	columns := append([]string(nil), left.Columns...)
	taken := make(map[string]bool, len(columns)+len(step.Pull))
	for _, c := range columns {
		taken[c] = true
	}
	targets := make([]string, len(step.Pull))
	for i, p := range step.Pull {
		if !step.Right.hasColumn(p.From) {
			return nil, st, fmt.Errorf("join %s: right column %q not present", step.Name, p.From)
		}
		name := p.target()
		if taken[name] {
			name += step.Suffix
		}
		if taken[name] {
			return nil, st, fmt.Errorf("join %s: column %q already exists", step.Name, name)
		}
		taken[name] = true
		targets[i] = name
		columns = append(columns, name)
	}

	index := make(map[string][]int, step.Right.Len())
	for i, r := range step.Right.Rows {
		if key, ok := r.Get(step.RightKey).Key(); ok {
			index[key] = append(index[key], i)
		}
	}

	out := &Frame{Columns: columns, Rows: make([]Row, 0, left.Len())}
	for _, lr := range left.Rows {
		var match Row
		if key, ok := lr.Get(step.LeftKey).Key(); ok {
			switch hits := index[key]; len(hits) {
			case 0:
			case 1:
				match = step.Right.Rows[hits[0]]
			default:
				st.Ambiguous++
			}
		}

		if match == nil {
			st.Unmatched++
			if step.Kind == InnerJoin {
				st.Dropped++
				continue
			}
		} else {
			st.Matched++
		}

		row := make(Row, len(columns))
		for k, v := range lr {
			row[k] = v
		}
		for i, p := range step.Pull {
			if match == nil {
				row[targets[i]] = snapshot.Null()
				continue
			}
			row[targets[i]] = match.Get(p.From)
		}
		out.Rows = append(out.Rows, row)
	}

	st.Output = out.Len()
	return out, st, nil
}

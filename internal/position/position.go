// Package position computes renumbering plans for ordered siblings.
//
// Siblings inside one container (lists in a board, cards in a list) carry a
// dense 1-based position. Every function here is pure: it takes positions the
// caller already read and returns the shifts that keep the sequence gapless.
// Applying a plan is the repository's job and bounds checking is the caller's.
package position

// Unbounded marks a shift range with no upper limit.
const Unbounded = 0

// Shift adds Delta to every sibling in Scope whose position is in [From, To].
// A To of Unbounded means "From and everything after it".
type Shift struct {
	Scope string
	From  int
	To    int
	Delta int
}

// Contains reports whether pos falls inside the shift range.
func (s Shift) Contains(pos int) bool {
	if pos < s.From {
		return false
	}
	return s.To == Unbounded || pos <= s.To
}

// Apply returns pos after the shift.
func (s Shift) Apply(pos int) int {
	if s.Contains(pos) {
		return pos + s.Delta
	}
	return pos
}

// Plan is the full renumbering for one operation: the sibling shifts plus the
// slot the affected item ends up in.
type Plan struct {
	Scope  string
	Target int
	Shifts []Shift
	NoOp   bool
}

// ShiftsFor returns the shifts that touch scope, in plan order.
func (p Plan) ShiftsFor(scope string) []Shift {
	var out []Shift
	for _, shift := range p.Shifts {
		if shift.Scope == scope {
			out = append(out, shift)
		}
	}
	return out
}

// Append returns the slot after the current maximum.
func Append(max int) int {
	if max < 0 {
		max = 0
	}
	return max + 1
}

// Insert plans the creation of a new item in scope. Without a requested
// position the item is appended. A request past the end is also an append.
// A request inside the sequence takes that slot and pushes the rest back by
// one, so the sequence stays dense; this shift is the defined behaviour for
// explicit positions, not an append variant.
func Insert(scope string, max int, requested *int) Plan {
	target := Append(max)
	if requested == nil || *requested >= target {
		return Plan{Scope: scope, Target: target}
	}
	slot := *requested
	if slot < 1 {
		slot = 1
	}
	return Plan{
		Scope:  scope,
		Target: slot,
		Shifts: []Shift{{Scope: scope, From: slot, To: Unbounded, Delta: 1}},
	}
}

// Move plans a reorder inside a single container. Exactly one slot is vacated
// and one filled; siblings between the two slide over by one.
func Move(scope string, oldPos, newPos int) Plan {
	switch {
	case newPos == oldPos:
		return Plan{Scope: scope, Target: oldPos, NoOp: true}
	case newPos > oldPos:
		return Plan{
			Scope:  scope,
			Target: newPos,
			Shifts: []Shift{{Scope: scope, From: oldPos + 1, To: newPos, Delta: -1}},
		}
	default:
		return Plan{
			Scope:  scope,
			Target: newPos,
			Shifts: []Shift{{Scope: scope, From: newPos, To: oldPos - 1, Delta: 1}},
		}
	}
}

// CrossMove plans relocating an item from one container to another: the gap
// in the source is closed and room is made in the destination. When both
// scopes are the same it degrades to Move.
func CrossMove(fromScope string, oldPos int, toScope string, newPos int) Plan {
	if fromScope == toScope {
		return Move(fromScope, oldPos, newPos)
	}
	return Plan{
		Scope:  toScope,
		Target: newPos,
		Shifts: []Shift{
			{Scope: fromScope, From: oldPos + 1, To: Unbounded, Delta: -1},
			{Scope: toScope, From: newPos, To: Unbounded, Delta: 1},
		},
	}
}

// Remove plans deleting the item at oldPos. Its slot is not reused.
func Remove(scope string, oldPos int) Plan {
	return Plan{
		Scope:  scope,
		Shifts: []Shift{{Scope: scope, From: oldPos + 1, To: Unbounded, Delta: -1}},
	}
}

// Clamp bounds requested to [1, max]. A max below 1 yields 1.
func Clamp(requested, max int) int {
	if max < 1 {
		return 1
	}
	if requested < 1 {
		return 1
	}
	if requested > max {
		return max
	}
	return requested
}

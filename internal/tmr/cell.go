// internal/tmr/cell.go
package tmr

// Replicas is the fixed redundancy width of a Cell.
const Replicas = 3

// Cell holds three copies of a value and reads them by 2-of-3 vote.
//
// Cell never repairs itself. Vote and Validate are read-only; rewriting
// the replicas is the caller's job (see the safety kernel's scrub).
// The zero Cell holds three zero values and is valid.
type Cell[T comparable] struct {
	value [Replicas]T
}

// NewCell returns a cell with all replicas set to v.
func NewCell[T comparable](v T) *Cell[T] {
	c := &Cell[T]{}
	c.Write(v)
	return c
}

// Write sets all three replicas.
func (c *Cell[T]) Write(v T) {
	c.value[0] = v
	c.value[1] = v
	c.value[2] = v
}

// Vote returns the majority value.
// When all three replicas disagree it returns replica 1 without signalling.
func (c *Cell[T]) Vote() T {
	if c.value[0] == c.value[1] {
		return c.value[0]
	}
	if c.value[0] == c.value[2] {
		return c.value[0]
	}
	return c.value[1]
}

// Validate reports whether at least one pair of replicas agrees.
func (c *Cell[T]) Validate() bool {
	return c.value[0] == c.value[1] ||
		c.value[1] == c.value[2] ||
		c.value[0] == c.value[2]
}

// Repair rewrites all replicas with the voted value and returns it.
func (c *Cell[T]) Repair() T {
	v := c.Vote()
	c.Write(v)
	return v
}

// ---- fault injection ----

// Replica returns replica i. Out-of-range indexes return the zero value.
func (c *Cell[T]) Replica(i int) T {
	var zero T
	if i < 0 || i >= Replicas {
		return zero
	}
	return c.value[i]
}

// SetReplica overwrites replica i only, simulating a memory upset.
func (c *Cell[T]) SetReplica(i int, v T) {
	if i < 0 || i >= Replicas {
		return
	}
	c.value[i] = v
}

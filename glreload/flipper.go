package glreload

// Flipper holds two resources alternating between read and write roles,
// as used for progressive accumulation across frames.
type Flipper[T any] struct {
	bufs [2]T
	read int
}

// NewFlipper returns a Flipper reading from a and writing to b.
func NewFlipper[T any](a, b T) *Flipper[T] {
	return &Flipper[T]{bufs: [2]T{a, b}}
}

// Read returns the resource holding the previous frame.
func (f *Flipper[T]) Read() T { return f.bufs[f.read] }

// Write returns the resource the current frame is written to.
func (f *Flipper[T]) Write() T { return f.bufs[1-f.read] }

// Flip swaps the roles of the two resources.
func (f *Flipper[T]) Flip() { f.read = 1 - f.read }

// Both returns both resources in construction order.
func (f *Flipper[T]) Both() (a, b T) { return f.bufs[0], f.bufs[1] }

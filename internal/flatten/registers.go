package flatten

// Registers is a capped allocator over a prototype's stack-slot space. The
// first n slots (n = the prototype's parameter count, set via Bias) are an
// untouched parameter window; slot n is reserved for the state register;
// every original (pre-flattening) register reference is shifted up by
// n+1, so it lands strictly above the state slot instead of on top of it.
// ReserveWindow then reserves that shifted window itself, so any register
// Allocate hands out afterwards (scratch registers a block rewrite needs)
// lands above every remapped original register too.
type Registers struct {
	capacity int
	shift    int
	next     int
}

// NewRegisters builds an allocator over a stack of the given capacity
// (this VM generation's max_stack_size, 250).
func NewRegisters(capacity int) *Registers {
	return &Registers{capacity: capacity}
}

// Bias reserves the first n registers as the untouched parameter window
// and sets the shift Get applies to n+1, leaving slot n free for the state
// register. Must be called before any Allocate or Get.
func (r *Registers) Bias(n int) {
	r.shift = n + 1
	r.next = n
}

// Get maps an original (pre-flattening) register index to its
// post-reservation index, strictly above the state register.
func (r *Registers) Get(orig int) (int, error) {
	v := orig + r.shift
	if v >= r.capacity {
		return 0, errRegisterExhausted()
	}
	return v, nil
}

// Allocate returns the next unused register: the state register first,
// then (once ReserveWindow has run) fresh scratch registers above the
// shifted window of remapped original registers.
func (r *Registers) Allocate() (int, error) {
	if r.next >= r.capacity {
		return 0, errRegisterExhausted()
	}
	v := r.next
	r.next++
	return v, nil
}

// ReserveWindow reserves the block of registers that Get's shifted
// original-register references occupy, [shift, shift+size), so that any
// Allocate call made afterwards returns a register above that window
// instead of colliding with a remapped original register. size should be
// the source prototype's original MaxStackSize.
func (r *Registers) ReserveWindow(size int) {
	end := r.shift + size
	if end > r.next {
		r.next = end
	}
}

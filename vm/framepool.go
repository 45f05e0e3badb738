package vm

// DefaultFrameCapacity is the frame pool's fixed capacity (spec §5,
// default 1024); exceeding it is a fatal FramePoolExhausted error, not
// undefined behavior.
const DefaultFrameCapacity = 1024

// FramePool is a fixed-capacity set of activation records rented and
// returned by stack discipline: calls and returns always nest, so the
// free list is a plain LIFO stack and Rent/Return are O(1) pointer bumps
// (spec §4.3, §9 "Frame pool exhaustion and stack overflow").
type FramePool struct {
	all  []*Frame
	free []*Frame
}

// NewFramePool preallocates capacity Frames once, up front.
func NewFramePool(capacity int) *FramePool {
	all := make([]*Frame, capacity)
	free := make([]*Frame, capacity)
	for i := range all {
		all[i] = &Frame{}
		free[i] = all[i]
	}
	return &FramePool{all: all, free: free}
}

// Rent returns a fresh Frame and true, or (nil, false) if the pool is
// exhausted.
func (p *FramePool) Rent() (*Frame, bool) {
	n := len(p.free)
	if n == 0 {
		return nil, false
	}
	f := p.free[n-1]
	p.free = p.free[:n-1]
	f.reset()
	return f, true
}

// Return releases f back to the pool.
func (p *FramePool) Return(f *Frame) {
	p.free = append(p.free, f)
}

// InUse reports how many frames are currently rented, for diagnostics.
func (p *FramePool) InUse() int { return len(p.all) - len(p.free) }

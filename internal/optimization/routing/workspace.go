package routing

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/verdant/internal/optimization"
)

// Workspace holds the buffers one optimization call works in: a copy of the
// nodes, the current and candidate tours, and the pairwise distance matrix.
type Workspace struct {
	nodes     []Node
	tour      []int
	candidate []int
	dist      *mat.SymDense
}

// size prepares the workspace for n nodes, reusing backing storage where it
// is large enough.
func (w *Workspace) size(n int) {
	if cap(w.nodes) < n {
		w.nodes = make([]Node, n)
		w.tour = make([]int, n)
		w.candidate = make([]int, n)
	}
	w.nodes = w.nodes[:n]
	w.tour = w.tour[:n]
	w.candidate = w.candidate[:n]

	if w.dist == nil {
		w.dist = &mat.SymDense{}
	}
	w.dist.Reset()
	w.dist.ReuseAsSym(n)
}

// Pool hands out a bounded number of workspaces. Released workspaces are kept
// for reuse.
type Pool struct {
	mu       sync.Mutex
	capacity int
	inUse    int
	spare    []*Workspace
}

// NewPool creates a pool that allows at most capacity workspaces to be in use
// at once. A capacity below 1 is treated as 1.
func NewPool(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		capacity: capacity,
		spare:    make([]*Workspace, 0, capacity),
	}
}

// Acquire returns a workspace sized for n nodes. It fails with an error
// wrapping optimization.ErrResourceExhausted when every workspace is in use
// or n is not a usable size.
func (p *Pool) Acquire(n int) (*Workspace, error) {
	if n < 1 || n > MaxStops {
		return nil, optimization.WrapError(optimization.ErrResourceExhausted,
			fmt.Sprintf("cannot size workspace for %d nodes", n)).
			WithComponent("routing").WithOperation("acquire")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inUse >= p.capacity {
		return nil, optimization.WrapError(optimization.ErrResourceExhausted,
			fmt.Sprintf("%d of %d workspaces in use", p.inUse, p.capacity)).
			WithComponent("routing").WithOperation("acquire")
	}

	var w *Workspace
	if len(p.spare) > 0 {
		w = p.spare[len(p.spare)-1]
		p.spare = p.spare[:len(p.spare)-1]
	} else {
		w = &Workspace{}
	}
	w.size(n)
	p.inUse++
	return w, nil
}

// Release returns a workspace to the pool. Releasing nil is a no-op.
func (p *Pool) Release(w *Workspace) {
	if w == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inUse > 0 {
		p.inUse--
	}
	p.spare = append(p.spare, w)
}

// InUse returns the number of workspaces currently handed out.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Capacity returns the maximum number of workspaces in use at once.
func (p *Pool) Capacity() int {
	return p.capacity
}

package seat

import "sort"

const (
	initialDeviceID = 2
	deviceIDBatch   = 10
)

// idPool hands out small device ids, lowest released id first
type idPool struct {
	free []int
	next int
}

func newIDPool() *idPool {
	return &idPool{next: initialDeviceID}
}

func (p *idPool) acquire() int {
	if len(p.free) == 0 {
		for i := 0; i < deviceIDBatch; i++ {
			p.free = append(p.free, p.next)
			p.next++
		}
	}
	id := p.free[0]
	p.free = p.free[1:]
	return id
}

func (p *idPool) release(id int) {
	i := sort.SearchInts(p.free, id)
	p.free = append(p.free, 0)
	copy(p.free[i+1:], p.free[i:])
	p.free[i] = id
}

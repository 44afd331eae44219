package renderopt

// Disposable is a resource that can be released for good.
type Disposable interface {
	Dispose()
}

// PoolObserver receives pool events, for metrics export.
type PoolObserver interface {
	PoolHit(tag string)
	PoolMiss(tag string)
	PoolDisposed(tag string)
}

// PoolStats counts pool traffic for one tag.
type PoolStats struct {
	Hits     int
	Misses   int
	Disposed int
}

// Pool keeps free lists of released resources keyed by tag. Each list holds at
// most maxSize items; releases beyond that are disposed immediately.
type Pool[T Disposable] struct {
	maxSize  int
	free     map[string][]T
	stats    map[string]*PoolStats
	observer PoolObserver
}

// NewPool creates a pool. A nil observer is allowed.
func NewPool[T Disposable](maxSize int, observer PoolObserver) *Pool[T] {
	if maxSize < 0 {
		maxSize = 0
	}
	return &Pool[T]{
		maxSize:  maxSize,
		free:     make(map[string][]T),
		stats:    make(map[string]*PoolStats),
		observer: observer,
	}
}

func (p *Pool[T]) statsFor(tag string) *PoolStats {
	s, ok := p.stats[tag]
	if !ok {
		s = &PoolStats{}
		p.stats[tag] = s
	}
	return s
}

// Get pops a pooled item for tag. ok is false on a miss.
func (p *Pool[T]) Get(tag string) (item T, ok bool) {
	list := p.free[tag]
	s := p.statsFor(tag)
	if len(list) == 0 {
		s.Misses++
		if p.observer != nil {
			p.observer.PoolMiss(tag)
		}
		return item, false
	}
	item = list[len(list)-1]
	var zero T
	list[len(list)-1] = zero
	p.free[tag] = list[:len(list)-1]
	s.Hits++
	if p.observer != nil {
		p.observer.PoolHit(tag)
	}
	return item, true
}

// Put returns item to the pool, disposing it when the tag's list is full.
// It reports whether the item was retained.
func (p *Pool[T]) Put(tag string, item T) bool {
	if len(p.free[tag]) >= p.maxSize {
		item.Dispose()
		p.statsFor(tag).Disposed++
		if p.observer != nil {
			p.observer.PoolDisposed(tag)
		}
		return false
	}
	p.free[tag] = append(p.free[tag], item)
	return true
}

// Len returns the number of pooled items for tag.
func (p *Pool[T]) Len(tag string) int { return len(p.free[tag]) }

// Stats returns the counters for tag.
func (p *Pool[T]) Stats(tag string) PoolStats {
	if s, ok := p.stats[tag]; ok {
		return *s
	}
	return PoolStats{}
}

// Clear disposes every pooled item.
func (p *Pool[T]) Clear() {
	for tag, list := range p.free {
		for _, item := range list {
			item.Dispose()
		}
		delete(p.free, tag)
	}
}

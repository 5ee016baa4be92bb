package capability

import (
	"errors"
	"io"
	"sync"
)

var errPoolClosed = errors.New("client pool closed")

// clientPool keeps up to cap(idle) idle clients for reuse. Clients beyond that
// are closed when returned, and close releases every idle client.
type clientPool[T io.Closer] struct {
	newFn func() T

	mu     sync.Mutex
	idle   chan T
	closed bool
}

func newClientPool[T io.Closer](size int, newFn func() T) *clientPool[T] {
	if size < 1 {
		size = 1
	}
	return &clientPool[T]{newFn: newFn, idle: make(chan T, size)}
}

func (p *clientPool[T]) get() (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var zero T
	if p.closed {
		return zero, errPoolClosed
	}
	select {
	case c := <-p.idle:
		return c, nil
	default:
		return p.newFn(), nil
	}
}

func (p *clientPool[T]) put(c T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		select {
		case p.idle <- c:
			return
		default:
		}
	}
	_ = c.Close()
}

func (p *clientPool[T]) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for {
		select {
		case c := <-p.idle:
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		default:
			return errors.Join(errs...)
		}
	}
}

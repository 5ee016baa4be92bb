// Package mempool recycles the float32 buffers of inference tensors.
package mempool

import "sync"

// classStep is the granularity of size classes in elements.
const classStep = 4096

var pools sync.Map // size class -> *sync.Pool of *[]float32

func sizeClass(n int) int {
	if n <= classStep {
		return classStep
	}
	return (n + classStep - 1) / classStep * classStep
}

func poolFor(class int) *sync.Pool {
	if p, ok := pools.Load(class); ok {
		return p.(*sync.Pool)
	}
	p, _ := pools.LoadOrStore(class, &sync.Pool{New: func() any {
		buf := make([]float32, class)
		return &buf
	}})
	return p.(*sync.Pool)
}

// GetFloat32 returns a buffer of length n. Its contents are undefined.
// Return it with PutFloat32 once nothing references it.
func GetFloat32(n int) []float32 {
	if n < 0 {
		n = 0
	}
	bp := poolFor(sizeClass(n)).Get().(*[]float32)
	return (*bp)[:n]
}

// PutFloat32 hands a buffer from GetFloat32 back. Buffers of foreign
// capacity and nil are ignored.
func PutFloat32(buf []float32) {
	c := cap(buf)
	if c == 0 || c%classStep != 0 {
		return
	}
	buf = buf[:c]
	poolFor(c).Put(&buf)
}

package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		input, expected int
	}{
		{-1, classStep},
		{0, classStep},
		{1, classStep},
		{classStep, classStep},
		{classStep + 1, 2 * classStep},
		{3 * 640 * 640, 3 * 640 * 640},
		{3*640*640 + 1, 3*640*640 + classStep},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, sizeClass(tt.input), "sizeClass(%d)", tt.input)
	}
}

func TestGetFloat32_LengthAndCapacity(t *testing.T) {
	for _, n := range []int{0, 1, 100, classStep, 3 * 320 * 320} {
		buf := GetFloat32(n)
		assert.Len(t, buf, n)
		assert.Equal(t, sizeClass(n), cap(buf))
		PutFloat32(buf)
	}
	assert.Empty(t, GetFloat32(-5))
}

func TestPutFloat32_IgnoresForeignBuffers(t *testing.T) {
	assert.NotPanics(t, func() {
		PutFloat32(nil)
		PutFloat32(make([]float32, 10))
	})
}

func TestPool_ConcurrentUse(t *testing.T) {
	const workers, rounds, size = 8, 50, 3 * 64 * 64

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(id float32) {
			defer wg.Done()
			for range rounds {
				buf := GetFloat32(size)
				for i := range buf {
					buf[i] = id
				}
				for _, v := range buf {
					if v != id {
						t.Errorf("buffer shared between goroutines")
						return
					}
				}
				PutFloat32(buf)
			}
		}(float32(w))
	}
	wg.Wait()
	require.False(t, t.Failed())
}

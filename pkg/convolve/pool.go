package convolve

import "sync"

// Scratch buffers are pooled per working type. A pooled buffer that turns
// out too small is dropped and a fresh one allocated.
var scratchPools [2]sync.Pool

func scratchPool[W Float]() *sync.Pool {
	var zero W
	if _, ok := any(zero).(float32); ok {
		return &scratchPools[0]
	}
	return &scratchPools[1]
}

// getScratch returns a buffer of exactly n elements. Contents are undefined.
func getScratch[W Float](n int) []W {
	if b, ok := scratchPool[W]().Get().(*[]W); ok && cap(*b) >= n {
		return (*b)[:n]
	}
	return make([]W, n)
}

// putScratch hands buf back for reuse.
func putScratch[W Float](buf []W) {
	buf = buf[:cap(buf)]
	scratchPool[W]().Put(&buf)
}

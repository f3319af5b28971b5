// Package convolve implements the separable 2-D correlation used to compute
// windowed means. A horizontal pass filters every row into a scratch buffer
// and a vertical pass combines rows of that buffer into the destination,
// costing O(len(kx)+len(ky)) per sample instead of O(len(kx)*len(ky)).
package convolve

import (
	"fmt"
	"image"
	"runtime"
	"strings"
	"sync"
)

// Float is the set of working types the passes accumulate in.
type Float interface {
	float32 | float64
}

// Border selects how samples outside the image are synthesised.
type Border int

const (
	// BorderReflect101 mirrors around the edge sample without repeating it:
	// gfedcb|abcdefgh|gfedcba.
	BorderReflect101 Border = iota
	// BorderReflect mirrors including the edge sample: fedcba|abcdefgh|hgfedcb.
	BorderReflect
	// BorderReplicate repeats the edge sample: aaaaaa|abcdefgh|hhhhhhh.
	BorderReplicate
)

// String returns the configuration name of the border policy.
func (b Border) String() string {
	switch b {
	case BorderReflect101:
		return "reflect101"
	case BorderReflect:
		return "reflect"
	case BorderReplicate:
		return "replicate"
	}
	return fmt.Sprintf("Border(%d)", int(b))
}

// ParseBorder maps a configuration name to a Border. The empty string
// selects the default, BorderReflect101.
func ParseBorder(s string) (Border, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reflect101", "reflect_101", "default":
		return BorderReflect101, nil
	case "reflect":
		return BorderReflect, nil
	case "replicate", "clamp":
		return BorderReplicate, nil
	}
	return 0, fmt.Errorf("unknown border policy %q", s)
}

// index maps a possibly out of range coordinate p onto [0, n).
func (b Border) index(p, n int) int {
	if p >= 0 && p < n {
		return p
	}
	if n == 1 {
		return 0
	}
	switch b {
	case BorderReplicate:
		if p < 0 {
			return 0
		}
		return n - 1
	case BorderReflect:
		for p < 0 || p >= n {
			if p < 0 {
				p = -p - 1
			} else {
				p = 2*n - 1 - p
			}
		}
		return p
	default:
		for p < 0 || p >= n {
			if p < 0 {
				p = -p
			} else {
				p = 2*n - 2 - p
			}
		}
		return p
	}
}

// Options tune a SepFilter2D call. The zero value uses BorderReflect101
// and one worker per CPU.
type Options struct {
	Border Border

	// Workers bounds the goroutines splitting rows. <= 0 means NumCPU.
	Workers int
}

func (o Options) workers(rows int) int {
	n := o.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > rows {
		n = rows
	}
	if n < 1 {
		n = 1
	}
	return n
}

// SepFilter2D correlates src with the separable kernel (kx along x, ky
// along y) and writes the result to dst:
//
//	dst(x,y,c) = Σ_j Σ_i ky[j]·kx[i]·src(x+i-anchor.X, y+j-anchor.Y, c)
//
// src and dst are row-major, channel-interleaved buffers of
// width*height*channels samples and may be the same slice. Channels are
// filtered independently.
func SepFilter2D[W Float](dst, src []W, width, height, channels int, kx, ky []W, anchor image.Point, opts Options) error {
	if width <= 0 || height <= 0 || channels <= 0 {
		return fmt.Errorf("invalid dimensions %dx%dx%d", width, height, channels)
	}
	n := width * height * channels
	if len(src) != n || len(dst) != n {
		return fmt.Errorf("buffer length mismatch: src %d, dst %d, want %d", len(src), len(dst), n)
	}
	if len(kx) == 0 || len(ky) == 0 {
		return fmt.Errorf("empty kernel")
	}
	if anchor.X < 0 || anchor.X >= len(kx) || anchor.Y < 0 || anchor.Y >= len(ky) {
		return fmt.Errorf("anchor %v outside kernel of size %dx%d", anchor, len(kx), len(ky))
	}

	tmp := getScratch[W](n)
	defer putScratch(tmp)

	workers := opts.workers(height)
	parallelRows(height, workers, func(start, end int) {
		rowPass(tmp, src, width, channels, kx, anchor.X, opts.Border, start, end)
	})
	parallelRows(height, workers, func(start, end int) {
		columnPass(dst, tmp, width, height, channels, ky, anchor.Y, opts.Border, start, end)
	})
	return nil
}

// parallelRows splits [0, rows) into contiguous chunks, one per worker.
func parallelRows(rows, workers int, fn func(start, end int)) {
	if workers <= 1 {
		fn(0, rows)
		return
	}

	var wg sync.WaitGroup
	rowsPerWorker := (rows + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * rowsPerWorker
		end := start + rowsPerWorker
		if end > rows {
			end = rows
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
}

// rowPass filters rows [start, end) of src along x into tmp. Each row is
// first copied into a padded buffer so the inner loop needs no bounds logic.
func rowPass[W Float](tmp, src []W, width, channels int, kx []W, ax int, border Border, start, end int) {
	pad := len(kx) - 1
	rowLen := width * channels
	padded := getScratch[W]((width + pad) * channels)
	defer putScratch(padded)

	for y := start; y < end; y++ {
		row := src[y*rowLen : (y+1)*rowLen]
		for p := 0; p < width+pad; p++ {
			sx := border.index(p-ax, width)
			copy(padded[p*channels:(p+1)*channels], row[sx*channels:(sx+1)*channels])
		}

		out := tmp[y*rowLen : (y+1)*rowLen]
		for x := 0; x < width; x++ {
			for c := 0; c < channels; c++ {
				var acc W
				base := x*channels + c
				for i, k := range kx {
					acc += k * padded[base+i*channels]
				}
				out[x*channels+c] = acc
			}
		}
	}
}

// columnPass combines rows of tmp along y into dst rows [start, end).
func columnPass[W Float](dst, tmp []W, width, height, channels int, ky []W, ay int, border Border, start, end int) {
	rowLen := width * channels
	for y := start; y < end; y++ {
		out := dst[y*rowLen : (y+1)*rowLen]
		for i := range out {
			out[i] = 0
		}
		for j, k := range ky {
			sy := border.index(y+j-ay, height)
			in := tmp[sy*rowLen : (sy+1)*rowLen]
			for i, v := range in {
				out[i] += k * v
			}
		}
	}
}

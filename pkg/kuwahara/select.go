package kuwahara

import (
	"kuwahara/pkg/convolve"
	"kuwahara/pkg/grid"
)

// compose picks the minimum variance quadrant at every pixel and copies its
// mean into out for all channels. Ties go to the lowest quadrant index.
// sel receives the winning index per pixel.
func compose[T grid.Pixel, W convolve.Float](s *statMaps[W], out []T, sel []uint8, channels int) {
	cast := grid.Caster[T]()
	for p := range sel {
		best := 0
		bestVar := s.variance[0][p]
		for k := 1; k < len(s.variance); k++ {
			if v := s.variance[k][p]; v < bestVar {
				best, bestVar = k, v
			}
		}
		sel[p] = uint8(best)

		base := p * channels
		for c, m := range s.mean[best][base : base+channels] {
			out[base+c] = cast(float64(m))
		}
	}
}

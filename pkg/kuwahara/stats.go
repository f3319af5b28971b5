package kuwahara

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"kuwahara/pkg/convolve"
	"kuwahara/pkg/kernel"
)

// statMaps holds per quadrant windowed statistics. mean has the full
// channel depth of the image; variance is computed on the measurement
// channel only.
type statMaps[W convolve.Float] struct {
	mean     [4][]W
	variance [4][]W
}

// computeStats runs the four quadrant jobs concurrently. meas is nil when
// the single channel image is its own measurement channel.
func computeStats[W convolve.Float](ctx context.Context, src, meas []W, width, height, channels int, set kernel.QuadrantSet, opts Options) (*statMaps[W], error) {
	if meas == nil && channels != 1 {
		return nil, fmt.Errorf("%w: %d-channel image needs a measurement channel", ErrInvalidArgument, channels)
	}

	plane := meas
	if plane == nil {
		plane = src
	}
	squares := make([]W, len(plane))
	for i, v := range plane {
		squares[i] = v * v
	}

	copts := convolve.Options{Border: opts.Border, Workers: opts.Workers}
	stats := &statMaps[W]{}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(quadrantWorkers(opts.Workers))
	for k := range set {
		q := set[k]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			kx, ky := widen[W](q.KX), widen[W](q.KY)

			mean := make([]W, len(src))
			if err := convolve.SepFilter2D(mean, src, width, height, channels, kx, ky, q.Shift, copts); err != nil {
				return fmt.Errorf("quadrant %d mean: %w", k, err)
			}

			planeMean := mean
			if meas != nil {
				planeMean = make([]W, len(meas))
				if err := convolve.SepFilter2D(planeMean, meas, width, height, 1, kx, ky, q.Shift, copts); err != nil {
					return fmt.Errorf("quadrant %d measurement mean: %w", k, err)
				}
			}

			// E[x²] - E[x]², left unclamped. Rounding can make flat regions
			// slightly negative, which only matters for exact ties.
			variance := make([]W, len(squares))
			if err := convolve.SepFilter2D(variance, squares, width, height, 1, kx, ky, q.Shift, copts); err != nil {
				return fmt.Errorf("quadrant %d mean of squares: %w", k, err)
			}
			for i, m := range planeMean {
				variance[i] -= m * m
			}

			stats.mean[k] = mean
			stats.variance[k] = variance
			Logger().Debug("kuwahara: quadrant statistics ready", "quadrant", q.Position, "index", k)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// quadrantWorkers bounds the number of quadrant jobs in flight.
func quadrantWorkers(workers int) int {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(kernel.QuadrantSet{}) {
		workers = len(kernel.QuadrantSet{})
	}
	return workers
}

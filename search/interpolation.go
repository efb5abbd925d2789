package search

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/0xmhha/creation-finder/internal/logger"
)

// Interpolation finds the same block as Binary but steers early probes toward estimate.
//
// Each probe is a weighted mean of the binary midpoint and the estimate. The weight on the
// estimate is fraction^bias, where fraction is the share of the original window that is
// still unresolved. The first probe lands on the estimate when it lies in the window, and
// later probes slide to the midpoint as the window narrows. bias < 1 keeps trusting the estimate for longer,
// bias > 1 hands over to bisection sooner. Once the estimate lies outside the window it has
// been refuted and the remaining probes are plain bisection.
//
// The weighted mean is floored and then clamped into [low, high-1], so every probe shrinks
// the window and the result is correct for any estimate and bias; only the cost varies.
func Interpolation(ctx context.Context, pred Predicate, low, high, estimate uint64, bias float64) (Result, error) {
	log := logger.FromContext(ctx)

	// normalization constant for the whole run
	span := float64(high - low)
	target := float64(estimate)

	var calls int
	for low < high {
		fraction := float64(high-low) / span
		weight := estimateWeight(fraction, bias)
		if estimate < low || estimate >= high {
			weight = 0
		}
		middle := low + (high-low)/2
		guess := weightedGuess(low, high, middle, target, weight)

		found, err := pred(ctx, guess)
		if err != nil {
			return Result{}, err
		}
		calls++

		log.Debug("interpolation probe",
			zap.Uint64("low", low),
			zap.Uint64("middle", middle),
			zap.Uint64("guess", guess),
			zap.Uint64("high", high),
			zap.Float64("fraction", fraction),
			zap.Float64("weight", weight),
			zap.Bool("found", found))

		if found {
			high = guess
		} else {
			low = guess + 1
		}
	}

	return Result{Block: high, Calls: calls}, nil
}

// InterpolationSearch locates the creation block of the oracle's address, starting
// from an estimated creation block.
func InterpolationSearch(ctx context.Context, oracle *Oracle, bounds Bounds, estimate uint64, bias float64) (Result, error) {
	latest, err := oracle.LatestBlock(ctx)
	if err != nil {
		return Result{}, err
	}

	low, high := bounds.Range(latest)
	return Interpolation(ctx, oracle.ExistsAt, low, high, estimate, bias)
}

// estimateWeight returns fraction^bias limited to [0, 1]. Non-finite results fall back
// to pure bisection.
func estimateWeight(fraction, bias float64) float64 {
	w := math.Pow(fraction, bias)
	switch {
	case math.IsNaN(w):
		return 0
	case w > 1:
		return 1
	case w < 0:
		return 0
	}
	return w
}

// weightedGuess floors the weighted mean of middle and target and clamps it into
// [low, high-1]. Requires low < high.
func weightedGuess(low, high, middle uint64, target, weight float64) uint64 {
	g := math.Floor((1-weight)*float64(middle) + weight*target)

	if g <= float64(low) {
		return low
	}
	if g >= float64(high-1) {
		return high - 1
	}
	return uint64(g)
}

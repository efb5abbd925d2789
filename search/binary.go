package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/0xmhha/creation-finder/internal/logger"
)

// Result is the outcome of one search run
type Result struct {
	// Block is the first block at which the predicate holds
	Block uint64
	// Calls is the number of predicate evaluations performed
	Calls int
}

// Binary finds the smallest block in [low, high) at which pred holds, or high when it
// holds nowhere in the window. The predicate is assumed to hold at high.
//
// Invariant: pred(low-1) is false and pred(high) is true for the already excluded
// part of the domain. At most ceil(log2(high-low+1)) evaluations are performed.
func Binary(ctx context.Context, pred Predicate, low, high uint64) (Result, error) {
	log := logger.FromContext(ctx)

	var calls int
	for low < high {
		middle := low + (high-low)/2 // floor((low+high)/2) without overflow

		found, err := pred(ctx, middle)
		if err != nil {
			return Result{}, err
		}
		calls++

		log.Debug("binary probe",
			zap.Uint64("low", low),
			zap.Uint64("middle", middle),
			zap.Uint64("high", high),
			zap.Bool("found", found))

		if found {
			// created at middle or earlier
			high = middle
		} else {
			// no code yet, creation is strictly after middle
			low = middle + 1
		}
	}

	return Result{Block: high, Calls: calls}, nil
}

// BinarySearch locates the creation block of the oracle's address with classic
// bisection inside bounds.
func BinarySearch(ctx context.Context, oracle *Oracle, bounds Bounds) (Result, error) {
	latest, err := oracle.LatestBlock(ctx)
	if err != nil {
		return Result{}, err
	}

	low, high := bounds.Range(latest)
	return Binary(ctx, oracle.ExistsAt, low, high)
}

package search

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/creation-finder/internal/logger"
)

// Request describes one creation block lookup
type Request struct {
	Address  common.Address
	Bounds   Bounds
	Strategy Strategy

	// Estimate and Bias are only used by StrategyInterpolation
	Estimate uint64
	Bias     float64
}

// Outcome is the answer for one address
type Outcome struct {
	Address  common.Address
	Strategy Strategy

	// IsContract is false when the address has no code at the chain head.
	// Block and Calls are zero in that case.
	IsContract bool
	Block      uint64
	// Calls counts the code queries made by the search engine
	Calls int

	Duration time.Duration
}

// TotalCalls returns every RPC call spent on the outcome: the precheck, the head
// lookup and the search probes.
func (o *Outcome) TotalCalls() int {
	if !o.IsContract {
		return 1
	}
	return 2 + o.Calls
}

// Finder runs the contract precheck and dispatches to a search engine
type Finder struct {
	reader  CodeReader
	logger  *zap.Logger
	metrics *Metrics
}

// Option configures a Finder
type Option func(*Finder)

// WithLogger sets the finder logger
func WithLogger(l *zap.Logger) Option {
	return func(f *Finder) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics
func WithMetrics(m *Metrics) Option {
	return func(f *Finder) {
		f.metrics = m
	}
}

// NewFinder creates a new Finder
func NewFinder(reader CodeReader, opts ...Option) *Finder {
	f := &Finder{
		reader: reader,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Find reports the block at which req.Address first had code. An address without code at
// the chain head is reported with IsContract false and no search is performed.
// Any RPC failure aborts the lookup.
func (f *Finder) Find(ctx context.Context, req Request) (*Outcome, error) {
	if req.Strategy == "" {
		req.Strategy = StrategyBinary
	}

	start := time.Now()
	outcome, calls, err := f.find(ctx, req)
	f.metrics.observe(req.Strategy, outcome, calls, err, time.Since(start))
	if err != nil {
		f.logger.Error("creation block search failed",
			zap.String("address", req.Address.Hex()),
			zap.String("strategy", req.Strategy.String()),
			zap.Error(err))
		return nil, err
	}
	outcome.Duration = time.Since(start)
	return outcome, nil
}

// find returns the outcome and the number of RPC calls issued, also on failure
func (f *Finder) find(ctx context.Context, req Request) (*Outcome, int, error) {
	log := f.logger.With(
		zap.String("address", req.Address.Hex()),
		zap.String("strategy", req.Strategy.String()))
	ctx = logger.WithLogger(ctx, log)

	oracle := NewOracle(f.reader, req.Address)

	isContract, err := oracle.ExistsAtLatest(ctx)
	if err != nil {
		return nil, oracle.Calls(), fmt.Errorf("failed to check code of %s: %w", req.Address.Hex(), err)
	}

	outcome := &Outcome{
		Address:    req.Address,
		Strategy:   req.Strategy,
		IsContract: isContract,
	}
	if !isContract {
		log.Info("address has no code at latest block")
		return outcome, oracle.Calls(), nil
	}

	var res Result
	switch req.Strategy {
	case StrategyBinary:
		res, err = BinarySearch(ctx, oracle, req.Bounds)
	case StrategyInterpolation:
		res, err = InterpolationSearch(ctx, oracle, req.Bounds, req.Estimate, req.Bias)
	default:
		return nil, oracle.Calls(), fmt.Errorf("unknown search strategy %q", req.Strategy)
	}
	if err != nil {
		return nil, oracle.Calls(), fmt.Errorf("failed to search creation block of %s: %w", req.Address.Hex(), err)
	}

	outcome.Block = res.Block
	outcome.Calls = res.Calls

	log.Info("found creation block",
		zap.Uint64("block", res.Block),
		zap.Int("calls", res.Calls))

	return outcome, oracle.Calls(), nil
}

// FindAll runs Find for every request with at most concurrency searches in flight.
// Outcomes keep the order of reqs. The first failure cancels the remaining searches.
func (f *Finder) FindAll(ctx context.Context, reqs []Request, concurrency int) ([]*Outcome, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	outcomes := make([]*Outcome, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range reqs {
		i := i
		g.Go(func() error {
			outcome, err := f.Find(gctx, reqs[i])
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

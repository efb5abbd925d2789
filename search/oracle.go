package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrTransport marks failures of the underlying RPC capability.
// Any such failure aborts the whole search; no partial result is returned.
var ErrTransport = errors.New("transport failure")

// CodeReader is the remote capability the search depends on.
// A nil block queries the latest state.
type CodeReader interface {
	GetCode(ctx context.Context, address common.Address, block *uint64) ([]byte, error)
	GetLatestBlockNumber(ctx context.Context) (uint64, error)
}

// Predicate reports whether the searched condition holds at block.
// It must be monotonic: false for every block before some transition point and
// true for every block at or after it.
type Predicate func(ctx context.Context, block uint64) (bool, error)

// Oracle answers "does address have code at block" with one remote call per question.
// Answers are never cached; the only state is the number of calls issued.
// An Oracle serves one search at a time.
type Oracle struct {
	reader  CodeReader
	address common.Address
	calls   int
}

// NewOracle creates an oracle for a single address
func NewOracle(reader CodeReader, address common.Address) *Oracle {
	return &Oracle{
		reader:  reader,
		address: address,
	}
}

// Address returns the address the oracle is bound to
func (o *Oracle) Address() common.Address {
	return o.address
}

// Calls returns the number of remote calls issued so far, failed ones included
func (o *Oracle) Calls() int {
	return o.calls
}

// ExistsAt reports whether the address holds non-empty code at block
func (o *Oracle) ExistsAt(ctx context.Context, block uint64) (bool, error) {
	return o.exists(ctx, &block)
}

// ExistsAtLatest reports whether the address holds non-empty code at the chain head
func (o *Oracle) ExistsAtLatest(ctx context.Context) (bool, error) {
	return o.exists(ctx, nil)
}

func (o *Oracle) exists(ctx context.Context, block *uint64) (bool, error) {
	o.calls++
	code, err := o.reader.GetCode(ctx, o.address, block)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return len(code) > 0, nil
}

// LatestBlock returns the current chain height
func (o *Oracle) LatestBlock(ctx context.Context) (uint64, error) {
	o.calls++
	latest, err := o.reader.GetLatestBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return latest, nil
}

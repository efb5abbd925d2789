package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var errNodeDown = errors.New("connection refused")

// mockReader is a mock chain with one contract per address created at a fixed block
type mockReader struct {
	mu sync.Mutex

	head    uint64
	created map[common.Address]uint64

	codeCalls   int
	latestCalls int
	queried     []*uint64

	// failAfter makes GetCode fail once codeCalls reaches it (0 disables)
	failAfter  int
	failLatest bool
	maxQueried uint64
}

func newMockReader(head uint64) *mockReader {
	return &mockReader{
		head:    head,
		created: make(map[common.Address]uint64),
	}
}

func (m *mockReader) deploy(addr common.Address, block uint64) *mockReader {
	m.created[addr] = block
	return m
}

func (m *mockReader) GetCode(ctx context.Context, address common.Address, block *uint64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.codeCalls++
	m.queried = append(m.queried, block)
	if m.failAfter > 0 && m.codeCalls >= m.failAfter {
		return nil, fmt.Errorf("eth_getCode: %w", errNodeDown)
	}

	at := m.head
	if block != nil {
		at = *block
		if at > m.maxQueried {
			m.maxQueried = at
		}
	}

	created, ok := m.created[address]
	if !ok || at < created {
		return []byte{}, nil
	}
	return []byte{0x60, 0x80, 0x60, 0x40, 0x52}, nil
}

func (m *mockReader) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latestCalls++
	if m.failLatest {
		return 0, fmt.Errorf("eth_blockNumber: %w", errNodeDown)
	}
	return m.head, nil
}

// stepPredicate returns a monotonic predicate with transition at t and a call counter
func stepPredicate(t uint64) (Predicate, *int) {
	calls := new(int)
	return func(_ context.Context, block uint64) (bool, error) {
		*calls++
		return block >= t, nil
	}, calls
}

func constPredicate(v bool) Predicate {
	return func(context.Context, uint64) (bool, error) {
		return v, nil
	}
}

func u64(v uint64) *uint64 {
	return &v
}

// ceilLog2 returns ceil(log2(n)) for n >= 1
func ceilLog2(n uint64) int {
	r := 0
	for v := uint64(1); v < n; v <<= 1 {
		r++
	}
	return r
}

package search

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var (
	testContract = common.HexToAddress("0x837b40be9ce60c79b63d1356a5f9fcad721421ec")
	testEOA      = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func TestFinder_Find(t *testing.T) {
	tests := []struct {
		name           string
		req            Request
		wantContract   bool
		wantBlock      uint64
		wantCalls      int
		wantCodeCalls  int
		wantLatestCall int
	}{
		{
			name:           "binary",
			req:            Request{Address: testContract, Strategy: StrategyBinary},
			wantContract:   true,
			wantBlock:      100,
			wantCalls:      10,
			wantCodeCalls:  11,
			wantLatestCall: 1,
		},
		{
			name:           "default strategy is binary",
			req:            Request{Address: testContract},
			wantContract:   true,
			wantBlock:      100,
			wantCalls:      10,
			wantCodeCalls:  11,
			wantLatestCall: 1,
		},
		{
			name:           "interpolation with exact estimate",
			req:            Request{Address: testContract, Strategy: StrategyInterpolation, Estimate: 100, Bias: 2},
			wantContract:   true,
			wantBlock:      100,
			wantCalls:      7,
			wantCodeCalls:  8,
			wantLatestCall: 1,
		},
		{
			name:           "no code at latest skips the search",
			req:            Request{Address: testEOA, Strategy: StrategyBinary},
			wantContract:   false,
			wantCodeCalls:  1,
			wantLatestCall: 0,
		},
		{
			name:           "no code at latest with interpolation",
			req:            Request{Address: testEOA, Strategy: StrategyInterpolation, Estimate: 100, Bias: 2},
			wantContract:   false,
			wantCodeCalls:  1,
			wantLatestCall: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := newMockReader(1000).deploy(testContract, 100)
			finder := NewFinder(reader, WithLogger(zap.NewNop()))

			outcome, err := finder.Find(context.Background(), tt.req)
			require.NoError(t, err)
			require.NotNil(t, outcome)

			assert.Equal(t, tt.req.Address, outcome.Address)
			assert.Equal(t, tt.wantContract, outcome.IsContract)
			assert.Equal(t, tt.wantBlock, outcome.Block)
			if tt.wantContract {
				assert.Equal(t, tt.wantCalls, outcome.Calls)
			}
			assert.Equal(t, tt.wantCodeCalls, reader.codeCalls)
			assert.Equal(t, tt.wantLatestCall, reader.latestCalls)
			assert.Equal(t, reader.codeCalls+reader.latestCalls, outcome.TotalCalls())
		})
	}
}

func TestFinder_Find_Errors(t *testing.T) {
	t.Run("precheck failure", func(t *testing.T) {
		reader := newMockReader(1000).deploy(testContract, 100)
		reader.failAfter = 1

		outcome, err := NewFinder(reader).Find(context.Background(), Request{Address: testContract})
		require.Error(t, err)
		assert.Nil(t, outcome)
		assert.ErrorIs(t, err, ErrTransport)
		assert.Zero(t, reader.latestCalls)
	})

	t.Run("failure mid search", func(t *testing.T) {
		reader := newMockReader(1000).deploy(testContract, 100)
		reader.failAfter = 5

		outcome, err := NewFinder(reader).Find(context.Background(), Request{Address: testContract})
		require.Error(t, err)
		assert.Nil(t, outcome)
		assert.ErrorIs(t, err, ErrTransport)
		assert.ErrorIs(t, err, errNodeDown)
		assert.Equal(t, 5, reader.codeCalls)
	})

	t.Run("latest block failure", func(t *testing.T) {
		reader := newMockReader(1000).deploy(testContract, 100)
		reader.failLatest = true

		outcome, err := NewFinder(reader).Find(context.Background(),
			Request{Address: testContract, Strategy: StrategyInterpolation, Estimate: 10, Bias: 1})
		require.Error(t, err)
		assert.Nil(t, outcome)
		assert.Equal(t, 1, reader.codeCalls)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		reader := newMockReader(1000).deploy(testContract, 100)

		_, err := NewFinder(reader).Find(context.Background(), Request{Address: testContract, Strategy: "linear"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown search strategy")
	})
}

func TestFinder_Idempotent(t *testing.T) {
	reader := newMockReader(1_000_000).deploy(testContract, 654_321)
	finder := NewFinder(reader)
	req := Request{
		Address:  testContract,
		Bounds:   Bounds{Min: u64(500_000)},
		Strategy: StrategyInterpolation,
		Estimate: 650_000,
		Bias:     1.5,
	}

	first, err := finder.Find(context.Background(), req)
	require.NoError(t, err)
	second, err := finder.Find(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, uint64(654_321), first.Block)
	assert.Equal(t, first.Block, second.Block)
	assert.Equal(t, first.Calls, second.Calls)
}

func TestFinder_LogsProbes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	reader := newMockReader(1000).deploy(testContract, 100)

	outcome, err := NewFinder(reader, WithLogger(zap.New(core))).
		Find(context.Background(), Request{Address: testContract})
	require.NoError(t, err)

	assert.Equal(t, outcome.Calls, logs.FilterMessage("binary probe").Len())

	found := logs.FilterMessage("found creation block").All()
	require.Len(t, found, 1)
	assert.Equal(t, testContract.Hex(), found[0].ContextMap()["address"])
	assert.Equal(t, uint64(100), found[0].ContextMap()["block"])
}

func TestFinder_FindAll(t *testing.T) {
	other := common.HexToAddress("0x3333333333333333333333333333333333333333")
	reader := newMockReader(10_000).
		deploy(testContract, 100).
		deploy(other, 7_777)
	finder := NewFinder(reader)

	reqs := []Request{
		{Address: testContract, Strategy: StrategyBinary},
		{Address: testEOA, Strategy: StrategyBinary},
		{Address: other, Strategy: StrategyInterpolation, Estimate: 7_000, Bias: 2},
	}

	outcomes, err := finder.FindAll(context.Background(), reqs, 3)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, testContract, outcomes[0].Address)
	assert.Equal(t, uint64(100), outcomes[0].Block)
	assert.False(t, outcomes[1].IsContract)
	assert.Equal(t, other, outcomes[2].Address)
	assert.Equal(t, uint64(7_777), outcomes[2].Block)
}

func TestFinder_FindAll_Error(t *testing.T) {
	reader := newMockReader(1000).deploy(testContract, 100)
	reader.failLatest = true

	outcomes, err := NewFinder(reader).FindAll(context.Background(), []Request{
		{Address: testContract},
		{Address: testEOA},
	}, 0)
	require.Error(t, err)
	assert.Nil(t, outcomes)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestFinder_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test", "")
	reader := newMockReader(1000).deploy(testContract, 100)
	finder := NewFinder(reader, WithMetrics(metrics))
	ctx := context.Background()

	_, err := finder.Find(ctx, Request{Address: testContract, Strategy: StrategyBinary})
	require.NoError(t, err)
	_, err = finder.Find(ctx, Request{Address: testEOA, Strategy: StrategyBinary})
	require.NoError(t, err)

	// precheck fails
	reader.failAfter = reader.codeCalls + 1
	_, err = finder.Find(ctx, Request{Address: testContract, Strategy: StrategyInterpolation, Estimate: 1, Bias: 1})
	require.Error(t, err)

	// precheck, head lookup and first probe succeed, second probe fails
	reader.failAfter = reader.codeCalls + 3
	_, err = finder.Find(ctx, Request{Address: testContract, Strategy: StrategyInterpolation, Estimate: 1, Bias: 1})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SearchesTotal.WithLabelValues("binary", resultFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SearchesTotal.WithLabelValues("binary", resultNoCode)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.SearchesTotal.WithLabelValues("interpolation", resultError)))
	// 12 for the found search, 1 for the precheck without code
	assert.Equal(t, 13.0, testutil.ToFloat64(metrics.OracleCallsTotal.WithLabelValues("binary")))
	// 1 failed precheck, then 4 calls up to and including the failed probe
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.OracleCallsTotal.WithLabelValues("interpolation")))
	assert.Equal(t, 100.0, testutil.ToFloat64(metrics.LastCreationBlock))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.SearchDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observe(StrategyBinary, &Outcome{IsContract: true}, 12, nil, 0)
	})
}

package ingest

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"lendingScope/internal/interest"
	"lendingScope/internal/ledger"
	"lendingScope/internal/model"
	"lendingScope/internal/protocol"
	"lendingScope/internal/storage"
	"lendingScope/internal/storage/memory"
)

var (
	aTokenAddr    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	debtTokenAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
	poolAddr      = common.HexToAddress("0x3333333333333333333333333333333333333333")
	daiAddr       = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	alice         = common.HexToAddress("0x4444444444444444444444444444444444444444")
	carol         = common.HexToAddress("0x5555555555555555555555555555555555555555")
)

type fakeSource struct {
	logs   []model.RawLog
	calls  []BlockRange
	blocks chan uint64
	errs   chan error
}

func (f *fakeSource) FilterLogs(_ context.Context, fromBlock, toBlock uint64, _ []common.Address, _ []common.Hash) ([]model.RawLog, error) {
	f.calls = append(f.calls, BlockRange{From: fromBlock, To: toBlock})
	var out []model.RawLog
	for _, log := range f.logs {
		if log.BlockNumber >= fromBlock && log.BlockNumber <= toBlock {
			out = append(out, log)
		}
	}
	return out, nil
}

func (f *fakeSource) BlockTimestamp(_ context.Context, blockNumber uint64) (uint64, error) {
	return 1700000000 + blockNumber, nil
}

func (f *fakeSource) WatchBlockNumber(_ context.Context) (<-chan uint64, <-chan error, error) {
	return f.blocks, f.errs, nil
}

type fakeRefresher struct {
	tokens     []common.Address
	timestamps []uint64
}

func (f *fakeRefresher) Refresh(_ context.Context, currentTimestamp uint64) ([]common.Address, error) {
	f.timestamps = append(f.timestamps, currentTimestamp)
	return append([]common.Address(nil), f.tokens...), nil
}

type fakeResolver struct {
	assets map[common.Address]common.Address
}

func (f *fakeResolver) Underlying(_ context.Context, token common.Address) (common.Address, error) {
	asset, ok := f.assets[token]
	if !ok {
		return common.Address{}, fmt.Errorf("unknown token %s", token.Hex())
	}
	return asset, nil
}

type testHarness struct {
	controller  *Controller
	source      *fakeSource
	users       *memory.UserReserveStore
	checkpoints *memory.CheckpointStore
}

func newHarness(t *testing.T, cfg Config, logs []model.RawLog) *testHarness {
	t.Helper()

	decoder, err := protocol.NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	source := &fakeSource{
		logs:   logs,
		blocks: make(chan uint64),
		errs:   make(chan error),
	}
	users := memory.NewUserReserveStore()
	checkpoints := memory.NewCheckpointStore()
	resolver := &fakeResolver{assets: map[common.Address]common.Address{
		aTokenAddr:    daiAddr,
		debtTokenAddr: daiAddr,
	}}
	refresher := &fakeRefresher{tokens: []common.Address{aTokenAddr, debtTokenAddr}}

	cfg.LendingPool = poolAddr
	controller := NewController(cfg, source, refresher, resolver, decoder, ledger.New(users), checkpoints, nil)
	return &testHarness{
		controller:  controller,
		source:      source,
		users:       users,
		checkpoints: checkpoints,
	}
}

func tokenAmount(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func supplyMintLog(t *testing.T, block, logIndex uint64, user common.Address, amount *big.Int) model.RawLog {
	t.Helper()
	tokenABI, err := protocol.ATokenABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	data, err := tokenABI.Events["Mint"].Inputs.NonIndexed().Pack(amount, new(big.Int).Set(interest.RAY))
	if err != nil {
		t.Fatalf("pack mint: %v", err)
	}
	return rawLog(aTokenAddr, block, logIndex, tokenABI.Events["Mint"].ID, data, user)
}

func supplyTransferLog(t *testing.T, block, logIndex uint64, from, to common.Address, amount *big.Int) model.RawLog {
	t.Helper()
	tokenABI, err := protocol.ATokenABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	data, err := tokenABI.Events["BalanceTransfer"].Inputs.NonIndexed().Pack(amount, new(big.Int).Set(interest.RAY))
	if err != nil {
		t.Fatalf("pack transfer: %v", err)
	}
	return rawLog(aTokenAddr, block, logIndex, tokenABI.Events["BalanceTransfer"].ID, data, from, to)
}

func debtMintLog(t *testing.T, block, logIndex uint64, user common.Address, amount *big.Int) model.RawLog {
	t.Helper()
	tokenABI, err := protocol.DebtTokenABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	data, err := tokenABI.Events["Mint"].Inputs.NonIndexed().Pack(amount, new(big.Int).Set(interest.RAY))
	if err != nil {
		t.Fatalf("pack mint: %v", err)
	}
	return rawLog(debtTokenAddr, block, logIndex, tokenABI.Events["Mint"].ID, data, user, user)
}

func collateralEnabledLog(t *testing.T, block, logIndex uint64, reserve, user common.Address) model.RawLog {
	t.Helper()
	poolABI, err := protocol.LendingPoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	return rawLog(poolAddr, block, logIndex, poolABI.Events["ReserveUsedAsCollateralEnabled"].ID, nil, reserve, user)
}

func rawLog(emitter common.Address, block, logIndex uint64, topic0 common.Hash, data []byte, indexed ...common.Address) model.RawLog {
	topics := []string{topic0.Hex()}
	for _, addr := range indexed {
		topics = append(topics, common.BytesToHash(addr.Bytes()).Hex())
	}
	return model.RawLog{
		BlockNumber: block,
		TxHash:      "0xabc",
		LogIndex:    logIndex,
		Address:     emitter.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
	}
}

func TestLiveStepAppliesEventsAndAdvances(t *testing.T) {
	h := newHarness(t, Config{ChunkSize: 799}, []model.RawLog{
		supplyMintLog(t, 100, 1, alice, tokenAmount(1000)),
		debtMintLog(t, 100, 2, alice, tokenAmount(400)),
		collateralEnabledLog(t, 100, 3, daiAddr, alice),
	})
	h.controller.cp = model.Checkpoint{Block: 99}
	h.controller.replayed = true

	if err := h.controller.step(context.Background(), 101); err != nil {
		t.Fatalf("step: %v", err)
	}

	row, err := h.users.Get(context.Background(), alice.Hex(), daiAddr.Hex())
	if err != nil {
		t.Fatalf("get row: %v", err)
	}
	if row.ScaledSupplyBalance.Cmp(tokenAmount(1000)) != 0 {
		t.Fatalf("supply mismatch: %s", row.ScaledSupplyBalance)
	}
	if row.ScaledVariableDebt.Cmp(tokenAmount(400)) != 0 {
		t.Fatalf("debt mismatch: %s", row.ScaledVariableDebt)
	}
	if !row.UsageAsCollateralEnabled {
		t.Fatalf("collateral flag not set")
	}

	cp, ok, err := h.checkpoints.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load checkpoint: ok=%v err=%v", ok, err)
	}
	if cp.Block != 100 || cp.LogIndex != 3 {
		t.Fatalf("checkpoint mismatch: %+v", cp)
	}
}

func TestStepEntersRecoveryWithChunkedFetches(t *testing.T) {
	h := newHarness(t, Config{ChunkSize: 799}, nil)
	h.controller.cp = model.Checkpoint{Block: 1000}
	h.controller.replayed = true

	if err := h.controller.step(context.Background(), 3001); err != nil {
		t.Fatalf("step: %v", err)
	}

	want := []BlockRange{
		{From: 1001, To: 1799},
		{From: 1800, To: 2598},
		{From: 2599, To: 3000},
	}
	if len(h.source.calls) != len(want) {
		t.Fatalf("fetch count mismatch: %+v", h.source.calls)
	}
	for i, call := range h.source.calls {
		if call != want[i] {
			t.Fatalf("chunk %d mismatch: %+v != %+v", i, call, want[i])
		}
	}

	cp, ok, err := h.checkpoints.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load checkpoint: ok=%v err=%v", ok, err)
	}
	if cp.Block != 3000 {
		t.Fatalf("checkpoint should reach the target: %+v", cp)
	}
}

func TestStepSmallGapStaysLive(t *testing.T) {
	h := newHarness(t, Config{ChunkSize: 799}, nil)
	h.controller.cp = model.Checkpoint{Block: 1000}
	h.controller.replayed = true

	if err := h.controller.step(context.Background(), 1500); err != nil {
		t.Fatalf("step: %v", err)
	}

	if len(h.source.calls) != 1 {
		t.Fatalf("expected a single fetch, got %+v", h.source.calls)
	}
	if h.source.calls[0] != (BlockRange{From: 1001, To: 1499}) {
		t.Fatalf("range mismatch: %+v", h.source.calls[0])
	}
}

func TestPartialBlockReplaySkipsCoveredLogs(t *testing.T) {
	h := newHarness(t, Config{ChunkSize: 799}, []model.RawLog{
		// Applied before the crash; must not be re-applied.
		supplyMintLog(t, 100, 3, alice, tokenAmount(1000)),
		// Past the checkpointed log index; must be applied now.
		supplyMintLog(t, 100, 7, alice, tokenAmount(50)),
	})
	h.controller.cp = model.Checkpoint{Block: 100, LogIndex: 5}

	if err := h.controller.step(context.Background(), 101); err != nil {
		t.Fatalf("step: %v", err)
	}

	row, err := h.users.Get(context.Background(), alice.Hex(), daiAddr.Hex())
	if err != nil {
		t.Fatalf("get row: %v", err)
	}
	if row.ScaledSupplyBalance.Cmp(tokenAmount(50)) != 0 {
		t.Fatalf("replay applied covered log: %s", row.ScaledSupplyBalance)
	}

	cp, ok, err := h.checkpoints.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load checkpoint: ok=%v err=%v", ok, err)
	}
	if cp.Block != 100 || cp.LogIndex != 7 {
		t.Fatalf("checkpoint mismatch: %+v", cp)
	}
}

func TestTransferDebitsSenderThenCreditsReceiver(t *testing.T) {
	h := newHarness(t, Config{ChunkSize: 799}, []model.RawLog{
		supplyMintLog(t, 100, 1, alice, tokenAmount(100)),
		supplyTransferLog(t, 101, 1, alice, carol, tokenAmount(100)),
	})
	h.controller.cp = model.Checkpoint{Block: 99}
	h.controller.replayed = true

	if err := h.controller.step(context.Background(), 102); err != nil {
		t.Fatalf("step: %v", err)
	}

	// The sender's row hit zero on both legs and was pruned.
	if _, err := h.users.Get(context.Background(), alice.Hex(), daiAddr.Hex()); err != storage.ErrNotFound {
		t.Fatalf("sender row should be gone, err=%v", err)
	}

	row, err := h.users.Get(context.Background(), carol.Hex(), daiAddr.Hex())
	if err != nil {
		t.Fatalf("get receiver row: %v", err)
	}
	if row.ScaledSupplyBalance.Cmp(tokenAmount(100)) != 0 {
		t.Fatalf("receiver balance mismatch: %s", row.ScaledSupplyBalance)
	}
}

func TestUnknownLogsAreSkipped(t *testing.T) {
	unknown := model.RawLog{
		BlockNumber: 100,
		LogIndex:    1,
		Address:     aTokenAddr.Hex(),
		Topics:      []string{"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"},
		Data:        "0x",
	}
	h := newHarness(t, Config{ChunkSize: 799}, []model.RawLog{
		unknown,
		supplyMintLog(t, 100, 2, alice, tokenAmount(10)),
	})
	h.controller.cp = model.Checkpoint{Block: 99}
	h.controller.replayed = true

	if err := h.controller.step(context.Background(), 101); err != nil {
		t.Fatalf("step: %v", err)
	}

	row, err := h.users.Get(context.Background(), alice.Hex(), daiAddr.Hex())
	if err != nil {
		t.Fatalf("get row: %v", err)
	}
	if row.ScaledSupplyBalance.Cmp(tokenAmount(10)) != 0 {
		t.Fatalf("balance mismatch: %s", row.ScaledSupplyBalance)
	}
}

func TestRunResumesFromCheckpointAndStopsOnSubscriptionError(t *testing.T) {
	h := newHarness(t, Config{ChunkSize: 799}, []model.RawLog{
		supplyMintLog(t, 100, 1, alice, tokenAmount(5)),
	})
	if err := h.checkpoints.Save(context.Background(), model.Checkpoint{Block: 100, LogIndex: 1}); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- h.controller.Run(context.Background())
	}()

	h.source.blocks <- 102
	h.source.errs <- fmt.Errorf("subscription dropped")

	err := <-done
	if err == nil {
		t.Fatalf("expected subscription error")
	}

	// Block 100 was already checkpointed through log index 1, so the replay
	// must not double-apply the mint.
	if _, err := h.users.Get(context.Background(), alice.Hex(), daiAddr.Hex()); err != storage.ErrNotFound {
		t.Fatalf("covered log was re-applied, err=%v", err)
	}

	cp, ok, err := h.checkpoints.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load checkpoint: ok=%v err=%v", ok, err)
	}
	if cp.Block != 101 {
		t.Fatalf("live step should advance to observed-1: %+v", cp)
	}
}

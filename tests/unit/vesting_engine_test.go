package unit

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	vestingengine "tranche/contexts/token-distribution/vesting-engine"
	"tranche/contexts/token-distribution/vesting-engine/application/commands"
	"tranche/contexts/token-distribution/vesting-engine/domain/entities"
	domainerrors "tranche/contexts/token-distribution/vesting-engine/domain/errors"
	"tranche/contexts/token-distribution/vesting-engine/domain/proof"
	httptransport "tranche/contexts/token-distribution/vesting-engine/transport/http"
)

type ledgerFake struct {
	mu    sync.Mutex
	paid  map[string]uint64
	calls int
}

func newLedgerFake() *ledgerFake {
	return &ledgerFake{paid: map[string]uint64{}}
}

func (l *ledgerFake) Transfer(_ context.Context, recipient string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	l.paid[recipient] += amount
	return nil
}

func buildModule(t *testing.T, tree *proof.Tree, mode entities.ReleaseMode, startOffset time.Duration) (vestingengine.Module, *ledgerFake) {
	t.Helper()
	ledger := newLedgerFake()
	module := vestingengine.NewInMemoryModule(nil, ledger, nil)

	start := time.Now().UTC().Add(startOffset)
	cliffSeconds := int64(7 * 24 * 3600)
	cliffFraction := uint32(1000)
	if mode == entities.ReleaseModeDeferred {
		cliffSeconds = 0
		cliffFraction = 0
	}
	_, err := module.Handler.CreateScheduleHandler(context.Background(), httptransport.CreateScheduleRequest{
		Name:           "investor-round",
		StartTime:      start.Format(time.RFC3339),
		CliffSeconds:   cliffSeconds,
		CliffFraction:  cliffFraction,
		VestingSeconds: int64(100 * 24 * 3600),
		ExpiryTime:     start.Add(300 * 24 * time.Hour).Format(time.RFC3339),
		CommitmentRoot: hexRoot(tree),
		ReleaseMode:    string(mode),
	})
	if err != nil {
		t.Fatalf("create schedule failed: %v", err)
	}
	return module, ledger
}

func hexRoot(tree *proof.Tree) string {
	root := tree.Root()
	return hex.EncodeToString(root[:])
}

func hexProof(tree *proof.Tree, recipient string, allocation uint64) []string {
	siblings, _ := tree.ProofFor(recipient, allocation)
	out := make([]string, 0, len(siblings))
	for _, sibling := range siblings {
		out = append(out, hex.EncodeToString(sibling[:]))
	}
	return out
}

func TestFullyVestedClaimLifecycle(t *testing.T) {
	tree := proof.BuildTree([]proof.Pair{
		{Recipient: "wallet-a", Allocation: 2000},
		{Recipient: "wallet-b", Allocation: 1000},
	})
	// Schedule started 100 days ago, so wallet-a is fully vested.
	module, ledger := buildModule(t, tree, entities.ReleaseModeContinuous, -100*24*time.Hour)
	ctx := context.Background()

	outcome, err := module.Handler.ClaimHandler(ctx, httptransport.ClaimRequest{
		Recipient:  "wallet-a",
		ScheduleID: 1,
		Allocation: 2000,
		Proof:      hexProof(tree, "wallet-a", 2000),
	})
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if outcome.Status != commands.OutcomeReleased || outcome.Amount != 2000 {
		t.Fatalf("expected full release of 2000, got %+v", outcome)
	}
	if ledger.paid["wallet-a"] != 2000 {
		t.Fatalf("expected ledger credit 2000, got %d", ledger.paid["wallet-a"])
	}

	record, err := module.Handler.GetClaimRecordHandler(ctx, "wallet-a")
	if err != nil {
		t.Fatalf("get claim record failed: %v", err)
	}
	if record.Status != string(entities.ClaimStatusExhausted) || record.ClaimedTotal != 2000 {
		t.Fatalf("expected exhausted record, got %+v", record)
	}

	// Claimed amounts never decrease and never exceed entitlement.
	if _, err := module.Handler.ClaimHandler(ctx, httptransport.ClaimRequest{
		Recipient:  "wallet-a",
		ScheduleID: 1,
		Allocation: 2000,
		Proof:      hexProof(tree, "wallet-a", 2000),
	}); !errors.Is(err, domainerrors.ErrNoTokensToClaim) {
		t.Fatalf("expected ErrNoTokensToClaim on repeat, got %v", err)
	}
}

func TestClaimedEventLandsInOutbox(t *testing.T) {
	tree := proof.BuildTree([]proof.Pair{{Recipient: "wallet-a", Allocation: 2000}})
	module, _ := buildModule(t, tree, entities.ReleaseModeContinuous, -100*24*time.Hour)
	ctx := context.Background()

	if _, err := module.Handler.ClaimHandler(ctx, httptransport.ClaimRequest{
		Recipient:  "wallet-a",
		ScheduleID: 1,
		Allocation: 2000,
		Proof:      hexProof(tree, "wallet-a", 2000),
	}); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	pending, err := module.Store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(pending) != 1 || pending[0].EventType != "vesting.claimed" {
		t.Fatalf("expected one vesting.claimed outbox row, got %+v", pending)
	}

	var envelope map[string]any
	if err := json.Unmarshal(pending[0].Payload, &envelope); err != nil {
		t.Fatalf("decode envelope failed: %v", err)
	}
	if envelope["source_service"] != "vesting-engine" || envelope["partition_key"] != "wallet-a" {
		t.Fatalf("unexpected envelope fields %+v", envelope)
	}
}

func TestDeferredFlowThroughModule(t *testing.T) {
	tree := proof.BuildTree([]proof.Pair{{Recipient: "wallet-b", Allocation: 1000}})
	// Vesting duration has fully run, so the first claim locks.
	module, ledger := buildModule(t, tree, entities.ReleaseModeDeferred, -100*24*time.Hour)
	ctx := context.Background()

	outcome, err := module.Handler.ClaimHandler(ctx, httptransport.ClaimRequest{
		Recipient:  "wallet-b",
		ScheduleID: 1,
		Allocation: 1000,
		Proof:      hexProof(tree, "wallet-b", 1000),
	})
	if err != nil {
		t.Fatalf("lock claim failed: %v", err)
	}
	if outcome.Status != commands.OutcomeLockAccepted || outcome.Amount != 0 {
		t.Fatalf("expected lock acceptance with zero amount, got %+v", outcome)
	}
	if ledger.calls != 0 {
		t.Fatalf("lock must not touch the ledger")
	}

	record, err := module.Handler.GetClaimRecordHandler(ctx, "wallet-b")
	if err != nil {
		t.Fatalf("get record failed: %v", err)
	}
	if record.Status != string(entities.ClaimStatusDeferredLocked) || record.DeferredAmount != 1000 {
		t.Fatalf("expected locked record, got %+v", record)
	}

	// The deferred amount matures a full vesting duration after the lock.
	if _, err := module.Handler.ClaimHandler(ctx, httptransport.ClaimRequest{
		Recipient:  "wallet-b",
		ScheduleID: 1,
		Allocation: 1000,
		Proof:      hexProof(tree, "wallet-b", 1000),
	}); !errors.Is(err, domainerrors.ErrClaimNotAllowed) {
		t.Fatalf("expected ErrClaimNotAllowed before maturity, got %v", err)
	}
}

func TestReleasablePreviewMatchesClaim(t *testing.T) {
	tree := proof.BuildTree([]proof.Pair{{Recipient: "wallet-a", Allocation: 2000}})
	module, _ := buildModule(t, tree, entities.ReleaseModeContinuous, -100*24*time.Hour)
	ctx := context.Background()

	preview, err := module.Handler.GetReleasableHandler(ctx, "wallet-a", 1, 2000)
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	outcome, err := module.Handler.ClaimHandler(ctx, httptransport.ClaimRequest{
		Recipient:  "wallet-a",
		ScheduleID: 1,
		Allocation: 2000,
		Proof:      hexProof(tree, "wallet-a", 2000),
	})
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if preview.Releasable != outcome.Amount {
		t.Fatalf("preview %d diverged from claim %d", preview.Releasable, outcome.Amount)
	}
}

func TestRotateRootInvalidatesOldProofs(t *testing.T) {
	oldTree := proof.BuildTree([]proof.Pair{{Recipient: "wallet-a", Allocation: 2000}})
	module, _ := buildModule(t, oldTree, entities.ReleaseModeContinuous, -100*24*time.Hour)
	ctx := context.Background()

	newTree := proof.BuildTree([]proof.Pair{{Recipient: "wallet-a", Allocation: 2500}})
	if err := module.Handler.RotateRootHandler(ctx, 1, httptransport.RotateRootRequest{
		CommitmentRoot: hexRoot(newTree),
	}); err != nil {
		t.Fatalf("rotate root failed: %v", err)
	}

	if _, err := module.Handler.ClaimHandler(ctx, httptransport.ClaimRequest{
		Recipient:  "wallet-a",
		ScheduleID: 1,
		Allocation: 2000,
		Proof:      hexProof(oldTree, "wallet-a", 2000),
	}); !errors.Is(err, domainerrors.ErrProofInvalid) {
		t.Fatalf("expected stale proof rejection, got %v", err)
	}

	outcome, err := module.Handler.ClaimHandler(ctx, httptransport.ClaimRequest{
		Recipient:  "wallet-a",
		ScheduleID: 1,
		Allocation: 2500,
		Proof:      hexProof(newTree, "wallet-a", 2500),
	})
	if err != nil {
		t.Fatalf("claim under rotated root failed: %v", err)
	}
	if outcome.Amount != 2500 {
		t.Fatalf("expected release under new root, got %+v", outcome)
	}
}

func TestScheduleImmutableFieldsSurviveUpdates(t *testing.T) {
	tree := proof.BuildTree([]proof.Pair{{Recipient: "wallet-a", Allocation: 2000}})
	module, _ := buildModule(t, tree, entities.ReleaseModeContinuous, -24*time.Hour)
	ctx := context.Background()

	before, err := module.Handler.GetScheduleHandler(ctx, 1)
	if err != nil {
		t.Fatalf("get schedule failed: %v", err)
	}
	if err := module.Handler.SetActiveHandler(ctx, 1, httptransport.SetActiveRequest{Active: false}); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	after, err := module.Handler.GetScheduleHandler(ctx, 1)
	if err != nil {
		t.Fatalf("get schedule failed: %v", err)
	}
	if after.Active {
		t.Fatalf("expected schedule to be inactive")
	}
	if after.StartTime != before.StartTime || after.VestingSeconds != before.VestingSeconds || after.ExpiryTime != before.ExpiryTime {
		t.Fatalf("timing parameters must not change: before=%+v after=%+v", before, after)
	}
}

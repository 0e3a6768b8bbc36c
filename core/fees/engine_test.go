package fees

import "testing"

func TestQuoteSplitsProcessingAndStorage(t *testing.T) {
	table := Table{
		CreditsPerRead:        10,
		CreditsPerWrite:       50,
		CreditsPerHash:        5,
		CreditsPerSignature:   30,
		CreditsPerStorageByte: 2,
	}
	ops := []ValidationOperation{
		{Kind: OpRead, Units: 3},
		{Kind: OpSignatureVerify, Units: 1},
		{Kind: OpStorageByte, Units: 100},
		{Kind: OpWrite, Units: 2},
		{Kind: OpPrecalculatedAction, PrecomputedFee: 77},
	}
	result := table.Quote(ops)
	if result.ProcessingFee != 3*10+30+2*50+77 {
		t.Fatalf("processing = %d", result.ProcessingFee)
	}
	if result.StorageFee != 200 {
		t.Fatalf("storage = %d", result.StorageFee)
	}
	if result.Total() != result.ProcessingFee+result.StorageFee {
		t.Fatalf("total mismatch")
	}
}

func TestDuffConversionRoundTrip(t *testing.T) {
	table := Table{CreditsPerDuff: 1000}
	credits := table.DuffsToCredits(25)
	if credits != 25_000 {
		t.Fatalf("credits = %d", credits)
	}
	if got := table.CreditsToDuffs(credits); got != 25 {
		t.Fatalf("duffs = %d", got)
	}
}

func TestQuoteShrink(t *testing.T) {
	table := Table{CreditsPerStorageByte: 4}
	refund, err := QuoteShrink(table, 300, 100)
	if err != nil {
		t.Fatalf("shrink: %v", err)
	}
	if refund != 800 {
		t.Fatalf("refund = %d, want 800", refund)
	}
	if _, err := QuoteShrink(table, 100, 300); err == nil {
		t.Fatalf("grow accepted as shrink")
	}
}

func TestRefundLedgerSettleClearsEpoch(t *testing.T) {
	ledger := NewRefundLedger()
	var alice, bob [32]byte
	alice[0], bob[0] = 1, 2

	ledger.Accrue(3, alice, 100)
	ledger.Accrue(3, alice, 50)
	ledger.Accrue(3, bob, 10)
	ledger.Accrue(4, bob, 99)

	settled := ledger.Settle(3)
	if settled[alice] != 150 || settled[bob] != 10 {
		t.Fatalf("settled = %v", settled)
	}
	if again := ledger.Settle(3); again != nil {
		t.Fatalf("second settle not empty: %v", again)
	}
	if next := ledger.Settle(4); next[bob] != 99 {
		t.Fatalf("epoch 4 = %v", next)
	}
}

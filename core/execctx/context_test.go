package execctx

import (
	"testing"

	"platformchain/core/fees"
)

func TestContextAccumulatesAndQuotes(t *testing.T) {
	ctx := New(false, false, 3)
	ctx.RecordRead()
	ctx.RecordRead()
	ctx.RecordWrite(1)
	ctx.RecordHash(2)
	ctx.RecordSignatureVerify(1)
	ctx.RecordStorageBytes(10)
	ctx.RecordPrecomputed(123)

	table := fees.Table{
		CreditsPerRead:        1,
		CreditsPerWrite:       10,
		CreditsPerHash:        2,
		CreditsPerSignature:   5,
		CreditsPerStorageByte: 3,
	}
	result := ctx.Quote(table)
	if result.ProcessingFee != 2+10+4+5+123 {
		t.Fatalf("processing = %d", result.ProcessingFee)
	}
	if result.StorageFee != 30 {
		t.Fatalf("storage = %d", result.StorageFee)
	}
	if ctx.Epoch != 3 {
		t.Fatalf("epoch = %d", ctx.Epoch)
	}
}

func TestOperationsReturnsACopy(t *testing.T) {
	ctx := New(false, false, 0)
	ctx.RecordRead()
	ops := ctx.Operations()
	ops[0].Units = 99
	if ctx.Operations()[0].Units != 1 {
		t.Fatalf("caller mutated the context's operation log")
	}
}

package fixtures

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const sampleFixture = `best_chain_lock:
  height: 2000
  block_hash: "tip"
  signature: "quorum-sig"
blocks:
  - height: 1999
    hash: "prev"
    time_ms: 1700000000000
  - height: 2000
    hash: "tip"
    prev_hash: "prev"
    time_ms: 1700000003000
fork_info:
  best_hash: "tip"
  best_height: 2000
quorums:
  - quorum_type: 4
    quorum_hash: "llmq-4"
    members_digest: "digest-4"
    valid_until: 2100
`

func loadSample(t *testing.T) *Stub {
	t.Helper()
	path := filepath.Join(t.TempDir(), "core.yaml")
	if err := os.WriteFile(path, []byte(sampleFixture), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	fx, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return NewStub(fx)
}

func TestStubServesChainLockAndBlocks(t *testing.T) {
	stub := loadSample(t)
	ctx := context.Background()

	lock, err := stub.GetBestChainLock(ctx)
	if err != nil || lock.Height != 2000 {
		t.Fatalf("chain lock: (%+v, %v)", lock, err)
	}

	hash, err := stub.GetBlockHash(ctx, 2000)
	if err != nil {
		t.Fatalf("block hash: %v", err)
	}
	header, err := stub.GetBlockJSON(ctx, hash)
	if err != nil || header.TimeMs != 1700000003000 {
		t.Fatalf("block json: (%+v, %v)", header, err)
	}
	if _, err := stub.GetBlockHash(ctx, 9999); err == nil {
		t.Fatalf("unknown height served")
	}
}

func TestStubQuorumLookup(t *testing.T) {
	stub := loadSample(t)
	ctx := context.Background()

	quorums, err := stub.GetQuorumListExtended(ctx, nil)
	if err != nil || len(quorums) != 1 {
		t.Fatalf("quorum list: (%v, %v)", quorums, err)
	}
	info, err := stub.GetQuorumInfo(ctx, 4, quorums[0].QuorumHash)
	if err != nil || info.ValidUntil != 2100 {
		t.Fatalf("quorum info: (%+v, %v)", info, err)
	}
	if _, err := stub.GetQuorumInfo(ctx, 99, quorums[0].QuorumHash); err == nil {
		t.Fatalf("unknown quorum served")
	}
}

// Package fixtures implements a declarative, yaml-driven corerpc.Client
// stub for orchestrator tests and the cmd/platformd devnet harness, the same
// role the teacher's swap fixtures play for its price-oracle tests.
package fixtures

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"platformchain/corerpc"
)

// Fixture is the on-disk declarative shape of a Core RPC stub's canned
// responses.
type Fixture struct {
	BestChainLock struct {
		Height    uint64 `yaml:"height"`
		BlockHash string `yaml:"block_hash"`
		Signature string `yaml:"signature"`
	} `yaml:"best_chain_lock"`

	Blocks []struct {
		Height     uint64 `yaml:"height"`
		Hash       string `yaml:"hash"`
		PrevHash   string `yaml:"prev_hash"`
		TimeMs     uint64 `yaml:"time_ms"`
		MerkleRoot string `yaml:"merkle_root"`
	} `yaml:"blocks"`

	ForkInfo struct {
		BestHash   string `yaml:"best_hash"`
		BestHeight uint64 `yaml:"best_height"`
		Forked     bool   `yaml:"forked"`
	} `yaml:"fork_info"`

	InstantLocksValid []string `yaml:"instant_locks_valid"` // hex outpoints treated as valid

	Quorums []struct {
		QuorumType    int    `yaml:"quorum_type"`
		QuorumHash    string `yaml:"quorum_hash"`
		MembersDigest string `yaml:"members_digest"`
		ValidUntil    uint64 `yaml:"valid_until"`
	} `yaml:"quorums"`
}

// Load reads and parses a Fixture from path.
func Load(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixtures: read %s: %w", path, err)
	}
	var fx Fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("fixtures: parse %s: %w", path, err)
	}
	return &fx, nil
}

// Stub is a corerpc.Client backed entirely by a loaded Fixture. Every method
// is deterministic and has no network side effects, matching spec §4's
// determinism requirement for anything the orchestrator threads through a
// block.
type Stub struct {
	fx *Fixture
}

// NewStub constructs a Stub over fx.
func NewStub(fx *Fixture) *Stub {
	return &Stub{fx: fx}
}

var _ corerpc.Client = (*Stub)(nil)

// parseHash takes the first 32 bytes of s's raw byte form, padding with
// zeroes if shorter. Fixture files spell hashes as short mnemonic strings
// ("genesis", "block1") rather than real hex digests; this keeps fixtures
// human-writable without a hex codec round trip.
func parseHash(s string) ([32]byte, error) {
	var out [32]byte
	copy(out[:], []byte(s))
	return out, nil
}

func (s *Stub) GetBestChainLock(ctx context.Context) (corerpc.ChainLock, error) {
	hash, err := parseHash(s.fx.BestChainLock.BlockHash)
	if err != nil {
		return corerpc.ChainLock{}, err
	}
	return corerpc.ChainLock{
		Height:    s.fx.BestChainLock.Height,
		BlockHash: hash,
		Signature: []byte(s.fx.BestChainLock.Signature),
	}, nil
}

func (s *Stub) GetBlockHash(ctx context.Context, height uint64) ([32]byte, error) {
	for _, b := range s.fx.Blocks {
		if b.Height == height {
			return parseHash(b.Hash)
		}
	}
	return [32]byte{}, fmt.Errorf("fixtures: no block at height %d", height)
}

func (s *Stub) GetBlockJSON(ctx context.Context, hash [32]byte) (corerpc.BlockHeader, error) {
	for _, b := range s.fx.Blocks {
		h, err := parseHash(b.Hash)
		if err != nil {
			continue
		}
		if h == hash {
			prev, _ := parseHash(b.PrevHash)
			root, _ := parseHash(b.MerkleRoot)
			return corerpc.BlockHeader{Height: b.Height, Hash: h, PrevHash: prev, TimeMs: b.TimeMs, MerkleRoot: root}, nil
		}
	}
	return corerpc.BlockHeader{}, fmt.Errorf("fixtures: unknown block hash")
}

func (s *Stub) GetForkInfo(ctx context.Context) (corerpc.ForkInfo, error) {
	best, err := parseHash(s.fx.ForkInfo.BestHash)
	if err != nil {
		return corerpc.ForkInfo{}, err
	}
	return corerpc.ForkInfo{BestHash: best, BestHeight: s.fx.ForkInfo.BestHeight, Forked: s.fx.ForkInfo.Forked}, nil
}

func (s *Stub) VerifyInstantLock(ctx context.Context, proof corerpc.InstantLockProof) (bool, error) {
	key := hex.EncodeToString(proof.Outpoint[:])
	for _, valid := range s.fx.InstantLocksValid {
		if valid == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *Stub) GetQuorumListExtended(ctx context.Context, height *uint64) ([]corerpc.QuorumInfo, error) {
	out := make([]corerpc.QuorumInfo, 0, len(s.fx.Quorums))
	for _, q := range s.fx.Quorums {
		hash, err := parseHash(q.QuorumHash)
		if err != nil {
			return nil, err
		}
		digest, err := parseHash(q.MembersDigest)
		if err != nil {
			return nil, err
		}
		out = append(out, corerpc.QuorumInfo{QuorumType: q.QuorumType, QuorumHash: hash, MembersDigest: digest, ValidUntil: q.ValidUntil})
	}
	return out, nil
}

func (s *Stub) GetQuorumInfo(ctx context.Context, quorumType int, quorumHash [32]byte) (corerpc.QuorumInfo, error) {
	for _, q := range s.fx.Quorums {
		hash, err := parseHash(q.QuorumHash)
		if err != nil {
			continue
		}
		if q.QuorumType == quorumType && hash == quorumHash {
			digest, err := parseHash(q.MembersDigest)
			if err != nil {
				return corerpc.QuorumInfo{}, err
			}
			return corerpc.QuorumInfo{QuorumType: q.QuorumType, QuorumHash: hash, MembersDigest: digest, ValidUntil: q.ValidUntil}, nil
		}
	}
	return corerpc.QuorumInfo{}, fmt.Errorf("fixtures: unknown quorum type=%d", quorumType)
}

func (s *Stub) GetProtxDiffWithMasternodes(ctx context.Context, baseHeight, tipHeight uint64) (corerpc.MasternodeListDiff, error) {
	return corerpc.MasternodeListDiff{BaseHeight: baseHeight, TipHeight: tipHeight}, nil
}

func (s *Stub) SubmitChainLock(ctx context.Context, lock corerpc.ChainLock) error {
	s.fx.BestChainLock.Height = lock.Height
	return nil
}

package state

import (
	"github.com/ethereum/go-ethereum/common"

	"platformchain/storage/trie"
)

// This file gives the Block Orchestrator (C8) the transactional semantics
// spec §5 requires: one ledger transaction held exclusively by STEP for the
// whole block, committed on block finalize or rolled back on round retry
// with no partial commit. It follows the same trie.Trie.Copy/Commit pattern
// core/node.go uses when it snapshots n.state.Trie around a block.

// Snapshot returns a Manager over a copy of the current trie, so the
// orchestrator can run a block's transitions against an isolated working
// set and discard it entirely on rollback without touching the original.
func (m *Manager) Snapshot() (*Manager, error) {
	cp, err := m.trie.Copy()
	if err != nil {
		return nil, err
	}
	return NewManager(cp), nil
}

// Root returns the current (uncommitted) root hash of the manager's trie.
func (m *Manager) Root() common.Hash {
	return m.trie.Root()
}

// Commit persists every pending mutation in the manager's trie and returns
// the resulting state root, matching spec §7's "no partial commit" rule: a
// caller that never calls Commit has made no durable change.
func (m *Manager) Commit(parent common.Hash, blockHeight uint64) (common.Hash, error) {
	return m.trie.Commit(parent, blockHeight)
}

// Trie exposes the underlying trie for collaborators (genesis loader, sync
// snapshot writer) that must operate below the Manager's KV helpers.
func (m *Manager) Trie() *trie.Trie {
	return m.trie
}

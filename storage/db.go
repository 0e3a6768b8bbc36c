package storage

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/triedb"
)

// Database is a generic interface for a key-value store.
// This allows the ledger to use any backend (in-memory or persistent). The
// TrieDB accessor hands the Merkle layer its node database; both must be
// backed by the same storage so a committed root is durable.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	TrieDB() *triedb.Database
	Close() // A way to gracefully shut down the database connection.
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte

	trieOnce sync.Once
	trieDB   *triedb.Database
}

func NewMemDB() *MemDB {
	return &MemDB{
		data: make(map[string][]byte),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[string(key)] = value
	return nil
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, fmt.Errorf("key not found")
	}
	return value, nil
}

// TrieDB returns the shared in-memory trie node database.
func (db *MemDB) TrieDB() *triedb.Database {
	db.trieOnce.Do(func() {
		db.trieDB = triedb.NewDatabase(rawdb.NewMemoryDatabase(), triedb.HashDefaults)
	})
	return db.trieDB
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	// Nothing to close for an in-memory database.
}

// --- Persistent DB (for mainnet) ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	db ethdb.Database

	trieOnce sync.Once
	trieDB   *triedb.Database
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	kv, err := leveldb.New(path, 128, 128, "platform", false)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: rawdb.NewDatabase(kv)}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	return ldb.db.Get(key)
}

// TrieDB returns the trie node database persisted in the same LevelDB store.
func (ldb *LevelDB) TrieDB() *triedb.Database {
	ldb.trieOnce.Do(func() {
		ldb.trieDB = triedb.NewDatabase(ldb.db, triedb.HashDefaults)
	})
	return ldb.trieDB
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	ldb.db.Close()
}

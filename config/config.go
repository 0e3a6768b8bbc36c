package config

import (
	"encoding/hex"
	"os"

	"github.com/BurntSushi/toml"

	"platformchain/crypto"
)

type Config struct {
	ListenAddress  string   `toml:"ListenAddress"`
	RPCAddress     string   `toml:"RPCAddress"`
	DataDir        string   `toml:"DataDir"`
	ValidatorKey   string   `toml:"ValidatorKey"`
	BootstrapPeers []string `toml:"BootstrapPeers"`

	// PlatformVersion is the protocol version STEP gates its capability
	// table on (step.Deps.Version); it must never be zero (core/step treats
	// zero as "not configured" and refuses to validate).
	PlatformVersion uint32 `toml:"PlatformVersion"`
	// MinimumBalancePreCheckVersion is the PlatformVersion at and above
	// which stage 6's prefunded-balance pre-check applies to MasternodeVote
	// (spec §4.1); below it, the pre-check is skipped for backward
	// compatibility with pre-vote protocol versions.
	MinimumBalancePreCheckVersion uint32 `toml:"MinimumBalancePreCheckVersion"`

	FeePerByte        uint64 `toml:"FeePerByte"`
	FeePerReadOp      uint64 `toml:"FeePerReadOp"`
	FeePerWriteOp     uint64 `toml:"FeePerWriteOp"`
	FeePerHashOp      uint64 `toml:"FeePerHashOp"`
	FeePerSignatureOp uint64 `toml:"FeePerSignatureOp"`
	CreditsPerDuff    uint64 `toml:"CreditsPerDuff"`

	// CorePeerAddress is the Core RPC collaborator endpoint; read by
	// cmd/platformd to reach Core through corerpc, never by core/step or
	// core/orchestrator.
	CorePeerAddress string `toml:"CorePeerAddress"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if cfg.ValidatorKey == "" {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		cfg.ValidatorKey = hex.EncodeToString(key.Bytes())

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, os.ModePerm)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddress: ":6001",
		RPCAddress:    ":8080",
		DataDir:       "./platform-data",
		ValidatorKey:  hex.EncodeToString(key.Bytes()),
		// Initialize with an empty list of peers by default.
		BootstrapPeers: []string{},

		PlatformVersion:               1,
		MinimumBalancePreCheckVersion: 1,
		FeePerByte:                    1,
		FeePerReadOp:                  2,
		FeePerWriteOp:                 5,
		FeePerHashOp:                  3,
		FeePerSignatureOp:             10,
		CreditsPerDuff:                1000,
		CorePeerAddress:               "",
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

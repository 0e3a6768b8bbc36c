// Command platformctl is the operator CLI for a running platformd node:
// key generation, identity-id derivation, node status, and signing/submitting
// state transitions over the JWT-guarded control surface.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"

	"platformchain/cmd/internal/passphrase"
	"platformchain/config"
	"platformchain/core/identity"
	"platformchain/core/wire"
	"platformchain/crypto"
)

const passphraseEnvVar = "PLATFORM_KEYSTORE_PASSPHRASE"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "gen-key":
		err = cmdGenKey(os.Args[2:])
	case "identity-id":
		err = cmdIdentityID(os.Args[2:])
	case "status":
		err = cmdStatus(os.Args[2:])
	case "submit":
		err = cmdSubmit(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: platformctl <command> [flags]

commands:
  gen-key      generate a signing key and write it to an encrypted keystore
  identity-id  derive the identity id for an asset-lock outpoint
  status       query a node's height, root, and queue depth
  submit       sign a transition file and submit it to a node`)
}

func cmdGenKey(args []string) error {
	fs := flag.NewFlagSet("gen-key", flag.ExitOnError)
	keystorePath := fs.String("keystore", "./platform.keystore", "path to write the encrypted keystore")
	_ = fs.Parse(args)

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	pass, err := passphrase.NewSource(passphraseEnvVar).Get()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*keystorePath, key, pass); err != nil {
		return err
	}
	fmt.Println("address:", key.PubKey().Address().String())
	fmt.Println("keystore:", *keystorePath)
	return nil
}

func cmdIdentityID(args []string) error {
	fs := flag.NewFlagSet("identity-id", flag.ExitOnError)
	outpointHex := fs.String("outpoint", "", "36-byte asset-lock outpoint in hex (txid || vout)")
	_ = fs.Parse(args)

	raw, err := hex.DecodeString(strings.TrimSpace(*outpointHex))
	if err != nil {
		return fmt.Errorf("decode outpoint: %w", err)
	}
	if len(raw) != 36 {
		return fmt.Errorf("outpoint must be 36 bytes, got %d", len(raw))
	}
	var outpoint identity.AssetLockOutpoint
	copy(outpoint[:], raw)
	fmt.Println(crypto.EncodeIdentityID(identity.DeriveIdentityID(outpoint)))
	return nil
}

// controlToken mints the short-lived bearer token platformd's control surface
// expects; both sides derive the HMAC key from the shared config file.
func controlToken(cfg *config.Config) (string, error) {
	secret := sha256.Sum256([]byte("platform-control:" + cfg.ValidatorKey))
	claims := jwt.RegisteredClaims{
		Issuer:    "platformctl",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(2 * time.Minute)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret[:])
}

func nodeRequest(cfg *config.Config, method, url string, body io.Reader) ([]byte, error) {
	token, err := controlToken(cfg)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("node returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	return payload, nil
}

func cmdStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "./config.toml", "path to the node configuration file")
	nodeURL := fs.String("node", "http://127.0.0.1:8080", "node control surface base URL")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	payload, err := nodeRequest(cfg, http.MethodGet, *nodeURL+"/status", nil)
	if err != nil {
		return err
	}
	fmt.Println(strings.TrimSpace(string(payload)))
	return nil
}

func cmdSubmit(args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	configPath := fs.String("config", "./config.toml", "path to the node configuration file")
	nodeURL := fs.String("node", "http://127.0.0.1:8080", "node control surface base URL")
	filePath := fs.String("file", "", "JSON transition file to sign and submit")
	keystorePath := fs.String("keystore", "", "keystore holding the signing key (omit for pre-signed files)")
	keyID := fs.Uint("key-id", 0, "identity key id the signature points at")
	_ = fs.Parse(args)

	if *filePath == "" {
		return fmt.Errorf("submit requires -file")
	}
	raw, err := os.ReadFile(*filePath)
	if err != nil {
		return err
	}
	var tx wire.StateTransition
	if err := json.Unmarshal(raw, &tx); err != nil {
		return fmt.Errorf("parse transition: %w", err)
	}

	if *keystorePath != "" {
		pass, err := passphrase.NewSource(passphraseEnvVar).Get()
		if err != nil {
			return err
		}
		key, err := crypto.LoadFromKeystore(*keystorePath, pass)
		if err != nil {
			return err
		}
		digest, err := wire.Hash(&tx)
		if err != nil {
			return err
		}
		sig, err := ethcrypto.Sign(digest[:], key.PrivateKey)
		if err != nil {
			return err
		}
		tx.Signature = wire.SignaturePointer{KeyID: uint32(*keyID), Signature: sig}
	}

	encoded, err := wire.Encode(&tx)
	if err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	body := strings.NewReader(hex.EncodeToString(encoded))
	payload, err := nodeRequest(cfg, http.MethodPost, *nodeURL+"/submit", body)
	if err != nil {
		return err
	}
	fmt.Println(strings.TrimSpace(string(payload)))
	return nil
}

package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ContestedResourceRef is the name a MasternodeVote transition votes on. The
// DPNS-style contested-username voting subsystem itself is an external
// collaborator (spec.md §1); STEP only needs to validate and address the
// name being voted on, not tally or resolve the contest.
type ContestedResourceRef struct {
	Name      string
	ContestID [32]byte
}

const (
	contestNameMinLength = 3
	contestNameMaxLength = 63
)

var (
	contestNamePattern = regexp.MustCompile(`^[a-z0-9-]+$`)
	// ErrInvalidContestName rejects a contested-resource name outside the
	// naming constraints enforced at STEP stage 4 (basic structural
	// validation) for MasternodeVote transitions.
	ErrInvalidContestName = errors.New("identity: invalid contested resource name")
)

// NormalizeContestName lowercases and validates a contested-resource name.
func NormalizeContestName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	lower := strings.ToLower(trimmed)
	length := len(lower)
	if length < contestNameMinLength || length > contestNameMaxLength {
		return "", fmt.Errorf("%w: must be between %d and %d characters", ErrInvalidContestName, contestNameMinLength, contestNameMaxLength)
	}
	if !contestNamePattern.MatchString(lower) {
		return "", fmt.Errorf("%w: allowed characters are [a-z0-9-]", ErrInvalidContestName)
	}
	return lower, nil
}

// DeriveContestID returns the deterministic contest identifier for a
// normalized contested-resource name.
func DeriveContestID(name string) [32]byte {
	normalized := strings.ToLower(strings.TrimSpace(name))
	hash := ethcrypto.Keccak256([]byte(normalized))
	var id [32]byte
	copy(id[:], hash)
	return id
}

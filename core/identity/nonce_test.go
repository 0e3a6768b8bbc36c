package identity

import (
	"errors"
	"testing"
)

func TestValidateIdentityNonce(t *testing.T) {
	tests := []struct {
		name      string
		stored    uint64
		submitted uint64
		wantErr   error
	}{
		{name: "next value accepted", stored: 4, submitted: 5},
		{name: "replay rejected", stored: 4, submitted: 4, wantErr: ErrNonceTooLow},
		{name: "stale rejected", stored: 4, submitted: 2, wantErr: ErrNonceTooLow},
		{name: "gap rejected", stored: 4, submitted: 7, wantErr: ErrNonceTooLow},
		{name: "first nonce from zero", stored: 0, submitted: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentityNonce(tt.stored, tt.submitted)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIdentityContractNonceWindow(t *testing.T) {
	t.Run("in-order consumption slides the floor", func(t *testing.T) {
		var n IdentityContractNonce
		for i := uint64(0); i < 5; i++ {
			next, err := n.Validate(i)
			if err != nil {
				t.Fatalf("nonce %d: %v", i, err)
			}
			n = next
		}
		if n.Floor != 5 || n.UsedMask != 0 {
			t.Fatalf("floor=%d mask=%b, want floor=5 mask=0", n.Floor, n.UsedMask)
		}
	})

	t.Run("out-of-order within window accepted once", func(t *testing.T) {
		var n IdentityContractNonce
		next, err := n.Validate(3)
		if err != nil {
			t.Fatalf("nonce 3: %v", err)
		}
		n = next
		if n.Floor != 0 {
			t.Fatalf("floor moved early: %d", n.Floor)
		}
		if _, err := n.Validate(3); !errors.Is(err, ErrNonceAlreadyUsed) {
			t.Fatalf("replay of 3: got %v, want ErrNonceAlreadyUsed", err)
		}
		// Filling the gap closes the contiguous run.
		for _, v := range []uint64{0, 1, 2} {
			next, err := n.Validate(v)
			if err != nil {
				t.Fatalf("nonce %d: %v", v, err)
			}
			n = next
		}
		if n.Floor != 4 || n.UsedMask != 0 {
			t.Fatalf("floor=%d mask=%b after gap fill", n.Floor, n.UsedMask)
		}
	})

	t.Run("below floor rejected", func(t *testing.T) {
		n := IdentityContractNonce{Floor: 10}
		if _, err := n.Validate(9); !errors.Is(err, ErrNonceTooLow) {
			t.Fatalf("got %v, want ErrNonceTooLow", err)
		}
	})

	t.Run("beyond window rejected", func(t *testing.T) {
		var n IdentityContractNonce
		if _, err := n.Validate(IdentityContractNonceWindowBits); !errors.Is(err, ErrNonceOutOfWindow) {
			t.Fatalf("got %v, want ErrNonceOutOfWindow", err)
		}
	})
}

package epoch

import "testing"

func TestForHeight(t *testing.T) {
	cfg := Config{Length: 100}
	tests := []struct {
		name       string
		height     uint64
		wantIndex  uint64
		wantStart  uint64
		isBoundary bool
	}{
		{name: "genesis", height: 0, wantIndex: 0, wantStart: 0, isBoundary: true},
		{name: "mid epoch", height: 57, wantIndex: 0, wantStart: 0},
		{name: "boundary", height: 100, wantIndex: 1, wantStart: 100, isBoundary: true},
		{name: "past boundary", height: 250, wantIndex: 2, wantStart: 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ForHeight(cfg, tt.height, 42)
			if got.Index != tt.wantIndex || got.StartHeight != tt.wantStart {
				t.Fatalf("got %+v", got)
			}
			if got.StartTimeMs != 42 {
				t.Fatalf("start time not carried through")
			}
			if IsBoundary(cfg, tt.height) != tt.isBoundary {
				t.Fatalf("boundary mismatch at %d", tt.height)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default invalid: %v", err)
	}
	if err := (Config{Length: 0}).Validate(); err == nil {
		t.Fatalf("zero length accepted")
	}
}

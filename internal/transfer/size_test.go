package transfer

import "testing"

func TestFormatSizePair(t *testing.T) {
	tests := []struct {
		name         string
		current      uint64
		total        uint64
		wantCurrent  string
		wantTotalStr string
	}{
		{"bytes", 500, 500, "500", "500 B"},
		{"zero", 0, 0, "0", "0 B"},
		{"current scaled to total unit", 1500, 2_000_000, "0.00", "2 MB"},
		{"fractional total", 1_250_000, 2_500_000, "1.25", "2.50 MB"},
		{"kilobytes", 1000, 1500, "1", "1.50 kB"},
		{"overshoot kept as-is", 1_500_000, 999_500, "1500", "999.50 kB"},
		{"terabytes", 3_000_000_000_000, 3_000_000_000_000, "3", "3 TB"},
		{"largest uint64", 18_446_744_073_709_551_615, 18_446_744_073_709_551_615, "18.45", "18.45 EB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotCurrent, gotTotal := FormatSizePair(tt.current, tt.total)
			if gotCurrent != tt.wantCurrent || gotTotal != tt.wantTotalStr {
				t.Errorf("FormatSizePair(%d, %d) = (%q, %q); want (%q, %q)",
					tt.current, tt.total, gotCurrent, gotTotal, tt.wantCurrent, tt.wantTotalStr)
			}
		})
	}
}

func TestFormatSizePairDeterministic(t *testing.T) {
	c1, t1 := FormatSizePair(123_456, 7_890_123)
	c2, t2 := FormatSizePair(123_456, 7_890_123)
	if c1 != c2 || t1 != t2 {
		t.Errorf("same input produced (%q, %q) and (%q, %q)", c1, t1, c2, t2)
	}
}

func TestScaleLadder(t *testing.T) {
	if len(scaleDecimal) != 9 {
		t.Fatalf("ladder has %d entries, want 9", len(scaleDecimal))
	}
	if scaleDecimal[0] != "B" || scaleDecimal[len(scaleDecimal)-1] != "YB" {
		t.Errorf("ladder bounds = %q..%q", scaleDecimal[0], scaleDecimal[len(scaleDecimal)-1])
	}
}

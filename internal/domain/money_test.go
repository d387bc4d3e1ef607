package domain

import "testing"

func TestApplyRateRoundsHalfAwayFromZero(t *testing.T) {
	tests := []struct {
		amount Cents
		bp     BasisPoints
		want   Cents
	}{
		{Dollars(100), 500, 500},
		{1010, 500, 51}, // 50.5 -> 51
		{1009, 500, 50},
		{-1010, 500, -51},
		{0, 500, 0},
	}

	for _, tc := range tests {
		if got := tc.amount.ApplyRate(tc.bp); got != tc.want {
			t.Fatalf("%d @ %dbp = %d, want %d", tc.amount, tc.bp, got, tc.want)
		}
	}
}

func TestMileagePay(t *testing.T) {
	if got := MileagePay(16093, 50); got != 500 {
		t.Fatalf("10 miles (16093m) @ $0.50 = %v, want $5.00", got)
	}
	if got := MileagePay(0, 50); got != 0 {
		t.Fatalf("zero distance = %v, want 0", got)
	}
}

func TestCentsString(t *testing.T) {
	if got := Cents(10550).String(); got != "$105.50" {
		t.Fatalf("got %q", got)
	}
	if got := Cents(-5).String(); got != "-$0.05" {
		t.Fatalf("got %q", got)
	}
}

package money

import "testing"

func TestSplitEven(t *testing.T) {
	tests := []struct {
		name  string
		total Cents
		n     int
		want  []Cents
	}{
		{
			name:  "divides exactly",
			total: 9000,
			n:     3,
			want:  []Cents{3000, 3000, 3000},
		},
		{
			name:  "remainder cents go to first parts",
			total: 10360, // R$103.60 across 3 payers
			n:     3,
			want:  []Cents{3454, 3453, 3453},
		},
		{
			name:  "two cents left over",
			total: 1001,
			n:     3,
			want:  []Cents{334, 334, 333},
		},
		{
			name:  "single payer",
			total: 777,
			n:     1,
			want:  []Cents{777},
		},
		{
			name:  "zero parts",
			total: 100,
			n:     0,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitEven(tt.total, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitEven(%d, %d) returned %d parts, want %d", tt.total, tt.n, len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("part %d = %d, want %d", i, got[i], tt.want[i])
				}
			}
			if tt.n > 0 && Sum(got) != tt.total {
				t.Errorf("parts sum to %d, want %d", Sum(got), tt.total)
			}
		})
	}
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name    string
		total   Cents
		weights []Cents
		want    []Cents
	}{
		{
			name:    "proportional exact",
			total:   1564, // 10% tax over weights summing 15640
			weights: []Cents{9150, 5230, 1260},
			want:    []Cents{915, 523, 126},
		},
		{
			name:    "largest remainder wins the leftover cent",
			total:   500,
			weights: []Cents{9150, 5230, 1260},
			want:    []Cents{293, 167, 40},
		},
		{
			name:    "zero weight gets nothing",
			total:   100,
			weights: []Cents{1, 0},
			want:    []Cents{100, 0},
		},
		{
			name:    "zero weight sum yields zero shares",
			total:   100,
			weights: []Cents{0, 0},
			want:    []Cents{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Allocate(tt.total, tt.weights)
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("share %d = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCentsString(t *testing.T) {
	tests := []struct {
		amount Cents
		want   string
	}{
		{10360, "103.60"},
		{5, "0.05"},
		{0, "0.00"},
		{-150, "-1.50"},
	}
	for _, tt := range tests {
		if got := tt.amount.String(); got != tt.want {
			t.Errorf("Cents(%d).String() = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

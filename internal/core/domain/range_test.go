package domain

import (
	"testing"
)

func TestRange_Split(t *testing.T) {
	tests := []struct {
		name     string
		r        Range
		maxSize  uint64
		expected []Range
	}{
		{
			name:     "fits in one chunk",
			r:        Range{Start: 1, End: 100},
			maxSize:  100,
			expected: []Range{{Start: 1, End: 100}},
		},
		{
			name:     "exact multiple",
			r:        Range{Start: 1, End: 200},
			maxSize:  100,
			expected: []Range{{Start: 1, End: 100}, {Start: 101, End: 200}},
		},
		{
			name:     "remainder chunk",
			r:        Range{Start: 10, End: 34},
			maxSize:  10,
			expected: []Range{{Start: 10, End: 19}, {Start: 20, End: 29}, {Start: 30, End: 34}},
		},
		{
			name:     "zero max means no split",
			r:        Range{Start: 5, End: 500},
			maxSize:  0,
			expected: []Range{{Start: 5, End: 500}},
		},
		{
			name:     "single block",
			r:        Range{Start: 7, End: 7},
			maxSize:  10,
			expected: []Range{{Start: 7, End: 7}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := tt.r.Split(tt.maxSize)
			if len(chunks) != len(tt.expected) {
				t.Fatalf("Expected %d chunks, got %d: %v", len(tt.expected), len(chunks), chunks)
			}
			for i, c := range chunks {
				if c != tt.expected[i] {
					t.Errorf("Chunk %d: expected %v, got %v", i, tt.expected[i], c)
				}
			}
		})
	}
}

func TestRange_Size(t *testing.T) {
	r := Range{Start: 100, End: 104}
	if r.Size() != 5 {
		t.Errorf("Expected size 5, got %d", r.Size())
	}
	single := Range{Start: 7, End: 7}
	if single.Size() != 1 {
		t.Errorf("Expected size 1, got %d", single.Size())
	}
}

func TestMergeRanges(t *testing.T) {
	ranges := []Range{
		{Start: 50, End: 60},
		{Start: 1, End: 10},
		{Start: 11, End: 20}, // adjacent to 1-10
		{Start: 55, End: 70}, // overlaps 50-60
	}

	merged := MergeRanges(ranges)
	expected := []Range{{Start: 1, End: 20}, {Start: 50, End: 70}}

	if len(merged) != len(expected) {
		t.Fatalf("Expected %d merged ranges, got %d: %v", len(expected), len(merged), merged)
	}
	for i, r := range merged {
		if r != expected[i] {
			t.Errorf("Range %d: expected %v, got %v", i, expected[i], r)
		}
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("100-200")
	if err != nil {
		t.Fatalf("ParseRange failed: %v", err)
	}
	if r.Start != 100 || r.End != 200 {
		t.Errorf("Expected 100-200, got %v", r)
	}

	if _, err := ParseRange("garbage"); err == nil {
		t.Error("Expected error for malformed range")
	}
	if _, err := ParseRange("200-100"); err == nil {
		t.Error("Expected error for inverted range")
	}
}

func TestRange_RoundTrip(t *testing.T) {
	orig := Range{Start: 18000000, End: 18999999}
	parsed, err := ParseRange(orig.String())
	if err != nil {
		t.Fatalf("ParseRange failed: %v", err)
	}
	if parsed != orig {
		t.Errorf("Expected %v, got %v", orig, parsed)
	}
}

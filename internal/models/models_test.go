package models

import (
	"testing"
	"time"
)

// TestSplitList tests splitting of comma separated option values
func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Empty string",
			input:    "",
			expected: []string{},
		},
		{
			name:     "Single item",
			input:    "EMAIL",
			expected: []string{"EMAIL"},
		},
		{
			name:     "Multiple items with blanks",
			input:    " EMAIL, PHONE ,,NAME ",
			expected: []string{"EMAIL", "PHONE", "NAME"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SplitList(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("SplitList() returned %d items, want %d", len(result), len(tt.expected))
			}
			for i, item := range result {
				if item != tt.expected[i] {
					t.Errorf("SplitList()[%d] = %v, want %v", i, item, tt.expected[i])
				}
			}
		})
	}
}

func TestEngineTimeout(t *testing.T) {
	tests := []struct {
		timeout  int
		expected time.Duration
	}{
		{0, 0},
		{-5, 0},
		{250, 250 * time.Millisecond},
	}
	for _, tt := range tests {
		o := Options{Timeout: tt.timeout}
		if got := o.EngineTimeout(); got != tt.expected {
			t.Errorf("EngineTimeout() with %d = %v, want %v", tt.timeout, got, tt.expected)
		}
	}
}

func TestCORSOriginList(t *testing.T) {
	o := Options{}
	if got := o.CORSOriginList(); len(got) != 1 || got[0] != "*" {
		t.Errorf("CORSOriginList() of empty option = %v, want [*]", got)
	}
	o.CORSOrigins = "https://a.example, https://b.example"
	if got := o.CORSOriginList(); len(got) != 2 || got[1] != "https://b.example" {
		t.Errorf("CORSOriginList() = %v", got)
	}
}

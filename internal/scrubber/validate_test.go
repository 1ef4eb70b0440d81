package scrubber

import "testing"

func TestLuhnValid(t *testing.T) {
	tests := []struct {
		number string
		want   bool
	}{
		{"4111111111111111", true},
		{"5555555555554444", true},
		{"4111111111111112", false},
		{"1", false},
		{"41x1", false},
	}
	for _, tt := range tests {
		if got := luhnValid(tt.number); got != tt.want {
			t.Errorf("luhnValid(%q) = %v, want %v", tt.number, got, tt.want)
		}
	}
}

func TestValidateIBAN(t *testing.T) {
	tests := []struct {
		name string
		iban string
		want bool
	}{
		{"Valid GB", "GB82 WEST 1234 5698 7654 32", true},
		{"Valid DE", "DE89370400440532013000", true},
		{"Wrong check digits", "GB82WEST12345698765431", false},
		{"Wrong length", "DE8937040044053201300", false},
		{"Unknown country", "XX82WEST12345698765432", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validate(ValidatorIBAN, tt.iban); got != tt.want {
				t.Errorf("validate(iban, %q) = %v, want %v", tt.iban, got, tt.want)
			}
		})
	}
}

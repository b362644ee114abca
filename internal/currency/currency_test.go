package currency

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"whole amount", "10", "R$10,00"},
		{"cents", "0.50", "R$0,50"},
		{"thousands separator", "1234.56", "R$1.234,56"},
		{"millions", "1234567.89", "R$1.234.567,89"},
		{"rounds half even", "10.005", "R$10,00"},
		{"zero", "0", "R$0,00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := decimal.NewFromString(tt.input)
			if err != nil {
				t.Fatalf("invalid input %q: %v", tt.input, err)
			}
			if got := FormatBRL(d); got != tt.want {
				t.Errorf("FormatBRL(%s) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

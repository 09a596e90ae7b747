package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatAmount(t *testing.T) {
	d := decimal.RequireFromString("99.9")
	cases := []struct {
		in   any
		want string
	}{
		{nil, Placeholder},
		{"", Placeholder},
		{"   ", Placeholder},
		{"abc", Placeholder},
		{math.NaN(), Placeholder},
		{math.Inf(1), Placeholder},
		{decimal.NullDecimal{}, Placeholder},
		{(*decimal.Decimal)(nil), Placeholder},
		{true, Placeholder},
		{0, "$0.00"},
		{26, "$26.00"},
		{int64(1000), "$1,000.00"},
		{1234.5, "$1,234.50"},
		{"1234567.891", "$1,234,567.89"},
		{" 10.5 ", "$10.50"},
		{json.Number("10.5"), "$10.50"},
		{-5, "-$5.00"},
		{"-1234", "-$1,234.00"},
		{"-0.001", "$0.00"},
		{decimal.NewNullDecimal(decimal.NewFromInt(7)), "$7.00"},
		{&d, "$99.90"},
		{uint8(3), "$3.00"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.in); got != tc.want {
			t.Errorf("FormatAmount(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatAmountNilAndEmptyAgree(t *testing.T) {
	if FormatAmount(nil) != FormatAmount("") {
		t.Fatalf("nil and empty string should format identically")
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"25", "25", true},
		{" 12.50 ", "12.5", true},
		{"12,50", "12.5", true},
		{"0", "0", true},
		{"-3", "-3", true},
		{"", "", false},
		{"abc", "", false},
		{"1,234.50", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if !tc.ok {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("ParseAmount(%q) err = %v, want ErrInvalidAmount", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("ParseAmount(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

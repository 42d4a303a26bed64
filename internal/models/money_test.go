package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPercentOf(t *testing.T) {
	cases := []struct {
		name    string
		amount  int64
		percent string
		want    int64
	}{
		{name: "exact", amount: 10000, percent: "10", want: 1000},
		{name: "half rounds up", amount: 5, percent: "10", want: 1},       // 0.5 -> 1
		{name: "below half rounds down", amount: 4, percent: "10", want: 0}, // 0.4 -> 0
		{name: "fractional percent", amount: 9999, percent: "0.5", want: 50}, // 49.995 -> 50
		{name: "quarter percent", amount: 1000, percent: "0.25", want: 3},    // 2.5 -> 3
		{name: "full percent", amount: 777, percent: "100", want: 777},
		{name: "zero amount", amount: 0, percent: "10", want: 0},
		{name: "negative amount", amount: -100, percent: "10", want: 0},
		{name: "zero percent", amount: 10000, percent: "0", want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PercentOf(tc.amount, decimal.RequireFromString(tc.percent))
			if got != tc.want {
				t.Fatalf("PercentOf(%d, %s) = %d, want %d", tc.amount, tc.percent, got, tc.want)
			}
		})
	}
}

func TestRoundHalfUpTenge(t *testing.T) {
	cases := []struct {
		value string
		want  int64
	}{
		{value: "0", want: 0},
		{value: "2.4", want: 2},
		{value: "2.5", want: 3},
		{value: "2.6", want: 3},
		{value: "49.995", want: 50},
		{value: "-2.4", want: -2},
		{value: "-2.5", want: -3},
		{value: "-2.6", want: -3},
	}
	for _, tc := range cases {
		got := RoundHalfUpTenge(decimal.RequireFromString(tc.value))
		if got != tc.want {
			t.Fatalf("RoundHalfUpTenge(%s) = %d, want %d", tc.value, got, tc.want)
		}
	}
}

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundMoney_HalfEven(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2.345", "2.34"},
		{"2.355", "2.36"},
		{"2.3450001", "2.35"},
		{"-1.005", "-1.00"},
		{"19222", "19222.00"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := RoundMoney(MustMoney(tt.in))
			assert.Equal(t, tt.want, got.StringFixed(MoneyScale))
		})
	}
}

func TestPercent_Exact(t *testing.T) {
	got := Percent(MustMoney("15000"), MustMoney("12"))
	assert.True(t, got.Equal(MustMoney("1800")), got.String())

	got = Percent(MustMoney("0.10"), MustMoney("3"))
	assert.True(t, got.Equal(MustMoney("0.003")), got.String())
}

func TestClampZero(t *testing.T) {
	v, clamped := ClampZero(MustMoney("-0.01"))
	assert.True(t, v.IsZero())
	assert.True(t, clamped)

	v, clamped = ClampZero(MustMoney("12.50"))
	assert.Equal(t, "12.5", v.String())
	assert.False(t, clamped)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "90.00", FormatMoney(MustMoney("90")))
	assert.Equal(t, "0.12", FormatMoney(MustMoney("0.125")))
}

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorPercent(t *testing.T) {
	tests := []struct {
		name string
		base string
		rate string
		want string
	}{
		{"technician 10% of 2,000,000", "2000000", "10", "200000"},
		{"sales default 5% of 10,000,000", "10000000", "5", "500000"},
		{"fractional result floors", "999", "10", "99"},
		{"fractional rate", "1000", "2.5", "25"},
		{"zero rate", "1000", "0", "0"},
		{"zero base", "0", "10", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FloorPercent(MustMoney(tt.base), MustMoney(tt.rate))
			assert.True(t, got.Equal(MustMoney(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestValidPercent(t *testing.T) {
	assert.True(t, ValidPercent(NewPercent(0)))
	assert.True(t, ValidPercent(NewPercent(100)))
	assert.True(t, ValidPercent(NewPercent(12.5)))
	assert.False(t, ValidPercent(NewPercent(-1)))
	assert.False(t, ValidPercent(NewPercent(100.01)))
}

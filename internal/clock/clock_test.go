package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_Now(t *testing.T) {
	before := time.Now()
	now := RealClock{}.Now()
	after := time.Now()

	assert.False(t, now.Before(before))
	assert.False(t, now.After(after))
}

func TestMockClock(t *testing.T) {
	base := time.UnixMilli(1700000000000)
	clk := NewMockClock(base)

	assert.Equal(t, base, clk.Now())

	clk.Advance(time.Minute)
	assert.Equal(t, base.Add(time.Minute), clk.Now())

	clk.Set(base)
	assert.Equal(t, base, clk.Now())
}

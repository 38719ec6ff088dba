package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRatioComputesPercentage(t *testing.T) {
	p := FromRatio(3, 4)
	assert.InDelta(t, 75.0, p.Value(), 0.0001)
}

func TestFromRatioZeroTotalIsZero(t *testing.T) {
	p := FromRatio(0, 0)
	assert.Equal(t, 0.0, p.Value())
}

func TestFormatRespectsPrecision(t *testing.T) {
	p := NewPercentage(66.6666)
	assert.Equal(t, "66.67%", p.Format(2))
	assert.Equal(t, "67%", p.Format(0))
}

package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorForLabelCyclesPalette(t *testing.T) {
	assert.Equal(t, palette[0], ColorForLabel(0, false))
	assert.Equal(t, palette[1], ColorForLabel(1, false))
	assert.Equal(t, palette[0], ColorForLabel(len(palette), false))
	assert.Equal(t, palette[3], ColorForLabel(-3, false))
}

func TestColorForLabelInterpolated(t *testing.T) {
	assert.Equal(t, interpolatedColor, ColorForLabel(5, true))
}

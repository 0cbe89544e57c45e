package currency

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCNY(t *testing.T) {
	out := CNY(1500)
	assert.True(t, strings.Contains(out, "1,500.00"), out)
	assert.Contains(t, CNY(-12.5), "12.50")
	assert.Equal(t, "-", CNY(math.NaN()))
	assert.Equal(t, "-", CNY(math.Inf(1)))
}

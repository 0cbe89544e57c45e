package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunes(t *testing.T) {
	assert.Equal(t, "沪深", Runes("沪深300", 2))
	assert.Equal(t, "沪深300", Runes("沪深300", 10))
	assert.Equal(t, "abc", Runes("abc", 0))
	assert.Equal(t, "", Runes("", 3))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	// "沪" 占 3 字节，上限 4 时只能保留一个完整字符
	assert.Equal(t, "沪...", Truncate("沪深300", 4))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "中中...", Truncate(strings.Repeat("中", 10), 7))
}

package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSum(t *testing.T) {
	// 空输入的 SHA-256 是固定常量
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Sum(nil))
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", Sum([]byte("hello")))
}

func TestSumDiffersByContent(t *testing.T) {
	a := Sum([]byte("document-a"))
	b := Sum([]byte("document-b"))
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)
}

package redisbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOptions(t *testing.T) {
	opt := ParseOptions("redis://:secret@cache:6380/2")
	assert.Equal(t, "cache:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)

	opt = ParseOptions("localhost:6379")
	assert.Equal(t, "localhost:6379", opt.Addr)
}

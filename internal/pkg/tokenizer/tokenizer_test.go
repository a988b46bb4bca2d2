package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount(t *testing.T) {
	assert.Zero(t, Count(""))
	assert.Positive(t, Count("hello world"))
	assert.Equal(t, Count("hello")+Count("world"), CountAll("hello", "", "world"))
}

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Contains(t, String(), "mindvault ")
	assert.Contains(t, String(), Version)
	assert.Contains(t, String(), Commit)
}

func TestShort(t *testing.T) {
	assert.Equal(t, Version, Short())
}

package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "an***@example.com", MaskEmail("ana.torres@example.com"))
	assert.Equal(t, "a***@example.com", MaskEmail("ab@example.com"))
	assert.Equal(t, "***", MaskEmail("not-an-email"))
	assert.Equal(t, "***", MaskEmail(""))
}

func TestMaskIP(t *testing.T) {
	assert.Equal(t, "203.0.x.x", MaskIP("203.0.113.7"))
	assert.Equal(t, "2001::x", MaskIP("2001:db8::1"))
	assert.Equal(t, "", MaskIP(""))
	assert.Equal(t, "***", MaskIP("garbage"))
}

package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	constraints := []string{No, Yes}
	assert.Equal(t, Yes, match("Y", constraints))
	assert.Equal(t, Yes, match(" y ", constraints))
	assert.Equal(t, No, match("", constraints))
	assert.Equal(t, No, match("maybe", constraints))
}

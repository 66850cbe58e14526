package protoerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", New(NotFound).Error())
	assert.Equal(t, "BAD_FORMAT: missing args", Newf(BadFormat, "missing args").Error())
}

func TestNameErrorWrapsAndFormats(t *testing.T) {
	base := errors.New("name too long")
	ne := &NameError{Name: "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx", Err: base}
	assert.Equal(t, "name too long: xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx", ne.Error())
	assert.True(t, errors.Is(ne, base))
}

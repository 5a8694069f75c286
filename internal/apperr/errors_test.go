package apperr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderCarriesFields(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := New(cause).Component("storage").Category(CategoryStorage).
		Context("path", "/data/audio").Build()

	assert.Equal(t, "storage", err.Component())
	assert.Equal(t, CategoryStorage, err.Category())
	assert.Equal(t, "/data/audio", err.Context()["path"])
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, Is(err, cause))
}

func TestCategoryOfUnwrapsChain(t *testing.T) {
	inner := Newf("bad frame length").Component("vad").Category(CategoryVAD).Build()
	wrapped := fmt.Errorf("processing chunk: %w", inner)

	assert.Equal(t, CategoryVAD, CategoryOf(wrapped))
	assert.Equal(t, Category(""), CategoryOf(fmt.Errorf("plain")))

	var target *Error
	require.True(t, As(wrapped, &target))
	assert.Equal(t, "vad", target.Component())
}

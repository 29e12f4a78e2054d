package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewImageStoreRequiresCredentials(t *testing.T) {
	t.Setenv("CLOUDINARY_CLOUD_NAME", "")
	t.Setenv("CLOUDINARY_API_KEY", "key")
	t.Setenv("CLOUDINARY_API_SECRET", "secret")

	store, err := NewImageStore()
	assert.Nil(t, store)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewImageStoreWithCredentials(t *testing.T) {
	t.Setenv("CLOUDINARY_CLOUD_NAME", "demo")
	t.Setenv("CLOUDINARY_API_KEY", "key")
	t.Setenv("CLOUDINARY_API_SECRET", "secret")

	store, err := NewImageStore()
	assert.NoError(t, err)
	assert.NotNil(t, store)
}

package minio

import (
	"errors"
	"io/fs"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no such key", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, fs.ErrNotExist},
		{"no such bucket", minio.ErrorResponse{Code: "NoSuchBucket"}, fs.ErrNotExist},
		{"head not found", minio.ErrorResponse{StatusCode: http.StatusNotFound}, fs.ErrNotExist},
		{"access denied", minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, fs.ErrPermission},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateError(tt.err)
			assert.ErrorIs(t, err, tt.want)

			var resp minio.ErrorResponse
			assert.True(t, errors.As(err, &resp))
		})
	}

	other := errors.New("connection reset")
	assert.Same(t, other, translateError(other))
}

func TestNew(t *testing.T) {
	client, err := NewClient("localhost:9000", "access", "secret", false)
	require.NoError(t, err)

	b := New(client, "assets", WithPrefix("game/"), WithTimeout(0))
	assert.Equal(t, "assets", b.Bucket())
	assert.Same(t, client, b.Client())
	assert.Equal(t, "game/textures/a.png", b.Key("/textures/a.png"))
}

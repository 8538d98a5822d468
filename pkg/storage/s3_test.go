package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestIsS3Conflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "precondition failed",
			err:  &smithy.GenericAPIError{Code: "PreconditionFailed"},
			want: true,
		},
		{
			name: "concurrent conditional request",
			err:  fmt.Errorf("operation error S3: PutObject: %w", &smithy.GenericAPIError{Code: "ConditionalRequestConflict"}),
			want: true,
		},
		{
			name: "key deleted under if-match",
			err:  &smithy.GenericAPIError{Code: "NoSuchKey"},
			want: true,
		},
		{
			name: "access denied",
			err:  &smithy.GenericAPIError{Code: "AccessDenied"},
			want: false,
		},
		{
			name: "transport error",
			err:  errors.New("connection refused"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isS3Conflict(tt.err))
		})
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/javascript", contentType("bench/data.js"))
	assert.Equal(t, "application/json", contentType("bench/data.json"))
	assert.Equal(t, "application/octet-stream", contentType("bench/data"))
}

func TestCheckSize(t *testing.T) {
	assert.NoError(t, checkSize(10, 0))
	assert.NoError(t, checkSize(10, 10))
	assert.ErrorIs(t, checkSize(11, 10), ErrDocumentTooLarge)
}

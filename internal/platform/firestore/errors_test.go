package firestore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/russellmoss/guest-count-check/internal/platform/config"
)

func TestWrapErrorCategorisesCodes(t *testing.T) {
	cases := []struct {
		code        codes.Code
		notFound    bool
		unavailable bool
		denied      bool
	}{
		{code: codes.NotFound, notFound: true},
		{code: codes.Unavailable, unavailable: true},
		{code: codes.ResourceExhausted, unavailable: true},
		{code: codes.PermissionDenied, denied: true},
		{code: codes.InvalidArgument},
	}
	for _, tc := range cases {
		err := WrapError("get config/exclusions", status.Error(tc.code, "x"))
		var fsErr *Error
		require.ErrorAs(t, err, &fsErr, tc.code.String())
		assert.Equal(t, tc.notFound, fsErr.IsNotFound(), tc.code.String())
		assert.Equal(t, tc.unavailable, fsErr.IsUnavailable(), tc.code.String())
		assert.Equal(t, tc.denied, fsErr.IsPermissionDenied(), tc.code.String())
		assert.Equal(t, tc.code, fsErr.Code())
	}
}

func TestWrapErrorPassesThroughCancellation(t *testing.T) {
	require.NoError(t, WrapError("op", nil))
	require.ErrorIs(t, WrapError("op", context.DeadlineExceeded), context.DeadlineExceeded)
	require.ErrorIs(t, WrapError("op", status.Error(codes.Canceled, "gone")), context.Canceled)
}

func TestProviderRequiresProject(t *testing.T) {
	provider := NewProvider(config.FirestoreConfig{})
	_, err := provider.Client(context.Background())
	require.Error(t, err, "project id is required")

	_, err = GetDocument[map[string]any](context.Background(), provider, "config")
	require.Error(t, err, "collection paths are not documents")
}

func TestProviderClosed(t *testing.T) {
	provider := NewProvider(config.FirestoreConfig{ProjectID: "gc"})
	require.NoError(t, provider.Close())

	_, err := provider.Client(context.Background())
	require.True(t, errors.Is(err, ErrProviderClosed), "got %v", err)
}

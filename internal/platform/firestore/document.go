package firestore

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Document is a decoded Firestore document with its metadata timestamps.
type Document[T any] struct {
	ID         string
	Path       string
	Data       T
	UpdateTime time.Time
	ReadTime   time.Time
}

// GetDocument reads the document at path ("collection/doc[/collection/doc...]") and decodes it
// into T using firestore struct tags.
func GetDocument[T any](ctx context.Context, provider *Provider, path string) (Document[T], error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" || strings.Count(path, "/")%2 != 1 {
		return Document[T]{}, fmt.Errorf("firestore: invalid document path %q", path)
	}
	client, err := provider.Client(ctx)
	if err != nil {
		return Document[T]{}, err
	}

	snap, err := client.Doc(path).Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError("get "+path, err)
	}
	var data T
	if err := snap.DataTo(&data); err != nil {
		return Document[T]{}, fmt.Errorf("firestore: decode %s: %w", path, err)
	}
	return Document[T]{
		ID:         snap.Ref.ID,
		Path:       path,
		Data:       data,
		UpdateTime: snap.UpdateTime,
		ReadTime:   snap.ReadTime,
	}, nil
}

// PingPath is read by Ping when the caller has no document of its own to read.
const PingPath = "_health/ping"

// Ping confirms the backend answers by reading the document at path. A missing document still
// counts as reachable.
func Ping(ctx context.Context, provider *Provider, path string) error {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		path = PingPath
	}
	client, err := provider.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Doc(path).Get(ctx)
	if err == nil {
		return nil
	}
	wrapped := WrapError("ping", err)
	if repoErr, ok := wrapped.(*Error); ok && repoErr.IsNotFound() {
		return nil
	}
	return wrapped
}

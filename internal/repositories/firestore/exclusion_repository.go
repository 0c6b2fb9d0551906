package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/russellmoss/guest-count-check/internal/guestcount"
	pfirestore "github.com/russellmoss/guest-count-check/internal/platform/firestore"
	"github.com/russellmoss/guest-count-check/internal/repositories"
)

type exclusionDocument struct {
	Products []exclusionEntry `firestore:"products"`
}

type exclusionEntry struct {
	ID       string `firestore:"id"`
	Label    string `firestore:"label"`
	Category string `firestore:"category"`
}

// ExclusionRepository reads the excluded product list from a single Firestore document so
// operators can edit it without a redeploy. Changes apply on the next start.
type ExclusionRepository struct {
	provider *pfirestore.Provider
	path     string
}

var _ repositories.ExclusionSource = (*ExclusionRepository)(nil)

// NewExclusionRepository binds the repository to the document at path, e.g.
// "config/guestCountExclusions".
func NewExclusionRepository(provider *pfirestore.Provider, path string) (*ExclusionRepository, error) {
	if provider == nil {
		return nil, errors.New("exclusion repository: firestore provider is required")
	}
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" || strings.Count(path, "/")%2 != 1 {
		return nil, fmt.Errorf("exclusion repository: %q is not a document path", path)
	}
	return &ExclusionRepository{provider: provider, path: path}, nil
}

func (r *ExclusionRepository) Name() string { return "firestore:" + r.path }

// LoadExclusions returns the products listed in the document. A missing document is an error
// because the path was configured explicitly.
func (r *ExclusionRepository) LoadExclusions(ctx context.Context) ([]guestcount.ExcludedProduct, error) {
	doc, err := pfirestore.GetDocument[exclusionDocument](ctx, r.provider, r.path)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return nil, fmt.Errorf("exclusion document %s does not exist: %w", r.path, err)
		}
		return nil, err
	}
	return decodeExclusions(doc.Data), nil
}

func decodeExclusions(doc exclusionDocument) []guestcount.ExcludedProduct {
	products := make([]guestcount.ExcludedProduct, 0, len(doc.Products))
	for _, entry := range doc.Products {
		products = append(products, guestcount.ExcludedProduct{
			ID:       entry.ID,
			Label:    entry.Label,
			Category: guestcount.Category(entry.Category),
		})
	}
	return products
}

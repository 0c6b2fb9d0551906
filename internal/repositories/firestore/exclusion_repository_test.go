package firestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/russellmoss/guest-count-check/internal/guestcount"
	"github.com/russellmoss/guest-count-check/internal/platform/config"
	pfirestore "github.com/russellmoss/guest-count-check/internal/platform/firestore"
)

func TestNewExclusionRepositoryValidatesPath(t *testing.T) {
	provider := pfirestore.NewProvider(config.FirestoreConfig{ProjectID: "gc"})

	for _, path := range []string{"", "config", "config/a/b"} {
		_, err := NewExclusionRepository(provider, path)
		assert.Error(t, err, path)
	}

	repo, err := NewExclusionRepository(provider, "/config/guestCountExclusions/")
	require.NoError(t, err)
	require.Equal(t, "firestore:config/guestCountExclusions", repo.Name())

	_, err = NewExclusionRepository(nil, "config/x")
	require.Error(t, err, "provider is required")
}

func TestDecodeExclusions(t *testing.T) {
	products := decodeExclusions(exclusionDocument{Products: []exclusionEntry{
		{ID: "prod-1", Label: "Club Member Tasting", Category: "club_member"},
		{ID: "prod-2"},
	}})

	require.Equal(t, []guestcount.ExcludedProduct{
		{ID: "prod-1", Label: "Club Member Tasting", Category: guestcount.CategoryClubMember},
		{ID: "prod-2"},
	}, products)
}

func TestLoadExclusionsWithoutProject(t *testing.T) {
	repo, err := NewExclusionRepository(pfirestore.NewProvider(config.FirestoreConfig{}), "config/exclusions")
	require.NoError(t, err)

	_, err = repo.LoadExclusions(context.Background())
	require.Error(t, err, "client needs a project id")
}

package repositories

import (
	"context"

	"github.com/russellmoss/guest-count-check/internal/domain"
	"github.com/russellmoss/guest-count-check/internal/guestcount"
)

// ExclusionSource supplies excluded products from one configuration origin.
type ExclusionSource interface {
	// Name identifies the source in logs, e.g. "env" or "file:/etc/exclusions.yaml".
	Name() string
	LoadExclusions(ctx context.Context) ([]guestcount.ExcludedProduct, error)
}

// HealthRepository reports the status of the service's dependencies.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// RepositoryError categorises persistence failures so services can react without inspecting
// backend-specific codes.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsUnavailable() bool
}

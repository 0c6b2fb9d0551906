package repositories

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/russellmoss/guest-count-check/internal/guestcount"
)

// EnvExclusionSource turns a list of product ids (typically EXCLUSIONS_PRODUCT_IDS) into
// uncategorised exclusions.
type EnvExclusionSource struct {
	ProductIDs []string
}

func (s EnvExclusionSource) Name() string { return "env" }

func (s EnvExclusionSource) LoadExclusions(context.Context) ([]guestcount.ExcludedProduct, error) {
	products := make([]guestcount.ExcludedProduct, 0, len(s.ProductIDs))
	for _, id := range s.ProductIDs {
		if id = strings.TrimSpace(id); id != "" {
			products = append(products, guestcount.ExcludedProduct{ID: id})
		}
	}
	return products, nil
}

// exclusionFile is the YAML layout:
//
//	products:
//	  - id: 6f1c2a9e-4b7d-4e1a-9c3f-0d8e5b2a7c41
//	    label: Club Member Tasting
//	    category: club_member
type exclusionFile struct {
	Products []guestcount.ExcludedProduct `yaml:"products"`
}

// FileExclusionSource reads exclusions from a YAML file.
type FileExclusionSource struct {
	Path string
}

func (s FileExclusionSource) Name() string { return "file:" + s.Path }

func (s FileExclusionSource) LoadExclusions(context.Context) ([]guestcount.ExcludedProduct, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("exclusions: read %s: %w", s.Path, err)
	}
	var doc exclusionFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("exclusions: parse %s: %w", s.Path, err)
	}
	return doc.Products, nil
}

// LoadExclusionSet merges every source into one immutable set. Any source failure or invalid
// entry aborts start-up; an empty result only warns because every unrecorded order is then
// reported.
func LoadExclusionSet(ctx context.Context, logger *zap.Logger, sources ...ExclusionSource) (guestcount.ExclusionSet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var all []guestcount.ExcludedProduct
	for _, source := range sources {
		if source == nil {
			continue
		}
		products, err := source.LoadExclusions(ctx)
		if err != nil {
			return guestcount.ExclusionSet{}, fmt.Errorf("exclusion source %s: %w", source.Name(), err)
		}
		logger.Debug("exclusion source loaded", zap.String("source", source.Name()), zap.Int("products", len(products)))
		all = append(all, products...)
	}

	set, err := guestcount.NewExclusionSet(all...)
	if err != nil {
		return guestcount.ExclusionSet{}, err
	}
	if set.Len() == 0 {
		logger.Warn("exclusion set is empty; every order without a guest count will be reported")
		return set, nil
	}

	fields := []zap.Field{zap.Int("products", set.Len())}
	for category, count := range set.CountByCategory() {
		name := string(category)
		if category == guestcount.CategoryUnspecified {
			name = "unspecified"
		}
		fields = append(fields, zap.Int("category."+name, count))
	}
	logger.Info("exclusion set loaded", fields...)
	return set, nil
}

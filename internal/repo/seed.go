package repo

import (
	"context"
	"fmt"
)

var defaultSchemeRates = []float64{0.5, 1.0, 1.5, 2.0}

// SeedDefaults creates the standard interest schemes when none exist.
func SeedDefaults(ctx context.Context, r Repository) error {
	existing, err := r.ListInterestSchemes(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, rate := range defaultSchemeRates {
		if _, err := r.CreateInterestScheme(ctx, rate, fmt.Sprintf("%g%% Interest", rate)); err != nil {
			return fmt.Errorf("seed interest schemes: %w", err)
		}
	}
	return nil
}

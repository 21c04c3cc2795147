package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"GoldPledge/internal/calc/loan"
	"GoldPledge/internal/model"
)

type SchemeLister interface {
	ListInterestSchemes(ctx context.Context) ([]model.InterestScheme, error)
}

type Calculator interface {
	Calculate(ctx context.Context, req loan.Request) (loan.Quote, error)
}

type Result struct {
	Best    *loan.Quote  `json:"best,omitempty"`
	Options []loan.Quote `json:"options"`
}

// Schemes quotes req under every interest scheme that has a rate for its
// purity and can quote it. The scheme id of req is ignored. Options are ordered best first:
// least gold when calculating by amount, most eligible cash by weight.
func Schemes(ctx context.Context, schemes SchemeLister, calc Calculator, req loan.Request) (Result, error) {
	req, err := loan.NormalizeQuantity(req)
	if err != nil {
		return Result{}, err
	}
	all, err := schemes.ListInterestSchemes(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list interest schemes: %w", err)
	}

	res := Result{Options: []loan.Quote{}}
	for _, s := range all {
		req.InterestSchemeID = s.ID
		q, err := calc.Calculate(ctx, req)
		// the request itself is valid here, so an invalid-input error means
		// the scheme's rate is outside what the engine can quote
		if errors.Is(err, loan.ErrRateNotFound) || errors.Is(err, loan.ErrSchemeNotFound) || errors.Is(err, loan.ErrInvalidInput) {
			continue
		}
		if err != nil {
			return Result{}, err
		}
		res.Options = append(res.Options, q)
	}
	if len(res.Options) == 0 {
		return res, fmt.Errorf("%w: no scheme has a %s rate", loan.ErrRateNotFound, req.Purity)
	}

	sort.SliceStable(res.Options, func(i, j int) bool {
		a, b := res.Options[i], res.Options[j]
		if a.GoldWeight != nil && b.GoldWeight != nil {
			return *a.GoldWeight < *b.GoldWeight
		}
		return a.EligibleAmount > b.EligibleAmount
	})
	res.Best = &res.Options[0]
	return res, nil
}

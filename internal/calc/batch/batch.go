package batch

import (
	"context"
	"fmt"
	"net/http"

	"GoldPledge/internal/calc/loan"
)

const MaxItems = 100

type Calculator interface {
	Calculate(ctx context.Context, req loan.Request) (loan.Quote, error)
}

type Input struct {
	Items []loan.Request `json:"items"`
}

type ItemResult struct {
	Index int         `json:"index"`
	Quote *loan.Quote `json:"quote,omitempty"`
	Error string      `json:"error,omitempty"`
}

type Result struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []ItemResult `json:"results"`
}

// Calculate runs every item independently. Rejected items are reported in
// place; a store failure aborts the whole batch.
func Calculate(ctx context.Context, calc Calculator, in Input) (Result, error) {
	if len(in.Items) == 0 {
		return Result{}, fmt.Errorf("%w: no items", loan.ErrInvalidInput)
	}
	if len(in.Items) > MaxItems {
		return Result{}, fmt.Errorf("%w: at most %d items per batch", loan.ErrInvalidInput, MaxItems)
	}

	out := Result{Results: make([]ItemResult, 0, len(in.Items))}
	for i, item := range in.Items {
		q, err := calc.Calculate(ctx, item)
		if err != nil {
			if loan.StatusFor(err) == http.StatusInternalServerError {
				return Result{}, fmt.Errorf("item %d: %w", i, err)
			}
			out.Failed++
			out.Results = append(out.Results, ItemResult{Index: i, Error: err.Error()})
			continue
		}
		out.Succeeded++
		out.Results = append(out.Results, ItemResult{Index: i, Quote: &q})
	}
	return out, nil
}

package loan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"GoldPledge/internal/model"
)

type Mode string

const (
	ModeByAmount Mode = "amount"
	ModeByWeight Mode = "weight"
)

// Request is what callers send. Mode may be left empty when exactly one of
// LoanAmount and GoldWeight is present.
type Request struct {
	Mode             Mode         `json:"mode,omitempty"`
	LoanAmount       *float64     `json:"loanAmount,omitempty"`
	GoldWeight       *float64     `json:"goldWeight,omitempty"`
	Purity           model.Purity `json:"purity"`
	InterestSchemeID int          `json:"interestSchemeId"`
}

// Quote is a Result together with the records it was computed from.
type Quote struct {
	ID string `json:"id"`
	Result
	InterestScheme model.InterestScheme `json:"interestScheme"`
	Request        Request              `json:"request"`
	CalculatedAt   time.Time            `json:"calculatedAt"`
}

// RatePerGram is the implied price per gram shown alongside a quote.
func (q Quote) RatePerGram() float64 {
	weight := 0.0
	switch {
	case q.GoldWeight != nil:
		weight = *q.GoldWeight
	case q.Request.GoldWeight != nil:
		weight = *q.Request.GoldWeight
	}
	if weight <= 0 {
		return 0
	}
	return q.PrincipalAmount / weight
}

// RateLookup resolves the records a calculation depends on. Implementations
// return an error wrapping model.ErrNotFound for missing records.
type RateLookup interface {
	GetGoldRate(ctx context.Context, purity model.Purity, schemeID int) (model.GoldRate, error)
	GetInterestScheme(ctx context.Context, id int) (model.InterestScheme, error)
}

type Service struct {
	rates RateLookup
	log   *logrus.Logger
	now   func() time.Time
}

func NewService(rates RateLookup, log *logrus.Logger) *Service {
	return &Service{rates: rates, log: log, now: time.Now}
}

func (s *Service) ByAmount(ctx context.Context, req Request) (Quote, error) {
	req.Mode = ModeByAmount
	return s.Calculate(ctx, req)
}

func (s *Service) ByWeight(ctx context.Context, req Request) (Quote, error) {
	req.Mode = ModeByWeight
	return s.Calculate(ctx, req)
}

// Calculate validates req, resolves its scheme and gold rate and runs the
// matching engine operation.
func (s *Service) Calculate(ctx context.Context, req Request) (Quote, error) {
	req, err := Normalize(req)
	if err != nil {
		return Quote{}, err
	}

	scheme, err := s.rates.GetInterestScheme(ctx, req.InterestSchemeID)
	if errors.Is(err, model.ErrNotFound) {
		return Quote{}, fmt.Errorf("%w: id %d", ErrSchemeNotFound, req.InterestSchemeID)
	}
	if err != nil {
		return Quote{}, fmt.Errorf("lookup interest scheme: %w", err)
	}

	rate, err := s.rates.GetGoldRate(ctx, req.Purity, scheme.ID)
	if errors.Is(err, model.ErrNotFound) {
		return Quote{}, fmt.Errorf("%w: %s under scheme %d", ErrRateNotFound, req.Purity, scheme.ID)
	}
	if err != nil {
		return Quote{}, fmt.Errorf("lookup gold rate: %w", err)
	}

	var res Result
	if req.Mode == ModeByAmount {
		res, err = CalculateByAmount(*req.LoanAmount, rate, scheme.Rate)
	} else {
		res, err = CalculateByWeight(*req.GoldWeight, rate, scheme.Rate)
	}
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		ID:             uuid.NewString(),
		Result:         res,
		InterestScheme: scheme,
		Request:        req,
		CalculatedAt:   s.now().UTC(),
	}
	s.log.WithFields(logrus.Fields{
		"quote":  q.ID,
		"mode":   req.Mode,
		"purity": req.Purity,
		"scheme": scheme.ID,
	}).Debug("loan calculated")
	return q, nil
}

// Normalize fills in an omitted mode and checks the request shape.
func Normalize(req Request) (Request, error) {
	req, err := NormalizeQuantity(req)
	if err != nil {
		return req, err
	}
	if req.InterestSchemeID <= 0 {
		return req, fmt.Errorf("%w: interestSchemeId must be selected", ErrInvalidInput)
	}
	return req, nil
}

// NormalizeQuantity is Normalize without the scheme id check, for callers
// that pick the scheme themselves.
func NormalizeQuantity(req Request) (Request, error) {
	if req.Mode == "" {
		switch {
		case req.LoanAmount != nil && req.GoldWeight == nil:
			req.Mode = ModeByAmount
		case req.GoldWeight != nil && req.LoanAmount == nil:
			req.Mode = ModeByWeight
		}
	}

	switch req.Mode {
	case ModeByAmount:
		if req.LoanAmount == nil {
			return req, fmt.Errorf("%w: loanAmount is required", ErrInvalidInput)
		}
		if req.GoldWeight != nil {
			return req, fmt.Errorf("%w: goldWeight is not accepted when calculating by amount", ErrInvalidInput)
		}
		if err := positive("loanAmount", *req.LoanAmount); err != nil {
			return req, err
		}
	case ModeByWeight:
		if req.GoldWeight == nil {
			return req, fmt.Errorf("%w: goldWeight is required", ErrInvalidInput)
		}
		if req.LoanAmount != nil {
			return req, fmt.Errorf("%w: loanAmount is not accepted when calculating by weight", ErrInvalidInput)
		}
		if err := positive("goldWeight", *req.GoldWeight); err != nil {
			return req, err
		}
	default:
		return req, fmt.Errorf("%w: exactly one of loanAmount and goldWeight is required", ErrInvalidInput)
	}

	if !req.Purity.Valid() {
		return req, fmt.Errorf("%w: purity must be one of 24k, 22k, 18k, mixed", ErrInvalidInput)
	}
	return req, nil
}

package loan

import (
	"errors"
	"fmt"
	"math"

	"GoldPledge/internal/model"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrRateNotFound   = errors.New("gold rate not found")
	ErrSchemeNotFound = errors.New("interest scheme not found")
)

// Result is one calculation. Exactly one of GoldWeight and LoanAmount is set,
// carrying the quantity that was derived rather than supplied.
type Result struct {
	Purity          model.Purity `json:"purity"`
	InterestRate    float64      `json:"interestRate"`
	PrincipalAmount float64      `json:"principalAmount"`
	InterestAmount  float64      `json:"interestAmount"`
	EligibleAmount  float64      `json:"eligibleAmount"`
	GoldWeight      *float64     `json:"goldWeight,omitempty"`
	LoanAmount      *float64     `json:"loanAmount,omitempty"`
}

// CalculateByAmount derives the gold weight needed to secure loanAmount.
// Lower interest schemes need more gold: the factor is 1.0 at 2% and grows
// by 1/8 for every point below that.
func CalculateByAmount(loanAmount float64, rate model.GoldRate, interestRate float64) (Result, error) {
	if err := positive("loanAmount", loanAmount); err != nil {
		return Result{}, err
	}
	if err := checkRate(rate, interestRate); err != nil {
		return Result{}, err
	}

	factor := amountAdjustment(interestRate)
	if factor <= 0 {
		return Result{}, fmt.Errorf("%w: interest rate %g%% is outside the supported range", ErrInvalidInput, interestRate)
	}
	weight := loanAmount / rate.RatePerGram * factor

	res := breakdown(rate.Purity, interestRate, loanAmount)
	res.GoldWeight = &weight
	if err := checkResult(res, weight); err != nil {
		return Result{}, err
	}
	return res, nil
}

// CalculateByWeight derives the loan amount a pledge of goldWeight grams
// supports. The factor is 1.0 at 0.5% and drops to 0.8 at 2%.
func CalculateByWeight(goldWeight float64, rate model.GoldRate, interestRate float64) (Result, error) {
	if err := positive("goldWeight", goldWeight); err != nil {
		return Result{}, err
	}
	if err := checkRate(rate, interestRate); err != nil {
		return Result{}, err
	}

	factor := weightAdjustment(interestRate)
	if factor <= 0 {
		return Result{}, fmt.Errorf("%w: interest rate %g%% is outside the supported range", ErrInvalidInput, interestRate)
	}
	amount := goldWeight * rate.RatePerGram * factor

	res := breakdown(rate.Purity, interestRate, amount)
	res.LoanAmount = &amount
	if err := checkResult(res, amount); err != nil {
		return Result{}, err
	}
	return res, nil
}

func amountAdjustment(interestRate float64) float64 {
	return 1 + (2-interestRate)/8
}

// MaxInterestRate is the first rate at which weightAdjustment is no longer
// positive. Schemes at or above it cannot quote by weight.
const MaxInterestRate = 8.0

func weightAdjustment(interestRate float64) float64 {
	return 1 - (interestRate-0.5)/7.5
}

func breakdown(purity model.Purity, interestRate, principal float64) Result {
	interest := principal * (interestRate / 100)
	return Result{
		Purity:          purity,
		InterestRate:    interestRate,
		PrincipalAmount: principal,
		InterestAmount:  interest,
		EligibleAmount:  principal - interest,
	}
}

func checkRate(rate model.GoldRate, interestRate float64) error {
	if !rate.Purity.Valid() {
		return fmt.Errorf("%w: unknown purity %q", ErrInvalidInput, rate.Purity)
	}
	if err := positive("ratePerGram", rate.RatePerGram); err != nil {
		return err
	}
	return positive("interestRate", interestRate)
}

// checkResult rejects overflowed or negative figures so callers never see them.
func checkResult(res Result, derived float64) error {
	for _, v := range []float64{res.PrincipalAmount, res.InterestAmount, res.EligibleAmount, derived} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: result is out of range", ErrInvalidInput)
		}
	}
	if derived <= 0 || res.EligibleAmount < 0 {
		return fmt.Errorf("%w: interest rate %g%% yields no eligible amount", ErrInvalidInput, res.InterestRate)
	}
	return nil
}

func positive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: %s must be a positive number", ErrInvalidInput, name)
	}
	return nil
}

package recommend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"GoldPledge/internal/calc/loan"
	"GoldPledge/internal/model"
	"GoldPledge/internal/repo"
)

func ptr(v float64) *float64 { return &v }

func setup(t *testing.T) (*repo.MemoryRepository, *loan.Service) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	ctx := context.Background()
	store := repo.NewMemoryRepository()
	for _, rate := range []float64{2, 0.5, 1} {
		s, err := store.CreateInterestScheme(ctx, rate, "")
		if err != nil {
			t.Fatal(err)
		}
		if rate != 1 {
			store.UpsertGoldRate(ctx, model.Purity24K, s.ID, 6250)
		}
	}
	return store, loan.NewService(store, log)
}

func TestSchemes_ByWeight(t *testing.T) {
	store, svc := setup(t)
	res, err := Schemes(context.Background(), store, svc, loan.Request{GoldWeight: ptr(10), Purity: model.Purity24K})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(res.Options))
	}
	if res.Best.InterestRate != 0.5 || res.Best.EligibleAmount != 62187.5 {
		t.Errorf("unexpected best %+v", res.Best.Result)
	}
}

func TestSchemes_ByAmount(t *testing.T) {
	store, svc := setup(t)
	res, err := Schemes(context.Background(), store, svc, loan.Request{LoanAmount: ptr(100000), Purity: model.Purity24K})
	if err != nil {
		t.Fatal(err)
	}
	if res.Best.InterestRate != 2 || *res.Best.GoldWeight != 16 {
		t.Errorf("expected the 2%% scheme needing 16g, got %+v", res.Best.Result)
	}
}

func TestSchemes_NoRates(t *testing.T) {
	store, svc := setup(t)
	_, err := Schemes(context.Background(), store, svc, loan.Request{GoldWeight: ptr(1), Purity: model.Purity18K})
	if loan.StatusFor(err) != http.StatusNotFound {
		t.Errorf("expected not found, got %v", err)
	}
	_, err = Schemes(context.Background(), store, svc, loan.Request{GoldWeight: ptr(-1), Purity: model.Purity24K})
	if loan.StatusFor(err) != http.StatusBadRequest {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestSchemes_SkipsUnquotableScheme(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	ctx := context.Background()
	store := repo.NewMemoryRepository()
	for _, rate := range []float64{0.5, 9} {
		s, _ := store.CreateInterestScheme(ctx, rate, "")
		store.UpsertGoldRate(ctx, model.Purity24K, s.ID, 6250)
	}
	svc := loan.NewService(store, log)

	res, err := Schemes(ctx, store, svc, loan.Request{GoldWeight: ptr(10), Purity: model.Purity24K})
	if err != nil {
		t.Fatalf("expected the 0.5%% option, got %v", err)
	}
	if len(res.Options) != 1 || res.Best.InterestRate != 0.5 {
		t.Errorf("unexpected options %+v", res.Options)
	}
}

func TestSchemes_MalformedWithoutSchemes(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	store := repo.NewMemoryRepository()
	svc := loan.NewService(store, log)

	_, err := Schemes(context.Background(), store, svc, loan.Request{GoldWeight: ptr(10), Purity: "14k"})
	if !errors.Is(err, loan.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
	_, err = Schemes(context.Background(), store, svc, loan.Request{GoldWeight: ptr(10), Purity: model.Purity24K})
	if !errors.Is(err, loan.ErrRateNotFound) {
		t.Errorf("expected rate not found, got %v", err)
	}
}

func TestCompareHandler(t *testing.T) {
	store, svc := setup(t)
	h := &Handler{Schemes: store, Calc: svc, Log: logrus.New()}
	body, _ := json.Marshal(loan.Request{GoldWeight: ptr(10), Purity: model.Purity24K})
	w := httptest.NewRecorder()
	h.Compare(w, httptest.NewRequest(http.MethodPost, "/api/calculate/compare", bytes.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res Result
	json.Unmarshal(w.Body.Bytes(), &res)
	if len(res.Options) != 2 || res.Best == nil {
		t.Errorf("unexpected result %+v", res)
	}
}

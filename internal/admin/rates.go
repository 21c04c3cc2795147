package admin

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"GoldPledge/internal/calc/loan"
	"GoldPledge/internal/model"
	"GoldPledge/internal/repo"
	"GoldPledge/internal/respond"
)

// RatesHandler manages gold rates and interest schemes.
type RatesHandler struct {
	Repo repo.Repository
	Log  *logrus.Logger
}

type GoldRateRequest struct {
	Purity           model.Purity `json:"purity"`
	InterestSchemeID int          `json:"interestSchemeId"`
	RatePerGram      float64      `json:"ratePerGram"`
}

type SchemeRequest struct {
	Rate  float64 `json:"rate"`
	Label string  `json:"label"`
}

func (req GoldRateRequest) Validate() error {
	if !req.Purity.Valid() {
		return fmt.Errorf("purity must be one of 24k, 22k, 18k, mixed")
	}
	if req.InterestSchemeID <= 0 {
		return fmt.Errorf("interestSchemeId must be selected")
	}
	if !positive(req.RatePerGram) {
		return fmt.Errorf("ratePerGram must be positive")
	}
	return nil
}

func (req *SchemeRequest) Validate() error {
	req.Label = strings.TrimSpace(req.Label)
	if !positive(req.Rate) {
		return fmt.Errorf("rate must be positive")
	}
	if req.Rate >= loan.MaxInterestRate {
		return fmt.Errorf("rate must be below %g%%", loan.MaxInterestRate)
	}
	if req.Label == "" {
		req.Label = fmt.Sprintf("%g%% Interest", req.Rate)
	}
	return nil
}

func positive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func (h *RatesHandler) ListGoldRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Repo.ListGoldRates(r.Context())
	if err != nil {
		h.Log.WithError(err).Error("list gold rates")
		respond.Error(w, http.StatusInternalServerError, "Failed to fetch gold rates")
		return
	}
	if rates == nil {
		rates = []model.GoldRate{}
	}
	respond.JSON(w, http.StatusOK, rates)
}

// UpsertGoldRate creates or replaces the rate for a purity and scheme.
func (h *RatesHandler) UpsertGoldRate(w http.ResponseWriter, r *http.Request) {
	var req GoldRateRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid gold rate data")
		return
	}
	if err := req.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	gr, err := h.Repo.UpsertGoldRate(r.Context(), req.Purity, req.InterestSchemeID, req.RatePerGram)
	if err != nil {
		h.writeStoreError(w, err, "Failed to update gold rate")
		return
	}
	h.Log.WithFields(logrus.Fields{
		"purity":      gr.Purity,
		"scheme":      gr.InterestSchemeID,
		"ratePerGram": gr.RatePerGram,
	}).Info("gold rate updated")
	respond.JSON(w, http.StatusOK, gr)
}

func (h *RatesHandler) DeleteGoldRate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Repo.DeleteGoldRate(r.Context(), id); err != nil {
		h.writeStoreError(w, err, "Failed to delete gold rate")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RatesHandler) ListSchemes(w http.ResponseWriter, r *http.Request) {
	schemes, err := h.Repo.ListInterestSchemes(r.Context())
	if err != nil {
		h.Log.WithError(err).Error("list interest schemes")
		respond.Error(w, http.StatusInternalServerError, "Failed to fetch interest schemes")
		return
	}
	if schemes == nil {
		schemes = []model.InterestScheme{}
	}
	respond.JSON(w, http.StatusOK, schemes)
}

func (h *RatesHandler) CreateScheme(w http.ResponseWriter, r *http.Request) {
	var req SchemeRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid interest scheme data")
		return
	}
	if err := req.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := h.Repo.CreateInterestScheme(r.Context(), req.Rate, req.Label)
	if err != nil {
		h.writeStoreError(w, err, "Failed to create interest scheme")
		return
	}
	respond.JSON(w, http.StatusCreated, s)
}

func (h *RatesHandler) UpdateScheme(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req SchemeRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid interest scheme data")
		return
	}
	if err := req.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := h.Repo.UpdateInterestScheme(r.Context(), model.InterestScheme{ID: id, Rate: req.Rate, Label: req.Label})
	if err != nil {
		h.writeStoreError(w, err, "Failed to update interest scheme")
		return
	}
	respond.JSON(w, http.StatusOK, s)
}

func (h *RatesHandler) DeleteScheme(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Repo.DeleteInterestScheme(r.Context(), id); err != nil {
		h.writeStoreError(w, err, "Failed to delete interest scheme")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RatesHandler) writeStoreError(w http.ResponseWriter, err error, msg string) {
	writeStoreError(w, h.Log, err, msg)
}

func writeStoreError(w http.ResponseWriter, log *logrus.Logger, err error, msg string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "Not found")
	case errors.Is(err, repo.ErrConflict):
		respond.Error(w, http.StatusConflict, "Already exists")
	default:
		log.WithError(err).Error(msg)
		respond.Error(w, http.StatusInternalServerError, msg)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		respond.Error(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

package loan

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"GoldPledge/internal/respond"
)

type Handler struct {
	Svc *Service
	Log *logrus.Logger
}

func (h *Handler) ByAmount(w http.ResponseWriter, r *http.Request) {
	h.calc(w, r, h.Svc.ByAmount)
}

func (h *Handler) ByWeight(w http.ResponseWriter, r *http.Request) {
	h.calc(w, r, h.Svc.ByWeight)
}

// Calc takes the mode from the request body.
func (h *Handler) Calc(w http.ResponseWriter, r *http.Request) {
	h.calc(w, r, h.Svc.Calculate)
}

func (h *Handler) calc(w http.ResponseWriter, r *http.Request, fn func(context.Context, Request) (Quote, error)) {
	var req Request
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid calculation data")
		return
	}
	q, err := fn(r.Context(), req)
	if err != nil {
		WriteError(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, q)
}

// StatusFor maps calculation errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateNotFound), errors.Is(err, ErrSchemeNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func WriteError(w http.ResponseWriter, log *logrus.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("loan calculation failed")
		respond.Error(w, status, "Failed to calculate loan")
		return
	}
	respond.Error(w, status, err.Error())
}

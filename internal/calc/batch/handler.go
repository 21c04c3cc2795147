package batch

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"GoldPledge/internal/calc/loan"
	"GoldPledge/internal/respond"
)

type Handler struct {
	Svc Calculator
	Log *logrus.Logger
}

func (h *Handler) Calc(w http.ResponseWriter, r *http.Request) {
	var input Input
	if err := respond.Decode(r, &input); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	res, err := Calculate(r.Context(), h.Svc, input)
	if err != nil {
		loan.WriteError(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

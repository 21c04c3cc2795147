package recommend

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"GoldPledge/internal/calc/loan"
	"GoldPledge/internal/respond"
)

type Handler struct {
	Schemes SchemeLister
	Calc    Calculator
	Log     *logrus.Logger
}

func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	var input loan.Request
	if err := respond.Decode(r, &input); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	res, err := Schemes(r.Context(), h.Schemes, h.Calc, input)
	if err != nil {
		loan.WriteError(w, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

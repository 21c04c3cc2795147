package report

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/phpdave11/gofpdf"
	"github.com/sirupsen/logrus"

	"GoldPledge/internal/calc/loan"
	"GoldPledge/internal/respond"
	"GoldPledge/internal/share"
)

type Calculator interface {
	Calculate(ctx context.Context, req loan.Request) (loan.Quote, error)
}

type Handler struct {
	Calc Calculator
	Log  *logrus.Logger
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var input loan.Request
	if err := respond.Decode(r, &input); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	q, err := h.Calc.Calculate(r.Context(), input)
	if err != nil {
		loan.WriteError(w, h.Log, err)
		return
	}

	var buf bytes.Buffer
	if err := Render(&buf, q); err != nil {
		h.Log.WithError(err).Error("render quote pdf")
		respond.Error(w, http.StatusInternalServerError, "Report generation error")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"gold-loan-%s.pdf\"", q.ID))
	w.Write(buf.Bytes())
}

// Render writes a one-page quote. The core fonts are Latin-1 only, so
// amounts are printed with an "Rs." prefix instead of the rupee sign.
func Render(out *bytes.Buffer, q loan.Quote) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Gold Loan Calculation", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Gold Loan Calculation")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 9)
	pdf.Cell(0, 5, fmt.Sprintf("Quote %s, %s", q.ID, q.CalculatedAt.Format("2006-01-02 15:04")))
	pdf.Ln(10)

	rows := [][2]string{
		{"Gold Purity", q.Purity.Label()},
		{"Interest Scheme", q.InterestScheme.Label},
		{"Interest Rate", share.Percent(q.InterestRate)},
		{"Rate Per Gram", money(q.RatePerGram()) + " per gram"},
	}
	if q.GoldWeight != nil {
		rows = append(rows, [2]string{"Required Gold Weight", share.Grams(*q.GoldWeight)})
	}
	if q.LoanAmount != nil {
		rows = append(rows, [2]string{"Loan Amount", money(*q.LoanAmount)})
	}
	rows = append(rows,
		[2]string{"Principal Amount", money(q.PrincipalAmount)},
		[2]string{"Interest Amount", money(q.InterestAmount)},
		[2]string{"Eligible Loan Amount", money(q.EligibleAmount)},
	)

	pdf.SetFont("Helvetica", "", 11)
	for i, row := range rows {
		if i == len(rows)-1 {
			pdf.SetFont("Helvetica", "B", 12)
		}
		pdf.CellFormat(70, 8, row[0], "B", 0, "L", false, 0, "")
		pdf.CellFormat(0, 8, row[1], "B", 1, "R", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.MultiCell(0, 4, "Indicative figures based on the current gold rate. Final terms are set at disbursement.", "", "L", false)

	return pdf.Output(out)
}

func money(v float64) string {
	return strings.Replace(share.Money(v), "₹", "Rs. ", 1)
}

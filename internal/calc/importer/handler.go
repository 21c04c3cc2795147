package importer

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"GoldPledge/internal/admin"
	"GoldPledge/internal/model"
	"GoldPledge/internal/repo"
	"GoldPledge/internal/respond"
)

const maxUploadSize = 5 << 20

var header = []string{"purity", "interest_scheme_id", "rate_per_gram", "updated_at"}

type Handler struct {
	Repo repo.Repository
	Log  *logrus.Logger
}

type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type ImportResult struct {
	Imported int              `json:"imported"`
	Rates    []model.GoldRate `json:"rates"`
	Errors   []RowError       `json:"errors"`
}

// Import upserts every valid row of the first sheet. Row numbers in errors
// match the spreadsheet, header being row 1.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, _, err := r.FormFile("file")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "File required")
		return
	}
	defer file.Close()

	f, err := excelize.OpenReader(file)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid file")
		return
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil || len(rows) < 2 {
		respond.Error(w, http.StatusBadRequest, "Empty sheet")
		return
	}

	reqs, out := ParseRows(rows)
	out.Rates = make([]model.GoldRate, 0, len(reqs))
	for _, pr := range reqs {
		gr, err := h.Repo.UpsertGoldRate(r.Context(), pr.Purity, pr.InterestSchemeID, pr.RatePerGram)
		if errors.Is(err, model.ErrNotFound) {
			out.Errors = append(out.Errors, RowError{Row: pr.Row, Error: fmt.Sprintf("interest scheme %d not found", pr.InterestSchemeID)})
			continue
		}
		if err != nil {
			h.Log.WithError(err).Error("import gold rate")
			respond.Error(w, http.StatusInternalServerError, "Failed to import gold rates")
			return
		}
		out.Rates = append(out.Rates, gr)
	}
	out.Imported = len(out.Rates)

	h.Log.WithFields(logrus.Fields{"imported": out.Imported, "rejected": len(out.Errors)}).Info("gold rate sheet imported")
	respond.JSON(w, http.StatusOK, out)
}

// ParsedRow is a validated sheet row.
type ParsedRow struct {
	admin.GoldRateRequest
	Row int
}

func ParseRows(rows [][]string) ([]ParsedRow, ImportResult) {
	var parsed []ParsedRow
	res := ImportResult{Errors: []RowError{}}
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}
		req, err := parseRow(row)
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: i + 1, Error: err.Error()})
			continue
		}
		parsed = append(parsed, ParsedRow{GoldRateRequest: req, Row: i + 1})
	}
	return parsed, res
}

func parseRow(row []string) (admin.GoldRateRequest, error) {
	// expected: purity, interest_scheme_id, rate_per_gram
	if len(row) < 3 {
		return admin.GoldRateRequest{}, fmt.Errorf("expected purity, interest_scheme_id, rate_per_gram")
	}
	schemeID, err := strconv.Atoi(strings.TrimSpace(row[1]))
	if err != nil {
		return admin.GoldRateRequest{}, fmt.Errorf("bad interest_scheme_id %q", row[1])
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
	if err != nil {
		return admin.GoldRateRequest{}, fmt.Errorf("bad rate_per_gram %q", row[2])
	}
	req := admin.GoldRateRequest{
		Purity:           model.Purity(strings.ToLower(strings.TrimSpace(row[0]))),
		InterestSchemeID: schemeID,
		RatePerGram:      rate,
	}
	return req, req.Validate()
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Export writes the current rates in the layout Import accepts.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Repo.ListGoldRates(r.Context())
	if err != nil {
		h.Log.WithError(err).Error("list gold rates")
		respond.Error(w, http.StatusInternalServerError, "Failed to fetch gold rates")
		return
	}
	f, err := BuildSheet(rates)
	if err != nil {
		h.Log.WithError(err).Error("build rate sheet")
		respond.Error(w, http.StatusInternalServerError, "Failed to export gold rates")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=\"gold-rates.xlsx\"")
	if err := f.Write(w); err != nil {
		h.Log.WithError(err).Error("write rate sheet")
	}
}

func BuildSheet(rates []model.GoldRate) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, gr := range rates {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{string(gr.Purity), gr.InterestSchemeID, gr.RatePerGram, gr.UpdatedAt.Format(time.RFC3339)}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

package importer

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"GoldPledge/internal/model"
	"GoldPledge/internal/repo"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func sheetBytes(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write sheet: %v", err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "rates.xlsx")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	part.Write(content)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/gold-rates/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestParseRows(t *testing.T) {
	rows := [][]string{
		{"purity", "interest_scheme_id", "rate_per_gram"},
		{"24K", "1", "6250"},
		{"", "", ""},
		{"14k", "1", "5000"},
		{"22k", "one", "5700"},
		{"18k", "1"},
		{"mixed", "2", "-3"},
	}
	parsed, res := ParseRows(rows)
	if len(parsed) != 1 || parsed[0].Purity != model.Purity24K || parsed[0].Row != 2 {
		t.Fatalf("unexpected parsed rows %+v", parsed)
	}
	wantRows := []int{4, 5, 6, 7}
	if len(res.Errors) != len(wantRows) {
		t.Fatalf("expected %d errors, got %+v", len(wantRows), res.Errors)
	}
	for i, want := range wantRows {
		if res.Errors[i].Row != want {
			t.Errorf("error %d: expected row %d, got %d", i, want, res.Errors[i].Row)
		}
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryRepository()
	s, _ := store.CreateInterestScheme(ctx, 1, "1% Interest")
	h := &Handler{Repo: store, Log: quietLogger()}

	content := sheetBytes(t, [][]any{
		{"purity", "interest_scheme_id", "rate_per_gram"},
		{"24k", s.ID, 6250},
		{"22k", s.ID, 5725.5},
		{"18k", 77, 4700},
	})
	w := httptest.NewRecorder()
	h.Import(w, uploadRequest(t, content))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res ImportResult
	json.Unmarshal(w.Body.Bytes(), &res)
	if res.Imported != 2 || len(res.Errors) != 1 || res.Errors[0].Row != 4 {
		t.Errorf("unexpected result %+v", res)
	}

	gr, err := store.GetGoldRate(ctx, model.Purity22K, s.ID)
	if err != nil || gr.RatePerGram != 5725.5 {
		t.Errorf("expected stored 22k rate, got %+v %v", gr, err)
	}
}

func TestImport_BadUpload(t *testing.T) {
	h := &Handler{Repo: repo.NewMemoryRepository(), Log: quietLogger()}

	w := httptest.NewRecorder()
	h.Import(w, httptest.NewRequest(http.MethodPost, "/", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("no file: expected 400, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.Import(w, uploadRequest(t, []byte("not a spreadsheet")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("garbage: expected 400, got %d", w.Code)
	}
}

func TestExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryRepository()
	s, _ := store.CreateInterestScheme(ctx, 0.5, "0.5% Interest")
	store.UpsertGoldRate(ctx, model.PurityMixed, s.ID, 4100)
	h := &Handler{Repo: store, Log: quietLogger()}

	w := httptest.NewRecorder()
	h.Export(w, httptest.NewRequest(http.MethodGet, "/api/gold-rates/export", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(f.GetSheetName(0))
	parsed, res := ParseRows(rows)
	if len(res.Errors) != 0 || len(parsed) != 1 {
		t.Fatalf("export did not re-import cleanly: %+v %+v", parsed, res.Errors)
	}
	if parsed[0].Purity != model.PurityMixed || parsed[0].RatePerGram != 4100 {
		t.Errorf("unexpected row %+v", parsed[0])
	}
}

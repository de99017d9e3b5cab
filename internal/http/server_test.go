package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewServer(":0", nil, repo, repo, repo, repo)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Finance Tracker API") {
		t.Fatalf("index body = %s", rr.Body.String())
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}

	rr = doJSON(t, srv, http.MethodGet, "/nowhere", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown route status = %d", rr.Code)
	}
}

type failingCategories struct{}

func (failingCategories) CreateCategory(context.Context, string, core.Kind) (core.Category, error) {
	return core.Category{}, errors.New("store down")
}
func (failingCategories) FindOrCreateCategory(context.Context, string, core.Kind) (core.Category, error) {
	return core.Category{}, errors.New("store down")
}
func (failingCategories) ListCategories(context.Context) ([]core.Category, error) {
	return nil, errors.New("store down")
}

func TestReadyReportsStoreFailure(t *testing.T) {
	srv := newTestServer(t)
	srv.cats = failingCategories{}

	rr := doJSON(t, srv, http.MethodGet, "/readyz", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d", rr.Code)
	}
}

func TestStoreFailureMapsToInternalKind(t *testing.T) {
	srv := newTestServer(t)
	srv.cats = failingCategories{}

	rr := doJSON(t, srv, http.MethodGet, "/api/categories", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeBody[errorResponse](t, rr)
	if resp.Kind != kindInternal {
		t.Fatalf("kind = %q", resp.Kind)
	}
	if strings.Contains(resp.Error, "store down") {
		t.Fatalf("internal detail leaked: %q", resp.Error)
	}
}

func TestCategoryEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/categories", map[string]string{"name": "Salary", "type": "income"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}
	created := decodeBody[categoryJSON](t, rr)
	if created.ID == 0 || created.Name != "Salary" || created.Type != "income" {
		t.Fatalf("created = %+v", created)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/categories", map[string]string{"name": "X", "type": "loan"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid kind status = %d", rr.Code)
	}
	if resp := decodeBody[errorResponse](t, rr); resp.Kind != kindMalformedInput {
		t.Fatalf("kind = %q", resp.Kind)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/categories", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	cats := decodeBody[[]categoryJSON](t, rr)
	if len(cats) != 1 {
		t.Fatalf("categories = %+v", cats)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/categories", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("method status = %d", rr.Code)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/categories", map[string]string{"name": "Food", "type": "expense"})
	cat := decodeBody[categoryJSON](t, rr)

	rr = doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]any{
		"amount":      12.34,
		"type":        "expense",
		"category_id": cat.ID,
		"description": "lunch",
		"date":        "2024-01-15",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}
	created := decodeBody[transactionJSON](t, rr)
	if created.Amount != 12.34 || created.Type != "expense" || created.Date != "2024-01-15" {
		t.Fatalf("created = %+v", created)
	}
	if created.Category == nil || created.Category.Name != "Food" {
		t.Fatalf("category not resolved: %+v", created.Category)
	}
	if created.CreatedAt == "" {
		t.Fatalf("created_at missing")
	}

	// Get by id.
	rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/transactions/%d", created.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}

	// Partial update: only description changes.
	rr = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/transactions/%d", created.ID), map[string]any{
		"description": "team lunch",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rr.Code, rr.Body.String())
	}
	updated := decodeBody[transactionJSON](t, rr)
	if updated.Description != "team lunch" || updated.Amount != 12.34 || updated.Date != "2024-01-15" {
		t.Fatalf("partial update touched other fields: %+v", updated)
	}

	// Explicit null clears the category reference.
	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/transactions/%d", created.ID),
		strings.NewReader(`{"category_id": null}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear category status = %d: %s", rec.Code, rec.Body.String())
	}
	cleared := decodeBody[transactionJSON](t, rec)
	if cleared.Category != nil {
		t.Fatalf("category not cleared: %+v", cleared.Category)
	}

	// Delete, then verify it is gone.
	rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", created.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/transactions/%d", created.ID), nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rr.Code)
	}
}

func TestTransactionNotFoundKinds(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/api/transactions/42", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get status = %d", rr.Code)
	}
	if resp := decodeBody[errorResponse](t, rr); resp.Kind != kindNotFound {
		t.Fatalf("kind = %q", resp.Kind)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/transactions/42", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("delete status = %d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions/abc", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", rr.Code)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	srv := newTestServer(t)

	for _, tx := range []map[string]any{
		{"amount": 100, "type": "income", "date": "2024-01-10"},
		{"amount": 200, "type": "expense", "date": "2024-01-20"},
		{"amount": 300, "type": "income", "date": "2024-02-01"},
	} {
		if rr := doJSON(t, srv, http.MethodPost, "/api/transactions", tx); rr.Code != http.StatusCreated {
			t.Fatalf("seed failed: %s", rr.Body.String())
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/transactions", nil)
	all := decodeBody[[]transactionJSON](t, rr)
	if len(all) != 3 || all[0].Date != "2024-02-01" || all[2].Date != "2024-01-10" {
		t.Fatalf("ordering wrong: %+v", all)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions?start_date=2024-01-15&end_date=2024-01-31", nil)
	ranged := decodeBody[[]transactionJSON](t, rr)
	if len(ranged) != 1 || ranged[0].Amount != 200 {
		t.Fatalf("range filter: %+v", ranged)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions?type=income", nil)
	incomes := decodeBody[[]transactionJSON](t, rr)
	if len(incomes) != 2 {
		t.Fatalf("kind filter: %+v", incomes)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions?type=loan", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid filter status = %d", rr.Code)
	}
}

func TestSummaryScenario(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/categories", map[string]string{"name": "Salary", "type": "income"})
	cat := decodeBody[categoryJSON](t, rr)

	doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]any{
		"amount": 1000, "type": "income", "category_id": cat.ID, "date": "2024-01-01",
	})
	doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]any{
		"amount": 200, "type": "expense", "date": "2024-01-15",
	})

	rr = doJSON(t, srv, http.MethodGet, "/api/analytics/summary", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rr.Code)
	}
	sum := decodeBody[summaryJSON](t, rr)
	if sum.TotalIncome != 1000 || sum.TotalExpenses != 200 || sum.Balance != 800 {
		t.Fatalf("summary = %+v", sum)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/analytics/by-category", nil)
	totals := decodeBody[[]categoryTotalJSON](t, rr)
	// The uncategorized expense is excluded.
	if len(totals) != 1 || totals[0].Category != "Salary" || totals[0].Total != 1000 {
		t.Fatalf("by-category = %+v", totals)
	}
}

func TestSummaryEmptyStoreIsZeroed(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/api/analytics/summary", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, field := range []string{"total_income", "total_expenses", "balance", "monthly_income", "monthly_expenses", "monthly_balance"} {
		if !strings.Contains(body, field) {
			t.Fatalf("field %q absent from %s", field, body)
		}
	}
}

func multipartCSV(t *testing.T, csv string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "import.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(csv)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestImportCSV(t *testing.T) {
	srv := newTestServer(t)

	csv := strings.Join([]string{
		"date,amount,type,category,description",
		"2024-01-01,1000.00,income,Salary,january",
		"2024-01-02,20.00,expense,Food,lunch",
		"2024-01-03,30.00,expense,Food,dinner",
	}, "\n")
	body, contentType := multipartCSV(t, csv)

	req := httptest.NewRequest(http.MethodPost, "/api/import/csv", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("import status = %d: %s", rr.Code, rr.Body.String())
	}

	list := doJSON(t, srv, http.MethodGet, "/api/transactions", nil)
	txs := decodeBody[[]transactionJSON](t, list)
	if len(txs) != 3 {
		t.Fatalf("imported %d transactions", len(txs))
	}

	// Repeated (name, kind) pairs resolve to one category.
	catsResp := doJSON(t, srv, http.MethodGet, "/api/categories", nil)
	cats := decodeBody[[]categoryJSON](t, catsResp)
	if len(cats) != 2 {
		t.Fatalf("categories = %+v", cats)
	}
}

func TestImportCSVAbortsAtomically(t *testing.T) {
	srv := newTestServer(t)

	csv := strings.Join([]string{
		"date,amount,type,category,description",
		"2024-01-01,1000.00,income,Salary,ok",
		"2024-01-02,not-a-number,expense,Food,bad",
	}, "\n")
	body, contentType := multipartCSV(t, csv)

	req := httptest.NewRequest(http.MethodPost, "/api/import/csv", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("import status = %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody[errorResponse](t, rr)
	if resp.Kind != kindMalformedInput || !strings.Contains(resp.Error, "row 1") {
		t.Fatalf("error = %+v", resp)
	}

	list := doJSON(t, srv, http.MethodGet, "/api/transactions", nil)
	if txs := decodeBody[[]transactionJSON](t, list); len(txs) != 0 {
		t.Fatalf("partial import observed: %+v", txs)
	}
	catsResp := doJSON(t, srv, http.MethodGet, "/api/categories", nil)
	if cats := decodeBody[[]categoryJSON](t, catsResp); len(cats) != 0 {
		t.Fatalf("orphan categories: %+v", cats)
	}
}

func TestImportCSVMissingColumn(t *testing.T) {
	srv := newTestServer(t)

	body, contentType := multipartCSV(t, "date,amount,type,category\n2024-01-01,1,income,Salary\n")
	req := httptest.NewRequest(http.MethodPost, "/api/import/csv", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestImportCSVWithoutFile(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("note", "no file here")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import/csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
}

func TestExportCSVRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	csv := strings.Join([]string{
		"date,amount,type,category,description",
		"2024-01-01,1000.00,income,Salary,january",
		"2024-01-02,12.50,expense,Food,lunch",
		"2024-01-03,3.00,expense,,cash",
	}, "\n")
	body, contentType := multipartCSV(t, csv)
	req := httptest.NewRequest(http.MethodPost, "/api/import/csv", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("import status = %d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/export/csv", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "transactions.csv") {
		t.Fatalf("content disposition = %q", cd)
	}

	// Re-importing the export into a fresh server reproduces the same rows.
	second := newTestServer(t)
	body, contentType = multipartCSV(t, rr.Body.String())
	req = httptest.NewRequest(http.MethodPost, "/api/import/csv", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	second.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("re-import status = %d: %s", rec.Code, rec.Body.String())
	}

	reExport := doJSON(t, second, http.MethodGet, "/api/export/csv", nil)
	if reExport.Body.String() != rr.Body.String() {
		t.Fatalf("round trip diverged:\nfirst:\n%s\nsecond:\n%s", rr.Body.String(), reExport.Body.String())
	}
}

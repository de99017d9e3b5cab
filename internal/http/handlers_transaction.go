package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

type categoryJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type transactionJSON struct {
	ID          int64         `json:"id"`
	Amount      float64       `json:"amount"`
	Type        string        `json:"type"`
	Category    *categoryJSON `json:"category"`
	Description string        `json:"description"`
	Date        string        `json:"date"`
	CreatedAt   string        `json:"created_at"`
}

func toCategoryJSON(c core.Category) categoryJSON {
	return categoryJSON{ID: c.ID, Name: c.Name, Type: string(c.Kind)}
}

func (s *Server) toTransactionJSON(t core.Transaction, categories map[int64]core.Category) transactionJSON {
	out := transactionJSON{
		ID:          t.ID,
		Amount:      t.Amount.Float(),
		Type:        string(t.Kind),
		Description: t.Description,
		Date:        t.Date.String(),
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if t.CategoryID != nil {
		if c, ok := categories[*t.CategoryID]; ok {
			cj := toCategoryJSON(c)
			out.Category = &cj
		}
	}
	return out
}

// categoryIndex resolves the weak category references for serialization.
func (s *Server) categoryIndex(ctx context.Context) (map[int64]core.Category, error) {
	cats, err := s.cats.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(map[int64]core.Category, len(cats))
	for _, c := range cats {
		idx[c.ID] = c
	}
	return idx, nil
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTransactions(w, r)
	case http.MethodPost:
		s.createTransaction(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter core.TransactionFilter

	if v := q.Get("start_date"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			writeError(w, r, fmt.Errorf("start_date: %w", err))
			return
		}
		filter.From = &d
	}
	if v := q.Get("end_date"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			writeError(w, r, fmt.Errorf("end_date: %w", err))
			return
		}
		filter.To = &d
	}
	if v := q.Get("type"); v != "" {
		k, err := core.ParseKind(v)
		if err != nil {
			writeError(w, r, fmt.Errorf("type: %w", err))
			return
		}
		filter.Kind = &k
	}

	txs, err := s.txs.QueryTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	idx, err := s.categoryIndex(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]transactionJSON, 0, len(txs))
	for _, t := range txs {
		out = append(out, s.toTransactionJSON(t, idx))
	}
	writeJSON(w, http.StatusOK, out)
}

type createTransactionRequest struct {
	Amount      *json.Number `json:"amount"`
	Type        string       `json:"type"`
	CategoryID  *int64       `json:"category_id"`
	Description string       `json:"description"`
	Date        string       `json:"date"`
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Amount == nil {
		writeError(w, r, fmt.Errorf("%w: missing field amount", core.ErrMalformedInput))
		return
	}

	amount, err := core.ParseAmount(req.Amount.String())
	if err != nil {
		writeError(w, r, err)
		return
	}
	kind, err := core.ParseKind(req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}

	nt := core.NewTransaction{
		Amount:      amount,
		Kind:        kind,
		CategoryID:  req.CategoryID,
		Description: req.Description,
	}
	if req.Date != "" {
		d, err := core.ParseDate(req.Date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		nt.Date = d
	}

	created, err := s.txs.CreateTransaction(r.Context(), nt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	idx, err := s.categoryIndex(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.toTransactionJSON(created, idx))
}

func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id < 1 {
		writeError(w, r, fmt.Errorf("%w: invalid transaction id %q", core.ErrMalformedInput, idStr))
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getTransaction(w, r, id)
	case http.MethodPut:
		s.updateTransaction(w, r, id)
	case http.MethodDelete:
		s.deleteTransaction(w, r, id)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request, id int64) {
	t, err := s.txs.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	idx, err := s.categoryIndex(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toTransactionJSON(t, idx))
}

// updateTransactionRequest distinguishes absent fields (left unchanged) from
// supplied ones. category_id additionally distinguishes explicit null, which
// clears the reference.
type updateTransactionRequest struct {
	Amount      *json.Number    `json:"amount"`
	Type        *string         `json:"type"`
	CategoryID  json.RawMessage `json:"category_id"`
	Description *string         `json:"description"`
	Date        *string         `json:"date"`
}

func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request, id int64) {
	var req updateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var patch core.TransactionPatch
	if req.Amount != nil {
		amount, err := core.ParseAmount(req.Amount.String())
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.Amount = &amount
	}
	if req.Type != nil {
		kind, err := core.ParseKind(*req.Type)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.Kind = &kind
	}
	if len(req.CategoryID) > 0 {
		ref, err := parseCategoryRef(req.CategoryID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.Category = ref
	}
	if req.Description != nil {
		patch.Description = req.Description
	}
	if req.Date != nil {
		d, err := core.ParseDate(*req.Date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.Date = &d
	}

	updated, err := s.txs.UpdateTransaction(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	idx, err := s.categoryIndex(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toTransactionJSON(updated, idx))
}

func parseCategoryRef(raw json.RawMessage) (*core.CategoryRef, error) {
	if string(bytes.TrimSpace(raw)) == "null" {
		return &core.CategoryRef{}, nil
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, fmt.Errorf("%w: category_id: %v", core.ErrMalformedInput, err)
	}
	return &core.CategoryRef{ID: &id}, nil
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request, id int64) {
	if err := s.txs.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Transaction deleted"})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", core.ErrMalformedInput, err)
	}
	return nil
}

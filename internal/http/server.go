package http

import (
	"net/http"
	"time"

	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
)

const defaultImportMaxBytes = 10 << 20

// Server exposes the ledger over a JSON API. It consumes the store through
// the ledger ports so handlers stay independent of the storage backend.
type Server struct {
	http.Server

	cats  ledger.CategoryStore
	txs   ledger.TransactionStore
	stats ledger.Analytics
	batch ledger.BatchStore

	logger *applog.Logger

	// ImportMaxBytes caps the accepted import upload size.
	ImportMaxBytes int64

	started time.Time
}

// NewServer configures routes and returns a ready-to-run http.Server.
func NewServer(addr string, logger *applog.Logger, cats ledger.CategoryStore, txs ledger.TransactionStore, stats ledger.Analytics, batch ledger.BatchStore) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr: addr,
		},
		cats:           cats,
		txs:            txs,
		stats:          stats,
		batch:          batch,
		logger:         logger,
		ImportMaxBytes: defaultImportMaxBytes,
		started:        time.Now(),
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/transactions/", s.handleTransactionByID)
	mux.HandleFunc("/api/categories", s.handleCategories)
	mux.HandleFunc("/api/analytics/summary", s.handleSummary)
	mux.HandleFunc("/api/analytics/by-category", s.handleByCategory)
	mux.HandleFunc("/api/import/csv", s.handleImportCSV)
	mux.HandleFunc("/api/export/csv", s.handleExportCSV)

	var handler http.Handler = mux
	handler = securityHeaders(handler)
	if logger != nil {
		handler = applog.RequestMiddleware(logger)(handler)
	}
	s.Handler = handler

	return s
}

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// NewServer creates an HTTP server with all routes configured.
func NewServer(port string, handler *Handler, reportHandler http.HandlerFunc, adminAPIKey string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sales", handler.ListSales)
	mux.HandleFunc("GET /api/v1/sales/{address}", handler.GetSale)
	mux.HandleFunc("POST /api/v1/sales", handler.PostSale)
	mux.HandleFunc("POST /api/v1/sales/{address}/take", handler.TakeSale)
	mux.HandleFunc("POST /api/v1/sales/{address}/close", handler.CloseSale)
	mux.HandleFunc("PATCH /api/v1/sales/{address}/price", handler.ChangePrice)

	if reportHandler != nil {
		if adminAPIKey != "" {
			mux.Handle("POST /api/v1/reports/generate", requireAuth(adminAPIKey, reportHandler))
		} else {
			mux.Handle("POST /api/v1/reports/generate", reportHandler)
		}
	}

	return &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

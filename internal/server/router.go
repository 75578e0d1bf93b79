package server

import (
	"log"
	"net/http"
	"time"

	"github.com/diewo77/proposals-app/auth"
	"github.com/diewo77/proposals-app/httpx"
	"github.com/diewo77/proposals-app/internal/config"
	"github.com/diewo77/proposals-app/internal/handlers"
	"github.com/diewo77/proposals-app/internal/services"
	"gorm.io/gorm"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, cfg config.Config) http.Handler {
	mux := http.NewServeMux()

	tenantSvc := services.NewTenantService(db)
	catalogSvc := services.NewCatalogService(db)
	quoteSvc := services.NewQuoteService(db, catalogSvc)
	quotaSvc := services.NewQuotaService(db)
	cache := services.NewTenantCache()

	// --- Health endpoints ---
	//revive:disable:unused-parameter simple handlers intentionally ignore *http.Request
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		// Lightweight DB check (SELECT 1) – detailed errors stay out of the body
		if err := db.Exec("SELECT 1").Error; err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, werr := w.Write([]byte(`{"status":"degraded"}`)); werr != nil {
				_ = werr
			}
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Session endpoints
	sh := handlers.NewSessionHandler(cache)
	mux.Handle("/session", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
			return
		}
		sh.Create(w, r)
	}))
	mux.Handle("/session/logout", auth.Middleware(http.HandlerFunc(sh.Destroy)))

	// Quote endpoints
	qh := handlers.NewQuoteHandler(tenantSvc, quoteSvc, cache)
	mux.Handle("/quotes", auth.Middleware(auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			qh.List(w, r)
		case http.MethodPost:
			qh.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	}))))
	mux.Handle("/quotes/get", auth.Middleware(auth.RequireAuth(http.HandlerFunc(qh.Get))))
	mux.Handle("/quotes/update", auth.Middleware(auth.RequireAuth(http.HandlerFunc(qh.Update))))
	mux.Handle("/quotes/duplicate", auth.Middleware(auth.RequireAuth(http.HandlerFunc(qh.Duplicate))))
	mux.Handle("/quotes/delete", auth.Middleware(auth.RequireAuth(http.HandlerFunc(qh.Delete))))
	mux.Handle("/quotes/signature", auth.Middleware(auth.RequireAuth(http.HandlerFunc(qh.ToggleSignature))))
	mux.Handle("/quotes/status", auth.Middleware(auth.RequireAuth(http.HandlerFunc(qh.SetStatus))))
	mux.Handle("/quotes/purge-orphans", auth.Middleware(auth.RequireAuth(qh.PurgeOrphans(time.Duration(cfg.OrphanMaxAgeHours)*time.Hour))))

	// Product endpoints
	ph := handlers.NewProductHandler(db, tenantSvc, cache)
	mux.Handle("/products", auth.Middleware(auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ph.List(w, r)
		case http.MethodPost:
			ph.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	}))))
	mux.Handle("/products/options", auth.Middleware(auth.RequireAuth(http.HandlerFunc(ph.Options))))

	// Customer endpoints
	ch := handlers.NewCustomerHandler(db, tenantSvc, cache)
	mux.Handle("/customers", auth.Middleware(auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ch.List(w, r)
		case http.MethodPost:
			ch.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	}))))

	// Quota (store-side RPC, read-only)
	quotaHandler := handlers.NewQuotaHandler(quotaSvc)
	mux.Handle("/quota", auth.Middleware(auth.RequireAuth(http.HandlerFunc(quotaHandler.Check))))

	// Root placeholder
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, werr := w.Write([]byte("Proposals API")); werr != nil {
			_ = werr
		}
	})
	//revive:enable:unused-parameter

	return withRecover(withLogging(mux))
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"storefront/backend/internal/invoice"
	"storefront/backend/internal/metrics"
	"storefront/backend/internal/ratelimit"
	"storefront/backend/internal/service"
	"storefront/backend/internal/store"
	"storefront/backend/internal/xid"
)

type Options struct {
	AllowedOrigin string
	// AuthLimiter throttles login and customer registration per client IP.
	AuthLimiter         ratelimit.Limiter
	Invoices            *invoice.Renderer
	RecommendationLimit int
}

type API struct {
	service             *service.Service
	auth                *AuthManager
	invoices            *invoice.Renderer
	allowedOrigin       string
	authLimiter         ratelimit.Limiter
	recommendationLimit int
	csrfSecret          []byte
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	if opts.AuthLimiter == nil {
		opts.AuthLimiter = ratelimit.NewMemory(5, time.Minute)
	}
	if opts.Invoices == nil {
		opts.Invoices = invoice.NewRenderer("")
	}
	if opts.RecommendationLimit < 1 {
		opts.RecommendationLimit = 6
	}
	return &API{
		service:             svc,
		auth:                auth,
		invoices:            opts.Invoices,
		allowedOrigin:       opts.AllowedOrigin,
		authLimiter:         opts.AuthLimiter,
		recommendationLimit: opts.RecommendationLimit,
		csrfSecret:          csrfSecret,
	}
}

// csrfTokenForHour computes a hex HMAC-SHA256 token for an hour bucket.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	bucket := time.Now().UTC().Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts tokens from the current or the previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	currentBucket := time.Now().UTC().Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(currentBucket))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(prevBucket)))
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMethodNotAllowed(w)
	})

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)
		r.Post("/auth/register/customer", a.handleRegisterCustomer)
		r.Get("/auth/csrf-token", a.handleCSRFToken)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Post("/auth/register/employee", a.handleRegisterEmployee)

			r.Get("/products", a.handleListProducts)
			r.Post("/products", a.handleCreateProduct)
			r.Get("/products/{id}", a.handleGetProduct)
			r.Patch("/products/{id}", a.handleUpdateProduct)

			r.Get("/customers", a.handleListCustomers)
			r.Get("/customers/{id}", a.handleGetCustomer)

			r.Get("/cart/{customer_id}", a.handleGetCart)
			r.Post("/cart/add", a.handleCartAdd)
			r.Put("/cart/update", a.handleCartUpdate)
			r.Delete("/cart/remove", a.handleCartRemove)
			r.Post("/cart/checkout", a.handleCheckout)
			r.Delete("/cart/clear/{cart_id}", a.handleCartClear)

			r.Get("/bills", a.handleListBills)
			r.Post("/bills", a.handleCreateBill)
			r.Get("/bills/{bill_id}", a.handleGetBill)
			r.Get("/bills/{bill_id}/invoice", a.handleBillInvoice)

			r.Get("/sales", a.handleListSales)
			r.Get("/sales/revenue", a.handleSalesRevenue)
			r.Get("/sales/{id}", a.handleGetSale)

			r.Get("/membership/plans", a.handleMembershipPlans)
			r.Get("/membership/stats", a.handleMembershipStats)
			r.Post("/membership/purchase", a.handleMembershipPurchase)
			r.Delete("/membership/cancel/{customer_id}", a.handleMembershipCancel)
			r.Get("/membership/history/{customer_id}", a.handleMembershipHistory)
			r.Get("/membership/check/{customer_id}", a.handleMembershipCheck)
			r.Get("/membership/{customer_id}", a.handleCurrentMembership)

			r.Get("/dashboard/stats", a.handleDashboardStats)
			r.Get("/dashboard/recent-sales", a.handleRecentSales)
			r.Get("/dashboard/sales-chart", a.handleSalesChart)
			r.Get("/dashboard/top-products", a.handleTopProducts)
			r.Get("/dashboard/recommended", a.handleRecommended)

			r.Get("/audit-logs", a.handleAuditLogs)
		})
	})

	return a.withMiddleware(r)
}

// requireAuth parses the bearer token once and stores the principal on the context.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		principal, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(service.WithPrincipal(r.Context(), principal)))
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleCSRFToken returns a stateless token; clients send it back in
// X-CSRF-Token on every mutating request.
func (a *API) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// Login and public registration are called before a token can be fetched.
var csrfExemptPaths = []string{
	"/api/auth/login",
	"/api/auth/register/customer",
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// checkCSRF writes a 403 and returns false when a mutating request lacks a valid token.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	if !isMutating(r.Method) {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func requestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Request-ID")); id != "" && len(id) <= 64 && !strings.ContainsAny(id, " \t\r\n") {
		return id
	}
	return xid.New("req")
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		reqID := requestID(r)
		w.Header().Set("X-Request-ID", reqID)

		if isMutating(r.Method) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Printf("[http] %s %s %d %s request_id=%s", r.Method, r.URL.Path, ww.Status(), time.Since(startedAt), reqID)
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// pathID reads a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// statusFor maps service and store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyBilled), errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidTransaction),
		errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrCartEmpty),
		errors.Is(err, service.ErrInvalidPaymentMode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// writeError hides 5xx details from clients and logs them instead.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		log.Printf("[http] ERROR: status %d: %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

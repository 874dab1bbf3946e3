package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/conduit/internal/common"
	"github.com/dmitrijs2005/conduit/internal/logging"
	"github.com/dmitrijs2005/conduit/internal/server/auth"
	"github.com/dmitrijs2005/conduit/internal/server/avatars"
	"github.com/dmitrijs2005/conduit/internal/server/metrics"
	"github.com/dmitrijs2005/conduit/internal/server/models"
	"github.com/dmitrijs2005/conduit/internal/server/ratelimit"
	"github.com/dmitrijs2005/conduit/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/conduit/internal/server/services"
	"github.com/dmitrijs2005/conduit/internal/server/state"
)

const requestTimeout = 30 * time.Second

// AvatarPresigner issues avatar upload URLs.
type AvatarPresigner interface {
	PresignUpload(ctx context.Context, accountID, contentType string) (*avatars.Upload, error)
}

// Deps are the collaborators of the HTTP handlers. Avatars may be nil, in
// which case the avatar route is not mounted.
type Deps struct {
	State        *state.ServerState
	Repos        repomanager.RepositoryManager
	Passwords    *auth.PasswordCredential
	Limiter      ratelimit.Limiter
	Avatars      AvatarPresigner
	CookieSecure bool
	CookieTTL    time.Duration
	Logger       logging.Logger
}

type Handlers struct {
	deps   Deps
	logger logging.Logger
}

func NewHandlers(d Deps) *Handlers {
	if d.Limiter == nil {
		d.Limiter = ratelimit.Noop{}
	}
	return &Handlers{deps: d, logger: d.Logger.With("module", "rest")}
}

// Routes builds the chi router with the full middleware stack.
func (h *Handlers) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(peerAddr)
	r.Use(chimiddleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.HTTP())
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(h.rateLimit("register")).Post("/users", h.register)
		r.With(h.rateLimit("login")).Post("/users/login", h.login)
		r.Get("/profiles/{username}", h.profile)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticated)
			r.Get("/user", h.currentUser)
			r.Put("/user", h.updateUser)
			if h.deps.Avatars != nil {
				r.Post("/user/avatar", h.avatarUpload)
			}
		})
	})

	return r
}

type scopeKey struct{}

// scope is what one request works with: the handles copied out of the
// shared state, and the caller once authenticated.
type scope struct {
	handles state.Handles
	svc     *services.AccountService
	account *models.Account
}

func (h *Handlers) newScope() (*scope, error) {
	handles, err := h.deps.State.Acquire()
	if err != nil {
		return nil, err
	}
	svc := services.NewAccountService(handles.DB, h.deps.Repos, h.deps.Passwords, h.deps.Logger)
	return &scope{handles: handles, svc: svc}, nil
}

func scopeFrom(ctx context.Context) *scope {
	s, _ := ctx.Value(scopeKey{}).(*scope)
	return s
}

type userEnvelope[T any] struct {
	User T `json:"user"`
}

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var in userEnvelope[models.RegisterParams]
	if !h.decode(w, r, &in) {
		return
	}

	sc, err := h.newScope()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := sc.svc.Register(r.Context(), in.User, sc.handles.Signer.Sign)
	metrics.ObserveAuth("register", err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setTokenCookie(w, view.Token)
	writeJSON(w, http.StatusCreated, userEnvelope[*models.AccountView]{User: view})
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var in userEnvelope[models.LoginParams]
	if !h.decode(w, r, &in) {
		return
	}

	sc, err := h.newScope()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := sc.svc.Login(r.Context(), in.User, sc.handles.Signer.Sign)
	metrics.ObserveAuth("login", err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setTokenCookie(w, view.Token)
	writeJSON(w, http.StatusOK, userEnvelope[*models.AccountView]{User: view})
}

func (h *Handlers) currentUser(w http.ResponseWriter, r *http.Request) {
	sc := scopeFrom(r.Context())

	view, err := sc.svc.Current(r.Context(), sc.account, sc.handles.Signer.Sign)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userEnvelope[*models.AccountView]{User: view})
}

func (h *Handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	var in userEnvelope[models.AccountUpdate]
	if !h.decode(w, r, &in) {
		return
	}

	sc := scopeFrom(r.Context())
	view, err := sc.svc.UpdateAccount(r.Context(), in.User, sc.account, sc.handles.Signer.Sign)
	metrics.ObserveAuth("update", err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setTokenCookie(w, view.Token)
	writeJSON(w, http.StatusOK, userEnvelope[*models.AccountView]{User: view})
}

func (h *Handlers) profile(w http.ResponseWriter, r *http.Request) {
	sc, err := h.newScope()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := sc.svc.Profile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Profile *models.ProfileView `json:"profile"`
	}{p})
}

type avatarRequest struct {
	ContentType string `json:"content_type"`
}

func (h *Handlers) avatarUpload(w http.ResponseWriter, r *http.Request) {
	var in avatarRequest
	if !h.decode(w, r, &in) {
		return
	}

	sc := scopeFrom(r.Context())
	up, err := h.deps.Avatars.PresignUpload(r.Context(), sc.account.ID, in.ContentType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	handles, err := h.deps.State.Acquire()
	if err == nil && handles.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err = handles.DB.PingContext(ctx)
		cancel()
	}
	if err != nil {
		h.logger.Warn(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authenticated resolves the caller from the request token and stores the
// request scope in the context.
func (h *Handlers) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc, err := h.newScope()
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		a, err := sc.svc.Authenticate(r.Context(), tokenFromRequest(r), sc.handles.Signer.Subject)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		sc.account = a

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), scopeKey{}, sc)))
	})
}

// tokenFromRequest accepts "Authorization: Token <jwt>", "Authorization:
// Bearer <jwt>" or the session cookie, in that order.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && (strings.EqualFold(scheme, "Token") || strings.EqualFold(scheme, "Bearer")) {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(common.TokenCookieName); err == nil {
		return c.Value
	}
	return ""
}

func (h *Handlers) rateLimit(operation string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := h.deps.Limiter.Allow(r.Context(), operation+":"+clientIP(r))
			if err == nil && !ok {
				metrics.ObserveAuth(operation, common.ErrRateLimited)
				w.Header().Set("Retry-After", strconv.Itoa(60))
				h.writeError(w, r, common.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type peerKey struct{}

// peerAddr records the connection's remote address before RealIP replaces
// it with forwarded headers. Rate limiting keys on this address only.
func peerAddr(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), peerKey{}, r.RemoteAddr)))
	})
}

// clientIP is the host part of the transport peer address.
func clientIP(r *http.Request) string {
	addr, ok := r.Context().Value(peerKey{}).(string)
	if !ok {
		addr = r.RemoteAddr
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func (h *Handlers) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.deps.CookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.deps.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// decode reads a JSON body into v. An empty body leaves v zero-valued.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	h.writeError(w, r, common.NewValidationError("body", "is invalid"))
	return false
}

func (h *Handlers) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/deepak1410/task-management/pkg/errors"
	"github.com/deepak1410/task-management/pkg/httputil"
	"github.com/deepak1410/task-management/pkg/identity"
	pkgmiddleware "github.com/deepak1410/task-management/pkg/middleware"
	"github.com/deepak1410/task-management/pkg/revocation"
	"github.com/deepak1410/task-management/pkg/token"
)

var authRejections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_auth_rejections_total",
		Help: "Requests rejected by the edge authentication pipeline",
	},
	[]string{"reason"},
)

// EdgeAuth is the admission pipeline every proxied request passes through.
// The checks run in a fixed order: whitelist, token presence, revocation,
// signature, directory lookup, subject validation. The first failing check
// rejects the request; a request only reaches a backend after all of them
// pass, at which point it carries the resolved identity as headers.
//
// Every ambiguous outcome (revocation store down, directory unreachable)
// rejects. The pipeline never admits on uncertainty.
type EdgeAuth struct {
	tokens      *token.Service
	revocations revocation.Store
	directory   identity.Directory
	whitelist   []string
	dirTimeout  time.Duration
	logger      *slog.Logger
}

// NewEdgeAuth builds the pipeline. Whitelist patterns match exactly, or by
// prefix when they end in /**.
func NewEdgeAuth(
	tokens *token.Service,
	revocations revocation.Store,
	directory identity.Directory,
	whitelist []string,
	dirTimeout time.Duration,
	logger *slog.Logger,
) *EdgeAuth {
	if dirTimeout == 0 {
		dirTimeout = 5 * time.Second
	}
	return &EdgeAuth{
		tokens:      tokens,
		revocations: revocations,
		directory:   directory,
		whitelist:   whitelist,
		dirTimeout:  dirTimeout,
		logger:      logger,
	}
}

// Handler returns the pipeline as chi middleware.
func (e *EdgeAuth) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Client-supplied identity headers are never trusted; only
			// this pipeline may set them.
			r.Header.Del(pkgmiddleware.HeaderUserID)
			r.Header.Del(pkgmiddleware.HeaderUserEmail)
			r.Header.Del(pkgmiddleware.HeaderUserRoles)

			// CORS preflight never carries credentials.
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if e.isWhitelisted(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			id, err := e.authenticate(r)
			if err != nil {
				e.reject(w, r, err)
				return
			}

			r.Header.Set(pkgmiddleware.HeaderUserID, id.ID)
			r.Header.Set(pkgmiddleware.HeaderUserEmail, id.Email)
			r.Header.Set(pkgmiddleware.HeaderUserRoles, id.Role)

			next.ServeHTTP(w, r)
		})
	}
}

func (e *EdgeAuth) authenticate(r *http.Request) (*identity.Identity, error) {
	tokenString, err := pkgmiddleware.BearerToken(r)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	revoked, err := e.revocations.IsRevoked(ctx, tokenString)
	if err != nil {
		e.logger.WarnContext(ctx, "revocation check failed, rejecting",
			slog.String("error", err.Error()),
		)
		return nil, apperrors.IdentityResolutionFailed(err)
	}
	if revoked {
		return nil, apperrors.RevokedCredential()
	}

	username, err := e.tokens.ExtractSubject(tokenString)
	if err != nil {
		return nil, apperrors.InvalidCredential()
	}

	lookupCtx, cancel := context.WithTimeout(ctx, e.dirTimeout)
	defer cancel()

	id, err := e.directory.GetByUsername(lookupCtx, username)
	if err != nil {
		e.logger.WarnContext(ctx, "identity resolution failed, rejecting",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.IdentityResolutionFailed(err)
	}

	if !e.tokens.IsValid(tokenString, id.Username) {
		return nil, apperrors.Unauthorized("Invalid token for user")
	}

	return id, nil
}

func (e *EdgeAuth) reject(w http.ResponseWriter, r *http.Request, err error) {
	authRejections.WithLabelValues(rejectionReason(err)).Inc()
	httputil.WriteError(w, r, err, e.logger)
}

func rejectionReason(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return strings.ToLower(appErr.Code)
	}
	return "unauthorized"
}

// isWhitelisted reports whether the path bypasses authentication. A pattern
// ending in /** matches the base path and anything under it.
func (e *EdgeAuth) isWhitelisted(path string) bool {
	for _, pattern := range e.whitelist {
		if base, ok := strings.CutSuffix(pattern, "/**"); ok {
			if path == base || strings.HasPrefix(path, base+"/") {
				return true
			}
			continue
		}
		if path == pattern {
			return true
		}
	}
	return false
}

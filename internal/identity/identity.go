// Package identity resolves the authenticated principal behind an HTTP request.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/safar/go-order-engine/internal/apperr"
	"github.com/safar/go-order-engine/internal/models"
)

const UserIDHeader = "X-User-ID"

var (
	ErrUnauthenticated = apperr.New(apperr.Unauthorized, "authentication required")
	ErrUnknownUser     = apperr.New(apperr.Unauthorized, "unknown user")
)

type Resolver interface {
	Resolve(r *http.Request) (models.Principal, error)
}

type UserGetter interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// HeaderResolver trusts an upstream gateway to set X-User-ID and reads the
// role from the users table.
type HeaderResolver struct {
	users UserGetter
}

func NewHeaderResolver(users UserGetter) *HeaderResolver {
	return &HeaderResolver{users: users}
}

func (h *HeaderResolver) Resolve(r *http.Request) (models.Principal, error) {
	raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if raw == "" {
		return models.Principal{}, ErrUnauthenticated
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return models.Principal{}, ErrUnauthenticated
	}

	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return models.Principal{}, ErrUnknownUser
		}
		return models.Principal{}, fmt.Errorf("resolve user %d: %w", id, err)
	}

	return models.Principal{ID: user.ID, Role: user.Role}, nil
}

// RemoteResolver forwards the caller's bearer token to an identity service.
type RemoteResolver struct {
	client *resty.Client
}

func NewRemoteResolver(baseURL string, timeout time.Duration) *RemoteResolver {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0)

	return &RemoteResolver{client: client}
}

func (rr *RemoteResolver) Resolve(r *http.Request) (models.Principal, error) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return models.Principal{}, ErrUnauthenticated
	}

	var principal models.Principal
	resp, err := rr.client.R().
		SetContext(r.Context()).
		SetHeader("Authorization", auth).
		SetResult(&principal).
		Get("/v1/principal")
	if err != nil {
		return models.Principal{}, fmt.Errorf("identity request: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.Principal{}, ErrUnauthenticated
	default:
		return models.Principal{}, fmt.Errorf("identity service returned status %d: %s", resp.StatusCode(), resp.String())
	}

	if principal.ID <= 0 || !principal.Role.Valid() {
		return models.Principal{}, errors.New("identity service returned an invalid principal")
	}

	return principal, nil
}

type contextKey struct{}

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func FromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(models.Principal)
	return p, ok
}

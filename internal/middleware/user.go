package middleware

import (
	"context"
	"log/slog"
	"net/http"

	apierrors "massupload/internal/errors"
)

// UserIDHeader names the authenticated user. Authentication happens in
// front of the service; the header is trusted as is.
const UserIDHeader = "X-User-ID"

type userKey struct{}

// WithUser stores the user id in ctx.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the user id stored by RequireUser.
func UserFromContext(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(userKey{}).(string)
	return user, ok && user != ""
}

type userHeader struct {
	ID string `json:"user_id" validate:"required,max=64,printascii,excludesall=0x7C"`
}

// RequireUser rejects requests without a well formed X-User-ID header.
func RequireUser(v *Validator, errorHandler *apierrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := userHeader{ID: r.Header.Get(UserIDHeader)}
			if header.ID == "" {
				errorHandler.HandleError(w, r, apierrors.ErrMissingUser)
				return
			}
			if err := v.ValidateStruct(header); err != nil {
				errorHandler.HandleError(w, r, err)
				return
			}
			ctx := WithUser(r.Context(), header.ID)
			v.logger.DebugContext(ctx, "user identified", slog.String("user", header.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

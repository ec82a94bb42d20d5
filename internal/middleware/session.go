package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/socialchef/recipewizard/internal/config"
)

type contextKey string

const SessionIDKey contextKey = "sessionID"

const issuer = "recipewizard"

// SessionMiddleware reads the signed session cookie and puts its session ID in
// the request context. Requests without a valid cookie get a fresh ID and a
// new cookie, so every handler behind it sees exactly one session. A valid
// cookie past half its lifetime is re-signed for the same ID, which keeps the
// cookie alive as long as the stored session is being used.
func SessionMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	secret := []byte(cfg.SessionSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			sessionID := ""
			reissue := true
			if c, err := r.Cookie(cfg.Session.CookieName); err == nil {
				claims, err := parseSessionClaims(c.Value, secret)
				if err != nil {
					slog.DebugContext(r.Context(), "Discarding session cookie", "error", err)
				} else {
					sessionID = claims.Subject
					reissue = needsRefresh(claims, cfg.Session.TTL, now)
				}
			}

			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			if reissue {
				if err := setSessionCookie(w, cfg, secret, sessionID, now); err != nil {
					slog.ErrorContext(r.Context(), "Failed to sign session cookie", "error", err)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
			}

			ctx := context.WithValue(r.Context(), SessionIDKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func needsRefresh(claims *jwt.RegisteredClaims, ttl time.Duration, now time.Time) bool {
	if claims.IssuedAt == nil {
		return true
	}
	return now.Sub(claims.IssuedAt.Time) >= ttl/2
}

func setSessionCookie(w http.ResponseWriter, cfg *config.Config, secret []byte, sessionID string, now time.Time) error {
	token, err := SignSessionToken(sessionID, secret, cfg.Session.TTL, now)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cfg.Session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// SignSessionToken returns an HS256 token whose subject is sessionID.
func SignSessionToken(sessionID string, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sessionID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(secret)
}

// ParseSessionToken verifies the token and returns its session ID.
func ParseSessionToken(tokenString string, secret []byte) (string, error) {
	claims, err := parseSessionClaims(tokenString, secret)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func parseSessionClaims(tokenString string, secret []byte) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}
	return claims, nil
}

// GetSessionID extracts the session ID from request context
func GetSessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(SessionIDKey).(string)
	return id, ok && id != ""
}

// RequireSession is a helper that returns 401 if no session ID in context
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetSessionID(r.Context()); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"context"
	"net/http"

	"wavechat/database"
	"wavechat/models"
)

type contextKey string

const UserContextKey contextKey = "user"

// Auth checks for a valid session cookie and adds the user to the request
// context.
func Auth(store *database.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("session")
			if err != nil {
				http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
				return
			}

			session, err := store.GetSession(cookie.Value)
			if err != nil {
				http.Error(w, `{"error": "Invalid session"}`, http.StatusUnauthorized)
				return
			}

			user, err := store.GetUserByID(session.UserID)
			if err != nil {
				http.Error(w, `{"error": "User not found"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserFromContext retrieves the user from the request context.
func GetUserFromContext(r *http.Request) *models.User {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"wavechat/database"
	"wavechat/middleware"
	"wavechat/models"
)

const sessionTTL = 7 * 24 * time.Hour

type registerRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

type loginRequest struct {
	// Phone number or username, either works.
	LoginIdentifier string `json:"loginIdentifier"`
	Password        string `json:"password"`
}

// Auth serves registration, login and logout. It is glue around the
// store; the relay only ever sees the authenticated identity it yields.
type Auth struct {
	store *database.Store
	log   *zap.Logger
}

func NewAuth(store *database.Store, log *zap.Logger) *Auth {
	return &Auth{store: store, log: log}
}

// Register creates a user keyed by phone number with a unique username.
func (a *Auth) Register(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Username = strings.TrimSpace(req.Username)

	if req.PhoneNumber == "" || req.Username == "" || req.Password == "" {
		http.Error(w, `{"error": "All fields are required"}`, http.StatusBadRequest)
		return
	}

	if _, err := a.store.GetUserByID(req.PhoneNumber); err == nil {
		http.Error(w, `{"error": "User with this phone number already exists"}`, http.StatusConflict)
		return
	}
	if _, err := a.store.GetUserByUsername(req.Username); err == nil {
		http.Error(w, `{"error": "Username is already taken"}`, http.StatusConflict)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, `{"error": "Server error"}`, http.StatusInternalServerError)
		return
	}

	user, err := a.store.CreateUser(req.PhoneNumber, req.Username, string(hashed))
	if err != nil {
		a.log.Error("user create failed", zap.Error(err))
		http.Error(w, `{"error": "Failed to create user"}`, http.StatusInternalServerError)
		return
	}

	if err := a.startSession(w, user); err != nil {
		http.Error(w, `{"error": "Failed to create session"}`, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"user":    user.Ref(),
	})
}

// Login authenticates by phone number or username.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	identifier := strings.TrimSpace(req.LoginIdentifier)

	user, err := a.store.GetUserByID(identifier)
	if err != nil {
		user, err = a.store.GetUserByUsername(identifier)
		if err != nil {
			http.Error(w, `{"error": "Invalid credentials"}`, http.StatusUnauthorized)
			return
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		http.Error(w, `{"error": "Invalid credentials"}`, http.StatusUnauthorized)
		return
	}

	if err := a.startSession(w, user); err != nil {
		http.Error(w, `{"error": "Failed to create session"}`, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"user":    user.Ref(),
	})
}

// Logout destroys the session and clears the cookie.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if cookie, err := r.Cookie("session"); err == nil {
		if err := a.store.DeleteSession(cookie.Value); err != nil {
			a.log.Warn("session delete failed", zap.Error(err))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	})

	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// Me returns the current authenticated user.
func (a *Auth) Me(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, `{"error": "Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	json.NewEncoder(w).Encode(user.Ref())
}

func (a *Auth) startSession(w http.ResponseWriter, user *models.User) error {
	sessionID := uuid.NewString()
	expiresAt := time.Now().Add(sessionTTL)
	if err := a.store.CreateSession(sessionID, user.ID, expiresAt); err != nil {
		a.log.Error("session create failed", zap.Error(err))
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    sessionID,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

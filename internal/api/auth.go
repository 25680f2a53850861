package api

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// Session cookie name
	SessionCookieName = "world_editor_session"

	// Session duration (24 hours)
	SessionDuration = 24 * time.Hour

	// Cookie settings
	CookieSecure   = false // Set to true in production with HTTPS
	CookieHTTPOnly = true
	CookieSameSite = http.SameSiteLaxMode
)

// EditorSession represents an authenticated editor session
type EditorSession struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionManager handles editor session authentication. Destructive world
// operations (reset, bulk vertex replace, re-tessellation) sit behind it.
type SessionManager struct {
	mu sync.RWMutex

	// Active sessions (sessionID -> session)
	sessions map[string]*EditorSession

	// Secret key for signing session cookies
	secretKey []byte

	// Shared editor token; empty disables login entirely
	editorToken string
}

// NewSessionManager creates a new session manager
func NewSessionManager(editorToken string) *SessionManager {
	// Generate random secret key for this instance
	secretKey := make([]byte, 32)
	if _, err := rand.Read(secretKey); err != nil {
		log.Printf("failed to generate secret key, using fallback")
		secretKey = []byte("world-editor-default-secret-key!")
	}

	sm := &SessionManager{
		sessions:    make(map[string]*EditorSession),
		secretKey:   secretKey,
		editorToken: editorToken,
	}

	go sm.cleanupLoop()
	return sm
}

// CreateSession creates a new session and returns its ID
func (sm *SessionManager) CreateSession(name string) (string, error) {
	sessionID := generateSessionID()
	now := time.Now()

	session := &EditorSession{
		Name:      name,
		CreatedAt: now,
		ExpiresAt: now.Add(SessionDuration),
	}

	sm.mu.Lock()
	sm.sessions[sessionID] = session
	sm.mu.Unlock()

	return sessionID, nil
}

// GetSession returns the session for an ID, or nil if missing/expired
func (sm *SessionManager) GetSession(sessionID string) *EditorSession {
	sm.mu.RLock()
	session, ok := sm.sessions[sessionID]
	sm.mu.RUnlock()

	if !ok {
		return nil
	}
	if time.Now().After(session.ExpiresAt) {
		sm.DeleteSession(sessionID)
		return nil
	}
	return session
}

// DeleteSession removes a session
func (sm *SessionManager) DeleteSession(sessionID string) {
	sm.mu.Lock()
	delete(sm.sessions, sessionID)
	sm.mu.Unlock()
}

// ValidateSession extracts and validates the session from a request
func (sm *SessionManager) ValidateSession(r *http.Request) *EditorSession {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil
	}

	sessionID, err := sm.decodeCookie(cookie.Value)
	if err != nil {
		return nil
	}

	return sm.GetSession(sessionID)
}

// SetSessionCookie writes the signed session cookie
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sm.encodeCookie(sessionID),
		Path:     "/",
		Expires:  time.Now().Add(SessionDuration),
		Secure:   CookieSecure,
		HttpOnly: CookieHTTPOnly,
		SameSite: CookieSameSite,
	})
}

// ClearSessionCookie expires the session cookie
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		Secure:   CookieSecure,
		HttpOnly: CookieHTTPOnly,
		SameSite: CookieSameSite,
	})
}

// encodeCookie signs the session ID with HMAC-SHA256
func (sm *SessionManager) encodeCookie(sessionID string) string {
	mac := hmac.New(sha256.New, sm.secretKey)
	mac.Write([]byte(sessionID))
	signature := hex.EncodeToString(mac.Sum(nil))
	return base64.URLEncoding.EncodeToString([]byte(sessionID + "|" + signature))
}

// decodeCookie verifies the signature and returns the session ID
func (sm *SessionManager) decodeCookie(cookieValue string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(cookieValue)
	if err != nil {
		return "", err
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("malformed session cookie")
	}
	sessionID, signature := parts[0], parts[1]

	mac := hmac.New(sha256.New, sm.secretKey)
	mac.Write([]byte(sessionID))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return "", fmt.Errorf("invalid session signature")
	}
	return sessionID, nil
}

// cleanupLoop periodically drops expired sessions
func (sm *SessionManager) cleanupLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		sm.cleanupExpiredSessions()
	}
}

func (sm *SessionManager) cleanupExpiredSessions() {
	now := time.Now()
	sm.mu.Lock()
	for id, session := range sm.sessions {
		if now.After(session.ExpiresAt) {
			delete(sm.sessions, id)
		}
	}
	sm.mu.Unlock()
}

func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// EditorAuthMiddleware rejects requests lacking a valid editor session
func (sm *SessionManager) EditorAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sm.ValidateSession(r) == nil {
			writeError(w, "Editor authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AuthStatus describes the current session state
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Name          string `json:"name,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// HandleLogin exchanges the shared editor token for a session cookie
func (sm *SessionManager) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if sm.editorToken == "" {
		writeError(w, "Editor login disabled", http.StatusForbidden)
		return
	}

	var req struct {
		Token string `json:"token"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Token), []byte(sm.editorToken)) != 1 {
		log.Printf("editor login rejected from %s", GetClientIP(r))
		writeError(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	name := req.Name
	if name == "" {
		name = "editor"
	}

	sessionID, err := sm.CreateSession(name)
	if err != nil {
		writeError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	sm.SetSessionCookie(w, sessionID)
	writeJSON(w, map[string]bool{"success": true})
}

// HandleAuthStatus reports whether the caller has a valid session
func (sm *SessionManager) HandleAuthStatus(w http.ResponseWriter, r *http.Request) {
	session := sm.ValidateSession(r)
	if session == nil {
		writeJSON(w, AuthStatus{Authenticated: false})
		return
	}
	writeJSON(w, AuthStatus{
		Authenticated: true,
		Name:          session.Name,
		ExpiresAt:     session.ExpiresAt.Format(time.RFC3339),
	})
}

// HandleLogout deletes the session and clears the cookie
func (sm *SessionManager) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if sessionID, err := sm.decodeCookie(cookie.Value); err == nil {
			sm.DeleteSession(sessionID)
		}
	}
	sm.ClearSessionCookie(w)
	writeJSON(w, map[string]bool{"success": true})
}

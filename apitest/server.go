package apitest

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goLearn/jwt"
	"github.com/google/uuid"
)

// Seeded accounts.
const (
	LearnerEmail       = "learner@example.com"
	InstructorEmail    = "instructor@example.com"
	Password           = "password123"
	PublishedCourseID  = "course-go-basics"
	PublishedLecture1  = "lecture-1"
	PublishedLecture2  = "lecture-2"
	defaultAccessTTL   = 15 * time.Minute
	defaultPresignTTL  = 15 * time.Minute
	defaultPageLimit   = 20
	maxRequestBodySize = 1 << 20
)

var errUnknownAccount = errors.New("apitest: unknown account")

type account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	password  string
}

// Server is a fake backend. The zero value is not usable; call New.
type Server struct {
	URL string

	srv       *httptest.Server
	issuer    *jwt.Issuer
	accessTTL time.Duration

	mu            sync.Mutex
	accounts      map[string]*account // by email
	accountsByID  map[string]*account
	refreshTokens map[string]string // token -> account id
	accessTokens  map[string]string // token -> account id
	courses       map[string]*course
	courseOrder   []string
	enrollments   map[string]*enrollment
	certificates  map[string]*certificate
	objects       map[string]object
	rotate        bool
	failStatus    int
	refreshDelay  time.Duration

	refreshCalls atomic.Int64
	logoutCalls  atomic.Int64
	requests     atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) { s.accessTTL = d }
}

// WithRefreshRotation makes every refresh issue a new refresh token and revoke the old one.
func WithRefreshRotation() Option {
	return func(s *Server) { s.rotate = true }
}

// New starts a fake backend seeded with a learner, an instructor and one published course.
func New(opts ...Option) *Server {
	s := &Server{
		accessTTL:     defaultAccessTTL,
		accounts:      map[string]*account{},
		accountsByID:  map[string]*account{},
		refreshTokens: map[string]string{},
		accessTokens:  map[string]string{},
		courses:       map[string]*course{},
		enrollments:   map[string]*enrollment{},
		certificates:  map[string]*certificate{},
		objects:       map[string]object{},
	}
	for _, opt := range opts {
		opt(s)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic("apitest: generate key: " + err.Error())
	}
	issuer, err := jwt.NewIssuer(jwt.Config{
		AccessTTL:     s.accessTTL,
		SigningMethod: jwt.MethodEd25519,
		PrivateKey:    priv,
		Issuer:        "golearn-apitest",
	})
	if err != nil {
		panic("apitest: issuer: " + err.Error())
	}
	s.issuer = issuer
	s.seed()

	s.srv = httptest.NewServer(s.routes())
	s.URL = s.srv.URL
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

// Client returns an http.Client configured for the server.
func (s *Server) Client() *http.Client {
	return s.srv.Client()
}

// ExpireAll invalidates every access token issued so far. Refresh tokens stay valid.
func (s *Server) ExpireAll() {
	s.mu.Lock()
	s.accessTokens = map[string]string{}
	s.mu.Unlock()
}

// RevokeRefreshTokens invalidates every refresh token, so the next refresh fails with 401.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	s.refreshTokens = map[string]string{}
	s.mu.Unlock()
}

// FailRefresh makes the refresh endpoint answer with status. Zero restores normal behaviour.
func (s *Server) FailRefresh(status int) {
	s.mu.Lock()
	s.failStatus = status
	s.mu.Unlock()
}

// SetRefreshDelay holds every refresh call for d before answering.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	s.refreshDelay = d
	s.mu.Unlock()
}

// RefreshCalls returns how many refresh calls reached the server.
func (s *Server) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

// LogoutCalls returns how many logout calls reached the server.
func (s *Server) LogoutCalls() int64 {
	return s.logoutCalls.Load()
}

// Requests returns the number of requests served, all endpoints included.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("GET /users/me", s.authed(s.handleMe))

	mux.HandleFunc("GET /courses", s.handleListCourses)
	mux.HandleFunc("POST /courses", s.authed(s.handleCreateCourse))
	mux.HandleFunc("GET /courses/{id}", s.handleGetCourse)
	mux.HandleFunc("PATCH /courses/{id}", s.authed(s.handleUpdateCourse))
	mux.HandleFunc("DELETE /courses/{id}", s.authed(s.handleDeleteCourse))
	mux.HandleFunc("POST /courses/{id}/publish", s.authed(s.handlePublishCourse))
	mux.HandleFunc("POST /courses/{id}/enroll", s.authed(s.handleEnroll))
	mux.HandleFunc("GET /instructor/courses", s.authed(s.handleInstructorCourses))

	mux.HandleFunc("GET /enrollments", s.authed(s.handleListEnrollments))
	mux.HandleFunc("GET /enrollments/{id}", s.authed(s.handleGetEnrollment))
	mux.HandleFunc("PATCH /enrollments/{id}/progress", s.authed(s.handleProgress))

	mux.HandleFunc("GET /certificates", s.authed(s.handleListCertificates))
	mux.HandleFunc("GET /certificates/{id}", s.authed(s.handleGetCertificate))
	mux.HandleFunc("GET /certificates/{id}/download", s.authed(s.handleDownloadCertificate))

	mux.HandleFunc("POST /uploads/presign", s.authed(s.handlePresign))
	mux.HandleFunc("PUT /storage/{key...}", s.handleStoragePut)
	mux.HandleFunc("GET /files/{key...}", s.handleFileGet)

	mux.HandleFunc("/echo", s.authed(s.handleEcho))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		if id := r.Header.Get("X-Request-ID"); id != "" {
			w.Header().Set("X-Request-ID", id)
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		mux.ServeHTTP(w, r)
	})
}

/*
====================================
AUTH
====================================
*/

type tokenResponse struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken,omitempty"`
	TokenType    string   `json:"tokenType"`
	ExpiresIn    int64    `json:"expiresIn"`
	User         *account `json:"user,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[strings.ToLower(in.Email)]
	s.mu.Unlock()
	if !ok || acc.password != in.Password {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
		return
	}
	s.writeSession(w, http.StatusOK, acc, true)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if !decode(w, r, &in) {
		return
	}
	if in.Email == "" || len(in.Password) < 8 || in.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "name, email and an 8 character password are required")
		return
	}
	if in.Role == "" {
		in.Role = "learner"
	}
	if in.Role != "learner" && in.Role != "instructor" {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "role must be learner or instructor")
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[strings.ToLower(in.Email)]; exists {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "email_taken", "an account with this email exists")
		return
	}
	acc := s.addAccountLocked(in.Name, in.Email, in.Password, in.Role)
	s.mu.Unlock()

	s.writeSession(w, http.StatusCreated, acc, true)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	delay, failStatus := s.refreshDelay, s.failStatus
	s.mu.Unlock()

	if delay > 0 && !sleepCtx(r.Context(), delay) {
		return
	}
	if failStatus != 0 {
		writeError(w, failStatus, "refresh_failed", "refresh rejected")
		return
	}

	s.mu.Lock()
	userID, ok := s.refreshTokens[in.RefreshToken]
	var acc *account
	if ok {
		acc = s.accountsByID[userID]
		if s.rotate {
			delete(s.refreshTokens, in.RefreshToken)
		}
	}
	s.mu.Unlock()
	if !ok || acc == nil {
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "refresh token is not valid")
		return
	}
	s.writeSession(w, http.StatusOK, acc, s.rotate)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.logoutCalls.Add(1)
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decode(w, r, &in) {
		return
	}
	s.mu.Lock()
	delete(s.refreshTokens, in.RefreshToken)
	delete(s.accessTokens, bearer(r))
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, acc *account) {
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request, acc *account) {
	var body json.RawMessage
	if r.ContentLength != 0 && r.Body != nil {
		if !decode(w, r, &body) {
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"method": r.Method,
		"userId": acc.ID,
		"body":   body,
	})
}

// IssueSession signs a token pair for an existing account without going through login. ttl
// overrides the access token lifetime; a negative value yields an already expired token.
func (s *Server) IssueSession(email string, ttl time.Duration) (access, refresh string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		return "", "", errUnknownAccount
	}
	access, err = s.issuer.IssueWithTTL(acc.ID, acc.Role, ttl)
	if err != nil {
		return "", "", err
	}
	if ttl > 0 {
		s.accessTokens[access] = acc.ID
	}
	refresh = uuid.NewString()
	s.refreshTokens[refresh] = acc.ID
	return access, refresh, nil
}

func (s *Server) writeSession(w http.ResponseWriter, status int, acc *account, withRefresh bool) {
	access, err := s.issuer.Issue(acc.ID, acc.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	resp := tokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.accessTTL / time.Second),
		User:        acc,
	}

	s.mu.Lock()
	s.accessTokens[access] = acc.ID
	if withRefresh {
		resp.RefreshToken = uuid.NewString()
		s.refreshTokens[resp.RefreshToken] = acc.ID
	}
	s.mu.Unlock()

	writeJSON(w, status, resp)
}

type authedHandler func(http.ResponseWriter, *http.Request, *account)

func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acc, ok := s.authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "token_expired", "access token is missing or expired")
			return
		}
		h(w, r, acc)
	}
}

func (s *Server) authenticate(r *http.Request) (*account, bool) {
	tok := bearer(r)
	if tok == "" {
		return nil, false
	}
	claims, err := s.issuer.Verify(tok)
	if err != nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.accessTokens[tok]
	if !ok || id != claims.Subject {
		return nil, false
	}
	acc, ok := s.accountsByID[id]
	return acc, ok
}

// optionalAccount authenticates when a token is present, for endpoints that also serve
// anonymous callers.
func (s *Server) optionalAccount(r *http.Request) *account {
	acc, _ := s.authenticate(r)
	return acc
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return h[len(prefix):]
}

func (s *Server) addAccountLocked(name, email, password, role string) *account {
	acc := &account{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     strings.ToLower(email),
		Role:      role,
		CreatedAt: time.Now().UTC(),
		password:  password,
	}
	s.accounts[acc.Email] = acc
	s.accountsByID[acc.ID] = acc
	return acc
}

/*
====================================
HELPERS
====================================
*/

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Code: code, Message: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed json body")
		return false
	}
	return true
}

func pageParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = defaultPageLimit
	}
	return page, limit
}

type pageBody[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

func paginate[T any](items []T, page, limit int) pageBody[T] {
	out := pageBody[T]{Items: []T{}, Page: page, Limit: limit, Total: len(items)}
	start := (page - 1) * limit
	if start >= len(items) {
		return out
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	out.Items = items[start:end]
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

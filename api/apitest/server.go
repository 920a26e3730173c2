// Package apitest runs an in-process stand-in for the hosted backend: the
// auth endpoints under /auth/v1 and the posts/comments tables under /rest/v1,
// with just enough behavior (password checks, row ownership, foreign keys,
// token expiry) to exercise the client end to end.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"danyak/types"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

const AnonKey = "test-anon-key"

const (
	RouteSignup         = "signup"
	RouteToken          = "token"
	RouteLogout         = "logout"
	RouteSelectPosts    = "select/posts"
	RouteSelectComments = "select/comments"
	RouteInsertPosts    = "insert/posts"
	RouteInsertComments = "insert/comments"
)

type user struct {
	id        string
	email     string
	hash      []byte
	confirmed bool
}

type token struct {
	userId    string
	expiresAt time.Time
}

type failure struct {
	status int
	body   map[string]any
}

type Server struct {
	*httptest.Server

	// when set, sign up returns the bare user and sign in is refused until Confirm
	RequireConfirmation bool
	TokenTTL            time.Duration

	mu       sync.Mutex
	users    map[string]*user
	access   map[string]*token
	refresh  map[string]string
	posts    []types.Post
	comments []types.Comment
	calls    map[string]int
	failures map[string]failure
	clock    time.Time
	gates    map[string]chan struct{}
}

func NewServer() *Server {
	s := &Server{
		TokenTTL: time.Hour,
		users:    map[string]*user{},
		access:   map[string]*token{},
		refresh:  map[string]string{},
		calls:    map[string]int{},
		failures: map[string]failure{},
		gates:    map[string]chan struct{}{},
		clock:    time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requireApiKey)
	r.HandleFunc("/auth/v1/signup", s.handleSignup).Methods("POST")
	r.HandleFunc("/auth/v1/token", s.handleToken).Methods("POST")
	r.HandleFunc("/auth/v1/logout", s.handleLogout).Methods("POST")
	r.HandleFunc("/rest/v1/{table}", s.handleSelect).Methods("GET")
	r.HandleFunc("/rest/v1/{table}", s.handleInsert).Methods("POST")
	return r
}

// Calls reports how many requests reached route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// FailNext makes the next request to route fail with status and msg.
func (s *Server) FailNext(route string, status int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, body: map[string]any{"message": msg}}
}

// Hold blocks requests to route until the returned func is called.
func (s *Server) Hold(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[route] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, route)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Server) Confirm(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[strings.ToLower(email)]; ok {
		u.confirmed = true
	}
}

// ExpireAccessTokens makes every issued access token expired; refresh tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.access {
		t.expiresAt = time.Now().Add(-time.Second)
	}
}

func (s *Server) Posts() []types.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Post{}, s.posts...)
}

// enter records the call and returns an injected failure, if one is pending.
func (s *Server) enter(route string) (failure, bool) {
	s.mu.Lock()
	s.calls[route]++
	gate := s.gates[route]
	f, ok := s.failures[route]
	if ok {
		delete(s.failures, route)
	}
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return f, ok
}

func (s *Server) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *Server) requireApiKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != AnonKey {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type credentials struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if f, ok := s.enter(RouteSignup); ok {
		writeJSON(w, f.status, f.body)
		return
	}

	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "msg": "invalid request body"})
		return
	}

	if !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "error_code": "validation_failed", "msg": "Unable to validate email address: invalid format"})
		return
	}
	if len(req.Password) < 6 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"code": 422, "error_code": "weak_password", "msg": "Password should be at least 6 characters."})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"msg": err.Error()})
		return
	}

	s.mu.Lock()
	key := strings.ToLower(req.Email)
	if _, exists := s.users[key]; exists {
		s.mu.Unlock()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"code": 422, "error_code": "user_already_exists", "msg": "User already registered"})
		return
	}
	u := &user{
		id:        uuid.New().String(),
		email:     req.Email,
		hash:      hash,
		confirmed: !s.RequireConfirmation,
	}
	s.users[key] = u
	s.mu.Unlock()

	if !u.confirmed {
		writeJSON(w, http.StatusOK, map[string]any{"id": u.id, "email": u.email, "confirmation_sent_at": time.Now().UTC()})
		return
	}

	writeJSON(w, http.StatusOK, s.issueSession(u))
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if f, ok := s.enter(RouteToken); ok {
		writeJSON(w, f.status, f.body)
		return
	}

	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request", "error_description": "invalid request body"})
		return
	}

	switch r.URL.Query().Get("grant_type") {
	case "password":
		s.mu.Lock()
		u, ok := s.users[strings.ToLower(req.Email)]
		s.mu.Unlock()
		if !ok || bcrypt.CompareHashAndPassword(u.hash, []byte(req.Password)) != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "Invalid login credentials"})
			return
		}
		if !u.confirmed {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "Email not confirmed"})
			return
		}
		writeJSON(w, http.StatusOK, s.issueSession(u))

	case "refresh_token":
		s.mu.Lock()
		userId, ok := s.refresh[req.RefreshToken]
		delete(s.refresh, req.RefreshToken)
		var u *user
		for _, candidate := range s.users {
			if candidate.id == userId {
				u = candidate
			}
		}
		s.mu.Unlock()
		if !ok || u == nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "Invalid Refresh Token: Refresh Token Not Found"})
			return
		}
		writeJSON(w, http.StatusOK, s.issueSession(u))

	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported_grant_type", "error_description": "unsupported grant type"})
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if f, ok := s.enter(RouteLogout); ok {
		writeJSON(w, f.status, f.body)
		return
	}

	accessToken := bearer(r)
	s.mu.Lock()
	t, ok := s.access[accessToken]
	if ok {
		delete(s.access, accessToken)
		for rt, userId := range s.refresh {
			if userId == t.userId {
				delete(s.refresh, rt)
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "invalid JWT: unable to parse or verify signature"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) issueSession(u *user) map[string]any {
	accessToken := uuid.New().String()
	refreshToken := uuid.New().String()
	expiresAt := time.Now().Add(s.TokenTTL)

	s.mu.Lock()
	s.access[accessToken] = &token{userId: u.id, expiresAt: expiresAt}
	s.refresh[refreshToken] = u.id
	s.mu.Unlock()

	return map[string]any{
		"access_token":  accessToken,
		"token_type":    "bearer",
		"expires_in":    int64(s.TokenTTL / time.Second),
		"expires_at":    expiresAt.Unix(),
		"refresh_token": refreshToken,
		"user":          map[string]any{"id": u.id, "email": u.email},
	}
}

// authenticate returns the user id behind the bearer token, "" for the anon
// key, or writes an error response and returns ok=false.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	b := bearer(r)
	if b == AnonKey {
		return "", true
	}

	s.mu.Lock()
	t, ok := s.access[b]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": "PGRST301", "message": "JWSError JWSInvalidSignature"})
		return "", false
	}
	if !time.Now().Before(t.expiresAt) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": "PGRST301", "message": "JWT expired"})
		return "", false
	}
	return t.userId, true
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	if f, ok := s.enter("select/" + table); ok {
		writeJSON(w, f.status, f.body)
		return
	}

	if _, ok := s.authenticate(w, r); !ok {
		return
	}

	q := r.URL.Query()
	filters := map[string]string{}
	for col, vals := range q {
		if col == "select" || col == "order" || len(vals) == 0 {
			continue
		}
		if !strings.HasPrefix(vals[0], "eq.") {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": "PGRST100", "message": fmt.Sprintf("unsupported filter on %s", col)})
			return
		}
		filters[col] = strings.TrimPrefix(vals[0], "eq.")
	}
	desc := strings.HasSuffix(q.Get("order"), ".desc")

	s.mu.Lock()
	defer s.mu.Unlock()

	switch table {
	case types.TablePosts:
		res := []types.Post{}
		for _, p := range s.posts {
			if matches(filters, map[string]string{"id": p.Id, "author_id": p.AuthorId}) {
				res = append(res, p)
			}
		}
		sort.SliceStable(res, func(i, j int) bool {
			if desc {
				return res[i].CreatedAt.After(res[j].CreatedAt)
			}
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		})
		writeJSON(w, http.StatusOK, res)

	case types.TableComments:
		res := []types.Comment{}
		for _, c := range s.comments {
			if matches(filters, map[string]string{"id": c.Id, "post_id": c.PostId, "author_id": c.AuthorId}) {
				res = append(res, c)
			}
		}
		sort.SliceStable(res, func(i, j int) bool {
			if desc {
				return res[i].CreatedAt.After(res[j].CreatedAt)
			}
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		})
		writeJSON(w, http.StatusOK, res)

	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"code": "42P01", "message": fmt.Sprintf("relation \"public.%s\" does not exist", table)})
	}
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	if f, ok := s.enter("insert/" + table); ok {
		writeJSON(w, f.status, f.body)
		return
	}

	userId, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	rlsViolation := map[string]any{"code": "42501", "message": fmt.Sprintf("new row violates row-level security policy for table \"%s\"", table)}
	if userId == "" {
		writeJSON(w, http.StatusUnauthorized, rlsViolation)
		return
	}

	switch table {
	case types.TablePosts:
		var row types.NewPost
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": "PGRST102", "message": "Empty or invalid json"})
			return
		}
		if row.AuthorId != userId {
			writeJSON(w, http.StatusForbidden, rlsViolation)
			return
		}
		if row.Title == "" || row.Content == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": "23502", "message": "null value in column violates not-null constraint"})
			return
		}

		s.mu.Lock()
		p := types.Post{
			Id:          uuid.New().String(),
			Title:       row.Title,
			Content:     row.Content,
			AuthorId:    row.AuthorId,
			AuthorEmail: row.AuthorEmail,
			CreatedAt:   s.tick(),
		}
		s.posts = append(s.posts, p)
		s.mu.Unlock()

		writeJSON(w, http.StatusCreated, []types.Post{p})

	case types.TableComments:
		var row types.NewComment
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": "PGRST102", "message": "Empty or invalid json"})
			return
		}
		if row.AuthorId != userId {
			writeJSON(w, http.StatusForbidden, rlsViolation)
			return
		}

		s.mu.Lock()
		found := false
		for _, p := range s.posts {
			if p.Id == row.PostId {
				found = true
				break
			}
		}
		if !found {
			s.mu.Unlock()
			writeJSON(w, http.StatusConflict, map[string]any{"code": "23503", "message": "insert or update on table \"comments\" violates foreign key constraint \"comments_post_id_fkey\""})
			return
		}
		c := types.Comment{
			Id:          uuid.New().String(),
			PostId:      row.PostId,
			Content:     row.Content,
			AuthorId:    row.AuthorId,
			AuthorEmail: row.AuthorEmail,
			CreatedAt:   s.tick(),
		}
		s.comments = append(s.comments, c)
		s.mu.Unlock()

		writeJSON(w, http.StatusCreated, []types.Comment{c})

	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"code": "42P01", "message": fmt.Sprintf("relation \"public.%s\" does not exist", table)})
	}
}

func matches(filters, row map[string]string) bool {
	for col, want := range filters {
		if got, ok := row[col]; !ok || got != want {
			return false
		}
	}
	return true
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

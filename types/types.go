package types

import "time"

type Session struct {
	UserId       string    `json:"userId"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired reports whether the access token is past (or within leeway of) its expiry.
// A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time, leeway time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(s.ExpiresAt)
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

type Post struct {
	Id          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	AuthorId    string    `json:"author_id"`
	AuthorEmail string    `json:"author_email"`
	CreatedAt   time.Time `json:"created_at"`
}

type Comment struct {
	Id          string    `json:"id"`
	PostId      string    `json:"post_id"`
	Content     string    `json:"content"`
	AuthorId    string    `json:"author_id"`
	AuthorEmail string    `json:"author_email"`
	CreatedAt   time.Time `json:"created_at"`
}

// rows sent on insert; the remote assigns id and created_at

type NewPost struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	AuthorId    string `json:"author_id"`
	AuthorEmail string `json:"author_email"`
}

type NewComment struct {
	PostId      string `json:"post_id"`
	Content     string `json:"content"`
	AuthorId    string `json:"author_id"`
	AuthorEmail string `json:"author_email"`
}

type AuthChangeEvent string

const (
	AuthEventInitialSession AuthChangeEvent = "INITIAL_SESSION"
	AuthEventSignedIn       AuthChangeEvent = "SIGNED_IN"
	AuthEventSignedOut      AuthChangeEvent = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthChangeEvent = "TOKEN_REFRESHED"
	AuthEventUserUpdated    AuthChangeEvent = "USER_UPDATED"
)

package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/shelfmark/shelf/internal/records"
)

// refreshMargin is how close to expiry a session is refreshed proactively.
const refreshMargin = time.Minute

// Session is an authenticated session.
type Session struct {
	AccessToken  string       `toml:"access_token" json:"access_token"`
	RefreshToken string       `toml:"refresh_token" json:"refresh_token"`
	ExpiresAt    time.Time    `toml:"expires_at" json:"-"`
	User         records.User `toml:"user" json:"-"`
}

// Valid reports whether the session carries a token and a user.
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.User.ID != ""
}

// Expired reports whether the access token expires within margin of now.
func (s Session) Expired(now time.Time, margin time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(margin).Before(s.ExpiresAt)
}

type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	User         authUser `json:"user"`
}

type authUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		FullName string `json:"full_name"`
	} `json:"user_metadata"`
}

func (u authUser) toUser() records.User {
	return records.User{ID: u.ID, Email: u.Email, FullName: u.UserMetadata.FullName}
}

func (t tokenResponse) toSession(now time.Time) Session {
	s := Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		User:         t.User.toUser(),
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0).UTC()
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
	}
	return s
}

// Session returns the current session, if any.
func (c *Client) Session() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// SetSession installs a previously persisted session.
func (c *Client) SetSession(s Session) {
	c.setSession(&s, false)
}

func (c *Client) setSession(s *Session, notify bool) {
	c.mu.Lock()
	c.session = s
	fn := c.onSession
	c.mu.Unlock()
	if notify && fn != nil && s != nil {
		fn(*s)
	}
}

// AccessToken returns the bearer token of the current session, or "".
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

// SignIn exchanges email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, errors.New("email and password are required")
	}
	body := map[string]string{"email": email, "password": password}
	return c.token(ctx, "password", body)
}

// RefreshSession rotates the current session's tokens.
func (c *Client) RefreshSession(ctx context.Context) (Session, error) {
	cur, ok := c.Session()
	if !ok || cur.RefreshToken == "" {
		return Session{}, ErrNotAuthenticated
	}
	return c.token(ctx, "refresh_token", map[string]string{"refresh_token": cur.RefreshToken})
}

// EnsureFresh refreshes the session when it is about to expire.
func (c *Client) EnsureFresh(ctx context.Context) error {
	cur, ok := c.Session()
	if !ok {
		return ErrNotAuthenticated
	}
	if !cur.Expired(time.Now(), refreshMargin) {
		return nil
	}
	if _, err := c.RefreshSession(ctx); err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	return nil
}

func (c *Client) token(ctx context.Context, grant string, body any) (Session, error) {
	rel := &url.URL{Path: "/auth/v1/token", RawQuery: url.Values{"grant_type": {grant}}.Encode()}
	var resp tokenResponse
	if err := c.do(ctx, request{method: http.MethodPost, rel: rel, body: body, dest: &resp, anon: true}); err != nil {
		return Session{}, err
	}
	if resp.AccessToken == "" {
		return Session{}, errors.New("token response missing access_token")
	}
	s := resp.toSession(time.Now())
	c.setSession(&s, true)
	return s, nil
}

// SignOut revokes the session server-side and forgets it locally. The local
// session is cleared even if the server call fails.
func (c *Client) SignOut(ctx context.Context) error {
	if c.AccessToken() == "" {
		return nil
	}
	err := c.do(ctx, request{method: http.MethodPost, rel: &url.URL{Path: "/auth/v1/logout"}})
	c.setSession(nil, false)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// CurrentUser fetches the user the session belongs to.
func (c *Client) CurrentUser(ctx context.Context) (records.User, error) {
	var u authUser
	if err := c.do(ctx, request{method: http.MethodGet, rel: &url.URL{Path: "/auth/v1/user"}, dest: &u}); err != nil {
		return records.User{}, err
	}
	return u.toUser(), nil
}

// LoadSession reads a persisted session. A missing file yields ok=false.
func LoadSession(path string) (Session, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, false, nil
		}
		return Session{}, false, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := toml.Unmarshal(data, &s); err != nil {
		return Session{}, false, fmt.Errorf("parse session: %w", err)
	}
	return s, s.Valid(), nil
}

// SaveSession writes s to path with owner-only permissions.
func SaveSession(path string, s Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// RemoveSession deletes a persisted session; a missing file is not an error.
func RemoveSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

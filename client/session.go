package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v4"
)

// Sign-in failure codes.
const (
	AuthPopupClosed         = "auth/popup-closed-by-user"
	AuthUnauthorizedDomain  = "auth/unauthorized-domain"
	AuthOperationNotAllowed = "auth/operation-not-allowed"
	AuthInvalidCredential   = "auth/invalid-credential"
	AuthInternal            = "auth/internal-error"
)

// AuthError is a failed sign-in.
type AuthError struct {
	Code string
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *AuthError) Unwrap() error { return e.Err }

// AuthMessage returns the message shown for a sign-in failure.
func AuthMessage(err error) string {
	var ae *AuthError
	if !errors.As(err, &ae) {
		return fmt.Sprintf(msgSignInFailedFmt, AuthInternal)
	}
	switch ae.Code {
	case AuthPopupClosed:
		return MsgPopupClosed
	case AuthUnauthorizedDomain:
		return MsgUnauthorized
	case AuthOperationNotAllowed:
		return MsgNotAllowed
	default:
		return fmt.Sprintf(msgSignInFailedFmt, ae.Code)
	}
}

// TokenSource obtains an ID token for the user, typically through an
// interactive provider.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken always returns the same token.
func StaticToken(token string) TokenSource {
	return TokenSourceFunc(func(context.Context) (string, error) { return token, nil })
}

// TokenSession is a SessionProvider backed by bearer tokens.
type TokenSession struct {
	source TokenSource

	mu       sync.Mutex
	identity *Identity
	subs     map[int]func(*Identity)
	next     int
}

func NewTokenSession(source TokenSource) *TokenSession {
	return &TokenSession{source: source, subs: make(map[int]func(*Identity))}
}

func (s *TokenSession) Subscribe(onChange func(*Identity)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = onChange
	current := copyIdentity(s.identity)
	s.mu.Unlock()

	onChange(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// SignIn fetches a token and publishes the identity it carries.
func (s *TokenSession) SignIn(ctx context.Context) error {
	if s.source == nil {
		return &AuthError{Code: AuthOperationNotAllowed}
	}
	token, err := s.source.Token(ctx)
	if err != nil {
		var ae *AuthError
		if errors.As(err, &ae) {
			return err
		}
		return &AuthError{Code: AuthInternal, Err: err}
	}
	identity, err := ParseIdentity(token)
	if err != nil {
		return &AuthError{Code: AuthInvalidCredential, Err: err}
	}
	s.set(identity)
	return nil
}

func (s *TokenSession) SignOut() { s.set(nil) }

// Identity returns the current identity or nil.
func (s *TokenSession) Identity() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyIdentity(s.identity)
}

// BearerToken returns the current token, or "" when signed out.
func (s *TokenSession) BearerToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.Token
}

func (s *TokenSession) set(identity *Identity) {
	s.mu.Lock()
	s.identity = identity
	subs := make([]func(*Identity), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(copyIdentity(identity))
	}
}

// ParseIdentity reads sub, name and email from a JWT without verifying it.
// The server verifies every request.
func ParseIdentity(token string) (*Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, errors.New("token has no subject")
	}
	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	return &Identity{UID: sub, DisplayName: name, Email: email, Token: token}, nil
}

func copyIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

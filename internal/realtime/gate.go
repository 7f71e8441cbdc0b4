package realtime

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/suvankar11223/chatzi-sub000/pkg/utils"
)

var (
	ErrMissingCredential = errors.New("authentication required")
	ErrInvalidCredential = errors.New("invalid token")
)

// Verifier resolves a bearer credential to an identity.
type Verifier interface {
	Verify(token string) (*utils.Identity, error)
}

// Session is attached to a connection once the gate accepts it.
type Session struct {
	ConnID      string
	UserID      string
	Email       string
	Name        string
	ConnectedAt time.Time
}

// Gate authenticates socket handshakes. A rejected handshake is final.
type Gate struct {
	verifier Verifier
}

func NewGate(v Verifier) *Gate {
	return &Gate{verifier: v}
}

// Authenticate extracts the credential from the handshake URL (token, then
// auth_token) or the Authorization header and verifies it.
func (g *Gate) Authenticate(connID string, u url.URL, header http.Header) (*Session, error) {
	token := Credential(u, header)
	if token == "" {
		return nil, ErrMissingCredential
	}

	id, err := g.verifier.Verify(token)
	if err != nil {
		return nil, ErrInvalidCredential
	}

	return &Session{
		ConnID:      connID,
		UserID:      id.UserID,
		Email:       id.Email,
		Name:        id.Name,
		ConnectedAt: time.Now(),
	}, nil
}

// Credential returns the bearer token carried by a handshake, or "".
func Credential(u url.URL, header http.Header) string {
	q := u.Query()
	if t := q.Get("token"); t != "" {
		return t
	}
	if t := q.Get("auth_token"); t != "" {
		return t
	}
	if h := header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

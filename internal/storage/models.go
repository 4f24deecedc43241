// internal/storage/models.go
package storage

// Identity is a registered user: a username plus its credential verifier.
// The verifier is write-once; there is no password-change flow.
type Identity struct {
	Username  string `json:"username"`
	Verifier  []byte `json:"-"`
	CreatedAt int64  `json:"created_at"`
}

// Session is an authenticated browser session bound to one identity.
type Session struct {
	Token     string `json:"-"`
	Username  string `json:"username"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// Package authv1 defines the authkeeper.v1.AuthService wire messages, its gRPC
// service descriptor and a client. Messages travel JSON-encoded under the "json"
// content subtype.
package authv1

// Identity is the client-visible projection of an account.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	SlugID   string `json:"slug_id,omitempty"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	Identity Identity `json:"identity"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"` // username or email
	Password   string `json:"password"`
}

// LoginResponse is also the result of a successful code verification.
type LoginResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresAt    int64    `json:"expires_at"` // access token expiry, unix seconds
	SessionID    string   `json:"session_id"`
	Identity     Identity `json:"identity"`
}

type RotateTokenRequest struct {
	IdentityID   string `json:"identity_id"`
	SessionID    string `json:"session_id"`
	RefreshToken string `json:"refresh_token"`
}

type RotateTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	SessionID    string `json:"session_id"`
}

// LogoutRequest is authenticated by the bearer token in the authorization metadata;
// that token is the one blacklisted.
type LogoutRequest struct {
	IdentityID string `json:"identity_id"`
	SessionID  string `json:"session_id"`
}

type LogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type IssueCodeRequest struct {
	Email string `json:"email"`
}

type IssueCodeResponse struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type VerifyCodeRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

type ListSessionsRequest struct {
	IdentityID string `json:"identity_id"`
}

type ListSessionsResponse struct {
	SessionIDs []string `json:"session_ids"`
}

type RevokeAllRequest struct {
	IdentityID string `json:"identity_id"`
}

type RevokeAllResponse struct {
	Revoked int64 `json:"revoked"`
}

type GetIdentityBySlugRequest struct {
	Slug string `json:"slug"`
}

type GetIdentityBySlugResponse struct {
	Identity Identity `json:"identity"`
}

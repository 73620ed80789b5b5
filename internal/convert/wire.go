// Package convert maps domain results to authv1 wire messages and parses wire ids.
package convert

import (
	"fmt"

	"github.com/and161185/authkeeper/internal/api/authv1"
	"github.com/and161185/authkeeper/internal/model"
	u "github.com/gofrs/uuid/v5"
)

// ToWireIdentity converts an identity summary.
func ToWireIdentity(s model.IdentitySummary) authv1.Identity {
	return authv1.Identity{
		ID:       s.ID.String(),
		Username: s.Username,
		Email:    s.Email,
		Role:     s.Role,
		SlugID:   s.SlugID,
	}
}

// ToLoginResponse converts a login or code-registration result.
func ToLoginResponse(r model.LoginResult) *authv1.LoginResponse {
	return &authv1.LoginResponse{
		AccessToken:  r.Tokens.AccessToken,
		RefreshToken: r.Tokens.RefreshToken,
		ExpiresAt:    r.Tokens.ExpiresAt.Unix(),
		SessionID:    r.SessionID.String(),
		Identity:     ToWireIdentity(r.Identity),
	}
}

// ToRotateResponse converts a rotation result.
func ToRotateResponse(r model.RotateResult) *authv1.RotateTokenResponse {
	return &authv1.RotateTokenResponse{
		AccessToken:  r.Tokens.AccessToken,
		RefreshToken: r.Tokens.RefreshToken,
		ExpiresAt:    r.Tokens.ExpiresAt.Unix(),
		SessionID:    r.SessionID.String(),
	}
}

// ToSessionIDs converts session ids to strings.
func ToSessionIDs(ids []u.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// FromVerifyCodeRequest converts a code verification request.
func FromVerifyCodeRequest(r *authv1.VerifyCodeRequest) model.VerifyCodeInput {
	return model.VerifyCodeInput{Email: r.Email, Code: r.Code, Username: r.Username, Password: r.Password}
}

// ParseID parses a wire UUID; field names the request field for the error.
func ParseID(field, s string) (u.UUID, error) {
	id, err := u.FromString(s)
	if err != nil || id == u.Nil {
		return u.Nil, fmt.Errorf("bad %s", field)
	}
	return id, nil
}

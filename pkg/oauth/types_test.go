package oauth

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestToken_IsExpired(t *testing.T) {
	token := &Token{IssuedAt: 1000, ExpiresIn: int64Ptr(10)}

	tests := []struct {
		name string
		now  int64
		want bool
	}{
		{"well before expiry", 1000, false},
		{"one second before expiry", 1009, false},
		{"exactly at expiry", 1010, true},
		{"after expiry", 2000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, token.IsExpired(time.Unix(tt.now, 0)))
		})
	}
}

func TestToken_IsExpired_NoExpiresIn(t *testing.T) {
	token := &Token{IssuedAt: 1000}
	for _, now := range []int64{0, 1000, 1 << 40} {
		assert.False(t, token.IsExpired(time.Unix(now, 0)), "now=%d", now)
	}
}

func TestToken_ExpiresAt(t *testing.T) {
	_, ok := (&Token{}).ExpiresAt()
	assert.False(t, ok)

	at, ok := (&Token{IssuedAt: 100, ExpiresIn: int64Ptr(50)}).ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, int64(150), at.Unix())
}

func TestToken_AuthorizationValue(t *testing.T) {
	assert.Equal(t, "Bearer abc", (&Token{AccessToken: "abc"}).AuthorizationValue())
	assert.Equal(t, "MAC abc", (&Token{AccessToken: "abc", TokenType: "MAC"}).AuthorizationValue())
}

func TestToken_Clone(t *testing.T) {
	orig := &Token{AccessToken: "a", ExpiresIn: int64Ptr(5)}
	c := orig.Clone()
	*c.ExpiresIn = 99
	c.AccessToken = "b"

	assert.Equal(t, int64(5), *orig.ExpiresIn)
	assert.Equal(t, "a", orig.AccessToken)
	assert.Nil(t, (*Token)(nil).Clone())
}

func TestToken_JSONFieldNames(t *testing.T) {
	token := &Token{
		AccessToken:  "at",
		TokenType:    "Bearer",
		RefreshToken: "rt",
		IssuedAt:     1000,
		ExpiresIn:    int64Ptr(3600),
	}
	data, err := json.Marshal(token)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "at", raw["access_token"])
	assert.Equal(t, "rt", raw["refresh_token"])
	assert.EqualValues(t, 1000, raw["issued_at"])
	assert.EqualValues(t, 3600, raw["expires_in"])
	assert.NotContains(t, raw, "id_token")
}

func TestNewPendingAuthorizationRequest(t *testing.T) {
	cfg := ClientConfig{ClientID: "c", RedirectURI: "https://app/cb", Scopes: []string{"read", "write"}}

	req, err := NewPendingAuthorizationRequest(cfg)
	require.NoError(t, err)

	assert.Equal(t, "c", req.ClientID)
	assert.Equal(t, "https://app/cb", req.RedirectURI)
	assert.Equal(t, []string{"read", "write"}, req.Scopes)
	assert.Equal(t, "code", req.ResponseType)
	assert.Equal(t, "S256", req.CodeChallengeMethod)
	assert.NotEmpty(t, req.State)
	assert.NotEmpty(t, req.CodeVerifier)
	assert.NoError(t, req.Validate())

	other, err := NewPendingAuthorizationRequest(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, req.State, other.State)
}

func TestPendingAuthorizationRequest_Validate(t *testing.T) {
	req := &PendingAuthorizationRequest{ClientID: "c", State: "s", CodeChallenge: "x"}
	err := req.Validate()
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
}

func TestResponseFromParams(t *testing.T) {
	_, ok := ResponseFromParams(map[string]string{"state": "S1"})
	assert.False(t, ok, "state alone is not a response")

	resp, ok := ResponseFromParams(map[string]string{"code": "ABC", "state": "S1"})
	require.True(t, ok)
	assert.False(t, resp.IsError())
	assert.Equal(t, "ABC", resp.Code)

	resp, ok = ResponseFromParams(map[string]string{
		"error":             "access_denied",
		"error_description": "user said no",
		"error_uri":         "https://auth.example/help",
	})
	require.True(t, ok)
	require.True(t, resp.IsError())

	authErr := resp.AsError()
	assert.Equal(t, "access_denied", authErr.Code)
	assert.Contains(t, authErr.Error(), "user said no")
	assert.True(t, IsAuthorizationError(authErr))
}

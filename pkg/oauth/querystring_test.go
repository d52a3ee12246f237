package oauth

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestParseResponseParams(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		useFragment bool
		want        map[string]string
	}{
		{
			name: "query parameters",
			raw:  "https://app/cb?code=ABC&state=S1",
			want: map[string]string{"code": "ABC", "state": "S1"},
		},
		{
			name:        "fragment hint ignored",
			raw:         "https://app/cb?code=ABC&state=S1#code=FRAG&state=F",
			useFragment: true,
			want:        map[string]string{"code": "ABC", "state": "S1"},
		},
		{
			name:        "fragment only yields nothing",
			raw:         "https://app/cb#code=FRAG",
			useFragment: true,
			want:        map[string]string{},
		},
		{
			name: "first value wins",
			raw:  "https://app/cb?state=one&state=two",
			want: map[string]string{"state": "one"},
		},
		{
			name: "escaped values",
			raw:  "https://app/cb?error=access_denied&error_description=user%20declined",
			want: map[string]string{"error": "access_denied", "error_description": "user declined"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseResponseParams(mustParse(t, tt.raw), tt.useFragment)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseResponseParams_Nil(t *testing.T) {
	assert.Empty(t, ParseResponseParams(nil, false))
}

func TestParseResponseParams_SatisfiesParamsParser(t *testing.T) {
	var parser ParamsParser = ParseResponseParams
	assert.Equal(t, "x", parser(mustParse(t, "/cb?code=x"), true)["code"])
}

func TestStripResponseParams(t *testing.T) {
	u := mustParse(t, "https://app/page?code=ABC&state=S1&tab=2&error_uri=x#top")
	stripped := StripResponseParams(u)

	assert.Equal(t, "https://app/page?tab=2#top", stripped.String())
	assert.Equal(t, "ABC", u.Query().Get("code"), "input must not be modified")

	clean := StripResponseParams(mustParse(t, "https://app/page?code=1&state=2"))
	assert.Equal(t, "https://app/page", clean.String())

	assert.Nil(t, StripResponseParams(nil))
}

func TestStripResponseParams_KeepsOrderAndEncoding(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "https://app/?z=1&code=x&a=2&state=s", want: "https://app/?z=1&a=2"},
		{raw: "https://app/?b=2&code=x&a=1%20z&state=s#frag", want: "https://app/?b=2&a=1%20z#frag"},
		{raw: "https://app/?q=a+b&%63ode=x&flag", want: "https://app/?q=a+b&flag"},
		{raw: "https://app/?tab=2&tab=1&error=denied", want: "https://app/?tab=2&tab=1"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, StripResponseParams(mustParse(t, tt.raw)).String())
		})
	}
}

func TestHasResponseParams(t *testing.T) {
	assert.True(t, HasResponseParams(mustParse(t, "https://app/?error=x")))
	assert.False(t, HasResponseParams(mustParse(t, "https://app/?tab=1")))
	assert.False(t, HasResponseParams(mustParse(t, "https://app/#code=1")))
	assert.False(t, HasResponseParams(nil))
}

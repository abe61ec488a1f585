package api_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/seb7887/uibus/api"
	"github.com/seb7887/uibus/httpx"
	"github.com/seb7887/uibus/httpx/httpxtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticVerifier(t *testing.T) {
	v := api.StaticVerifier{"t": {Email: "a@b.c"}}

	id, err := v.Verify(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", id.Email)

	_, err = v.Verify(context.Background(), "other")
	assert.ErrorIs(t, err, api.ErrInvalidToken)
}

func TestTokenInfoVerifier(t *testing.T) {
	server := httpxtest.NewTestServer(httpxtest.WithHandler(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id_token") {
		case "good":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"aud":"client-1","sub":"42","email":"u@example.com","name":"U"}`))
		case "other-audience":
			_, _ = w.Write([]byte(`{"aud":"client-2","sub":"43"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	verifier := api.NewTokenInfoVerifier(httpx.NewClient(), server.URL+"/tokeninfo", "client-1")

	tests := []struct {
		name    string
		token   string
		want    api.Identity
		wantErr bool
	}{
		{"valid", "good", api.Identity{Subject: "42", Email: "u@example.com", Name: "U"}, false},
		{"wrong audience", "other-audience", api.Identity{}, true},
		{"rejected", "bad", api.Identity{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := verifier.Verify(context.Background(), tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, api.ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, 3, server.RequestCount())
}

package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/leopard-outreach/internal/model"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 7, req.LeadID)
		assert.Equal(t, "frota nova", req.Insight)
		_ = json.NewEncoder(w).Encode(map[string]string{"content": "Parabéns pela frota nova!"})
	}))
	defer srv.Close()

	g := &HTTPGenerator{Endpoint: srv.URL, Token: "t", Client: srv.Client()}
	out, err := g.Generate(context.Background(), Request{LeadID: 7, Channel: model.ChannelChat, Insight: "frota nova"})
	require.NoError(t, err)
	assert.Equal(t, "Parabéns pela frota nova!", out)
}

func TestGenerateErrors(t *testing.T) {
	var nilGen *HTTPGenerator
	_, err := nilGen.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrDisabled)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":"  "}`))
	}))
	defer srv.Close()
	_, err = (&HTTPGenerator{Endpoint: srv.URL}).Generate(context.Background(), Request{})
	assert.Error(t, err)
}

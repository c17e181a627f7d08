package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "phi3", req.Model)
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(generateResponse{
			Response: "  repair_request\n",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "phi3", logrus.New())

	reply, err := client.Generate(context.Background(), "classify this")
	require.NoError(t, err)

	// Whitespace around the completion is stripped
	assert.Equal(t, "repair_request", reply)
}

func TestClient_Generate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad model"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "phi3", logrus.New())

	_, err := client.Generate(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestClient_Generate_ConnectionRefused(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "phi3", logrus.New())

	_, err := client.Generate(context.Background(), "anything")
	assert.Error(t, err)
}

package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-captioner/pkg/types"
)

// fakeServer emulates the parts of the Ollama API the client touches
type fakeServer struct {
	known     map[string]bool
	pullable  bool
	pulls     int
	lastGen   api.GenerateRequest
	genReply  string
	genStatus int
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, r *http.Request) {
		var req api.ShowRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if !f.known[req.Model] {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `{"error":"model '%s' not found"}`, req.Model)
			return
		}
		fmt.Fprint(w, `{"modelfile":"FROM x","details":{"family":"clip"}}`)
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		var req api.PullRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.pulls++
		if !f.pullable {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"pull model manifest: file does not exist"}`)
			return
		}
		f.known[req.Model] = true
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"status":"verifying sha256 digest"}`)
		fmt.Fprintln(w, `{"status":"success"}`)
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastGen))
		if f.genStatus != 0 {
			w.WriteHeader(f.genStatus)
			fmt.Fprint(w, `{"error":"model runner has unexpectedly stopped"}`)
			return
		}
		resp := api.GenerateResponse{Model: f.lastGen.Model, Response: f.genReply, Done: true}
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeServer) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/api/chat", srv.Client())
	require.NoError(t, err)
	return c
}

func TestNewClientInvalidURL(t *testing.T) {
	_, err := NewClient("://bad", nil)
	assert.Error(t, err)

	_, err = NewClient("localhost", nil)
	assert.Error(t, err)

	c, err := NewClient("", nil)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestResolveKnownModel(t *testing.T) {
	f := &fakeServer{known: map[string]bool{"moondream": true}}
	c := newTestClient(t, f)

	require.NoError(t, c.Resolve(context.Background(), "moondream"))
	assert.Zero(t, f.pulls)
}

func TestResolvePullsMissingModel(t *testing.T) {
	f := &fakeServer{known: map[string]bool{}, pullable: true}
	c := newTestClient(t, f)

	require.NoError(t, c.Resolve(context.Background(), "llava"))
	assert.Equal(t, 1, f.pulls)
	assert.True(t, f.known["llava"])
}

func TestResolveUnknownModelFails(t *testing.T) {
	f := &fakeServer{known: map[string]bool{}}
	c := newTestClient(t, f)

	err := c.Resolve(context.Background(), "no-such-model")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-model")
}

func TestCaption(t *testing.T) {
	f := &fakeServer{known: map[string]bool{}, genReply: "a dog running on the beach"}
	c := newTestClient(t, f)

	img := []byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 3}
	caption, err := c.Caption(context.Background(), "moondream", "caption", img, types.Decoding{MaxTokens: 16, NumBeams: 4})
	require.NoError(t, err)
	assert.Equal(t, "a dog running on the beach", caption)

	assert.Equal(t, "moondream", f.lastGen.Model)
	assert.Equal(t, "caption", f.lastGen.Prompt)
	require.Len(t, f.lastGen.Images, 1)
	assert.Equal(t, img, []byte(f.lastGen.Images[0]))
	require.NotNil(t, f.lastGen.Stream)
	assert.False(t, *f.lastGen.Stream)

	assert.Equal(t, float64(16), f.lastGen.Options["num_predict"])
	assert.Equal(t, float64(4), f.lastGen.Options["top_k"])
	assert.Equal(t, float64(0), f.lastGen.Options["temperature"])
	assert.Equal(t, float64(0), f.lastGen.Options["seed"])
}

func TestCaptionServerError(t *testing.T) {
	f := &fakeServer{known: map[string]bool{}, genStatus: http.StatusInternalServerError}
	c := newTestClient(t, f)

	_, err := c.Caption(context.Background(), "moondream", "caption", []byte{1}, types.Decoding{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpectedly stopped")
}

func TestDecodingOptions(t *testing.T) {
	opts := decodingOptions(types.Decoding{})
	assert.NotContains(t, opts, "num_predict")
	assert.NotContains(t, opts, "top_k")
	assert.Equal(t, 0, opts["temperature"])

	opts = decodingOptions(types.Decoding{MaxTokens: 32, NumBeams: 2})
	assert.Equal(t, 32, opts["num_predict"])
	assert.Equal(t, 2, opts["top_k"])
}

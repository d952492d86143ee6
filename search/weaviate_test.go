package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeWeaviate bildet den REST-Ausschnitt nach, den WeaviateIndex benutzt.
type fakeWeaviate struct {
	mu      sync.Mutex
	objects map[string]map[string]interface{}
	calls   []string
	status  int // != 0: jede Objekt-Anfrage scheitert mit diesem Status
}

func (f *fakeWeaviate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/v1/meta" {
		_ = json.NewEncoder(w).Encode(map[string]string{"version": "1.25.0"})
		return
	}
	if !strings.HasPrefix(r.URL.Path, "/v1/objects") {
		http.NotFound(w, r)
		return
	}
	f.calls = append(f.calls, r.Method)
	if f.status != 0 {
		http.Error(w, `{"error":[{"message":"boom"}]}`, f.status)
		return
	}

	id := path.Base(r.URL.Path)
	var body struct {
		ID         string                 `json:"id"`
		Class      string                 `json:"class"`
		Properties map[string]interface{} `json:"properties"`
	}
	switch r.Method {
	case http.MethodPost:
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.objects[body.ID] = body.Properties
		_ = json.NewEncoder(w).Encode(body)
	case http.MethodPut:
		if _, ok := f.objects[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.objects[id] = body.Properties
		_ = json.NewEncoder(w).Encode(body)
	case http.MethodGet:
		props, ok := f.objects[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": id, "class": "EtdEntryMeta", "properties": props})
	case http.MethodDelete:
		if _, ok := f.objects[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.objects, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeWeaviate) failWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

func (f *fakeWeaviate) takeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.calls
	f.calls = nil
	return calls
}

func newFakeWeaviateIndex(t *testing.T) (*WeaviateIndex, *fakeWeaviate) {
	t.Helper()
	fake := &fakeWeaviate{objects: map[string]map[string]interface{}{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewWeaviateClient(srv.URL)
	require.NoError(t, err)
	return NewWeaviateIndex(client, "EtdEntryMeta", zaptest.NewLogger(t)), fake
}

func TestWeaviateIndexLifecycle(t *testing.T) {
	ctx := context.Background()
	idx, fake := newFakeWeaviateIndex(t)

	t.Run("create then replace", func(t *testing.T) {
		require.NoError(t, idx.Index(ctx, sampleMeta(1)))
		assert.Equal(t, []string{http.MethodPut, http.MethodPost}, fake.takeCalls())

		updated := sampleMeta(1)
		updated.Title = "On Sagas, revised"
		require.NoError(t, idx.Index(ctx, updated))
		assert.Equal(t, []string{http.MethodPut}, fake.takeCalls())

		got, err := idx.FindByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, uint(1), got.ID)
		assert.Equal(t, "On Sagas, revised", got.Title)
		assert.Equal(t, updated.Subject, got.Subject)
	})

	t.Run("find all skips missing objects", func(t *testing.T) {
		require.NoError(t, idx.Index(ctx, sampleMeta(2)))
		metas, err := idx.FindAllByIDs(ctx, []uint{2, 77, 1})
		require.NoError(t, err)
		require.Len(t, metas, 2)
		assert.Equal(t, uint(2), metas[0].ID)
		assert.Equal(t, uint(1), metas[1].ID)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, idx.DeleteByID(ctx, 1))
		require.NoError(t, idx.DeleteByID(ctx, 1))

		_, err := idx.FindByID(ctx, 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("server errors propagate", func(t *testing.T) {
		fake.failWith(http.StatusInternalServerError)
		defer fake.failWith(0)

		assert.Error(t, idx.Index(ctx, sampleMeta(3)))
		assert.Error(t, idx.DeleteByID(ctx, 2))
		_, err := idx.FindByID(ctx, 2)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
		_, err = idx.FindAllByIDs(ctx, []uint{2})
		assert.Error(t, err)
	})
}

// Die Objekt-ID steht in der Request-URL; Transportfehler dürfen nie als fehlendes Objekt gelten.
func TestWeaviateIndexTransportFailure(t *testing.T) {
	ctx := context.Background()
	client, err := NewWeaviateClient("http://127.0.0.1:1")
	require.NoError(t, err)
	idx := NewWeaviateIndex(client, "EtdEntryMeta", zaptest.NewLogger(t))

	for _, id := range []uint{1, 181, 404} {
		assert.Error(t, idx.DeleteByID(ctx, id), "delete %d", id)
		_, err := idx.FindByID(ctx, id)
		assert.Error(t, err, "find %d", id)
		assert.NotErrorIs(t, err, ErrNotFound, "find %d", id)
		assert.Error(t, idx.Index(ctx, sampleMeta(id)), "index %d", id)
	}
}

package remote_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sagarc03/swiftpath"
	"github.com/sagarc03/swiftpath/backend/backendtest"
	"github.com/sagarc03/swiftpath/backend/memory"
	"github.com/sagarc03/swiftpath/backend/remote"
	gateway "github.com/sagarc03/swiftpath/http"
	"github.com/sagarc03/swiftpath/keybackend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	accessKey = "AKIAREMOTE"
	secretKey = "remote-secret"
)

// newGateway serves a fresh memory backend behind signed reads and writes.
func newGateway(t *testing.T) *httptest.Server {
	t.Helper()

	store := keybackend.NewMapSecretStore(map[string]string{accessKey: secretKey})
	verifier := gateway.NewSignatureVerifier(gateway.AWSConfig{Region: "us-east-1", Service: "s3"}, store)
	h := gateway.NewHandler(&gateway.HandlerConfig{ReadVerifier: verifier, WriteVerifier: verifier}, memory.New())

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv
}

func newBackend(t *testing.T, endpoint string, opts ...remote.Option) *remote.Backend {
	t.Helper()

	b, err := remote.New(remote.Config{Endpoint: endpoint, AccessKey: accessKey, SecretKey: secretKey}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBackend_Conformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) swiftpath.Backend {
		return newBackend(t, newGateway(t).URL)
	})
}

func TestNew_RequiresEndpoint(t *testing.T) {
	_, err := remote.New(remote.Config{})
	assert.ErrorIs(t, err, remote.ErrEndpointRequired)
}

func TestBackend_Name(t *testing.T) {
	b := newBackend(t, "http://localhost:5708")
	assert.Equal(t, "remote", b.Name())
}

func TestBackend_Unsigned(t *testing.T) {
	srv := newGateway(t)
	b, err := remote.New(remote.Config{Endpoint: srv.URL})
	require.NoError(t, err)

	err = b.CreateContainer(context.Background(), "c")
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
}

func TestBackend_WrongSecret(t *testing.T) {
	srv := newGateway(t)
	b, err := remote.New(remote.Config{Endpoint: srv.URL, AccessKey: accessKey, SecretKey: "nope"})
	require.NoError(t, err)

	_, err = b.ListContainers(context.Background(), "", 0)
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
}

func TestBackend_EscapedKeys(t *testing.T) {
	b := newBackend(t, newGateway(t).URL)
	ctx := context.Background()
	require.NoError(t, b.CreateContainer(ctx, "c"))

	for _, key := range []string{"with space.txt", "q?uery#frag", "100%/done", "ünï/cödé"} {
		t.Run(key, func(t *testing.T) {
			backendtest.Put(t, b, "c", key, key)
			assert.Equal(t, key, backendtest.Read(t, b, "c", key))

			info, err := b.Stat(ctx, swiftpath.ObjectRef{Container: "c", Key: key})
			require.NoError(t, err)
			assert.Equal(t, int64(len(key)), info.Size)
		})
	}
}

func TestBackend_PutMetadata(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_ = gateway.WriteJSON(w, http.StatusCreated, gateway.Object{Key: "k", Size: 1})
	}))
	t.Cleanup(srv.Close)

	b := newBackend(t, srv.URL)
	info, err := b.Put(context.Background(), swiftpath.ObjectRef{Container: "c", Key: "k"}, strings.NewReader("x"),
		swiftpath.PutOptions{ContentType: "text/plain", Metadata: map[string]string{"owner": "ops"}})
	require.NoError(t, err)

	assert.Equal(t, int64(1), info.Size)
	assert.Equal(t, "text/plain", got.Get("Content-Type"))
	assert.Equal(t, "ops", got.Get("X-Object-Meta-Owner"))
}

func TestBackend_RetriesReads(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			gateway.WriteError(w, http.StatusServiceUnavailable, gateway.CodeInternal, "try again")
			return
		}
		_ = gateway.WriteJSON(w, http.StatusOK, gateway.ContainerListResponse{
			Containers: []gateway.Container{{Name: "c", Count: 2, Bytes: 10}},
		})
	}))
	t.Cleanup(srv.Close)

	b := newBackend(t, srv.URL, remote.WithMaxRetries(1))
	res, err := b.ListContainers(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, res.Containers, 1)
	assert.Equal(t, int64(2), res.Containers[0].Count)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBackend_DoesNotRetryWrites(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gateway.WriteError(w, http.StatusInternalServerError, gateway.CodeInternal, "boom")
	}))
	t.Cleanup(srv.Close)

	b := newBackend(t, srv.URL)
	err := b.Delete(context.Background(), swiftpath.ObjectRef{Container: "c", Key: "k"})
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, int32(1), calls.Load())
}

func TestBackend_NotRetriedOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	b := newBackend(t, srv.URL)
	_, err := b.Stat(context.Background(), swiftpath.ObjectRef{Container: "c", Key: "k"})
	assert.ErrorIs(t, err, swiftpath.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBackend_StatContainer(t *testing.T) {
	b := newBackend(t, newGateway(t).URL)
	ctx := context.Background()
	require.NoError(t, b.CreateContainer(ctx, "c"))
	backendtest.Put(t, b, "c", "a", "12345")

	info, err := b.StatContainer(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, swiftpath.ContainerInfo{Name: "c", Count: 1, Bytes: 5}, info)

	_, err = b.StatContainer(ctx, "missing")
	assert.ErrorIs(t, err, swiftpath.ErrNotFound)
}

func TestPath_OverGateway(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, newGateway(t).URL)

	dir, err := swiftpath.New(b, "/box/docs")
	require.NoError(t, err)
	require.NoError(t, dir.Mkdir(ctx, swiftpath.MkdirOptions{Parents: true}))

	f, err := dir.JoinPath("note.txt")
	require.NoError(t, err)
	require.NoError(t, f.WriteText(ctx, "hi"))

	text, err := f.ReadText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hi", text)

	isDir, err := dir.IsDir(ctx)
	require.NoError(t, err)
	assert.True(t, isDir)
}

package s3_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sagarc03/swiftpath"
	"github.com/sagarc03/swiftpath/backend/backendtest"
	"github.com/sagarc03/swiftpath/backend/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	testClient     *minio.Client
	testClientOnce sync.Once
	testClientErr  error
)

// getSharedClient starts one MinIO container for the package. Tests isolate
// themselves with a random bucket prefix.
func getSharedClient(t *testing.T) *minio.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	testClientOnce.Do(func() {
		ctx := context.Background()

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "minio/minio:latest",
				ExposedPorts: []string{"9000/tcp"},
				Env: map[string]string{
					"MINIO_ROOT_USER":     "minioadmin",
					"MINIO_ROOT_PASSWORD": "minioadmin",
				},
				Cmd:        []string{"server", "/data"},
				WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
			},
			Started: true,
		})
		if err != nil {
			testClientErr = fmt.Errorf("start minio container: %w", err)
			return
		}

		endpoint, err := container.Endpoint(ctx, "")
		if err != nil {
			_ = testcontainers.TerminateContainer(container)
			testClientErr = fmt.Errorf("endpoint: %w", err)
			return
		}

		testClient, testClientErr = minio.New(endpoint, &minio.Options{
			Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		})
	})

	if testClientErr != nil {
		t.Skipf("minio unavailable: %v", testClientErr)
	}
	return testClient
}

func newBackend(t *testing.T) *s3.Backend {
	t.Helper()

	client := getSharedClient(t)
	prefix := "t" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12] + "-"
	t.Cleanup(func() { purge(client, prefix) })

	return s3.NewFromClient(client, prefix)
}

func purge(client *minio.Client, prefix string) {
	ctx := context.Background()

	buckets, err := client.ListBuckets(ctx)
	if err != nil {
		return
	}
	for _, bkt := range buckets {
		if !strings.HasPrefix(bkt.Name, prefix) {
			continue
		}
		for obj := range client.ListObjects(ctx, bkt.Name, minio.ListObjectsOptions{Recursive: true}) {
			if obj.Err == nil {
				_ = client.RemoveObject(ctx, bkt.Name, obj.Key, minio.RemoveObjectOptions{})
			}
		}
		_ = client.RemoveBucket(ctx, bkt.Name)
	}
}

func TestBackend_Conformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) swiftpath.Backend {
		return newBackend(t)
	})
}

func TestBackend_Name(t *testing.T) {
	assert.Equal(t, "s3", s3.NewFromClient(nil, "").Name())
}

func TestNew_RequiresEndpoint(t *testing.T) {
	_, err := s3.New(s3.Config{})
	assert.ErrorContains(t, err, "endpoint is required")
}

func TestBackend_ListRejectsOtherDelimiters(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	require.NoError(t, b.CreateContainer(ctx, "box"))

	_, err := b.List(ctx, "box", swiftpath.ListQuery{Delimiter: ":"})
	assert.ErrorIs(t, err, swiftpath.ErrUnsupported)
}

func TestBackend_PrefixScopesContainers(t *testing.T) {
	ctx := context.Background()

	mine := newBackend(t)
	other := newBackend(t)
	require.NoError(t, mine.CreateContainer(ctx, "box"))
	require.NoError(t, other.CreateContainer(ctx, "other"))

	res, err := mine.ListContainers(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, res.Containers, 1)
	assert.Equal(t, "box", res.Containers[0].Name)
}

func TestBackend_TouchKeepsContentType(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	require.NoError(t, b.CreateContainer(ctx, "box"))

	ref := swiftpath.ObjectRef{Container: "box", Key: "page.html"}
	_, err := b.Put(ctx, ref, strings.NewReader("<p>hi</p>"), swiftpath.PutOptions{
		ContentType: "text/html",
		Metadata:    map[string]string{"Owner": "ops"},
	})
	require.NoError(t, err)

	require.NoError(t, b.Touch(ctx, ref))

	info, err := b.Stat(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "text/html", info.ContentType)
	assert.Equal(t, "<p>hi</p>", backendtest.Read(t, b, "box", "page.html"))
}

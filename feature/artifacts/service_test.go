package artifacts_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"asset-bank/core/storage/mocks"
	"asset-bank/feature/artifacts"

	"github.com/gofiber/fiber/v2"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const bucket = "modules"

func listing(objects ...minio.ObjectInfo) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(objects))
	for _, o := range objects {
		ch <- o
	}
	close(ch)
	return ch
}

func body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func TestDigest(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", artifacts.Digest(nil))
}

func TestEnsureBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("Exists", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", ctx, bucket).Return(true, nil)

		require.NoError(t, artifacts.NewService(client, bucket, nil).EnsureBucket(ctx))
		client.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Created", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", ctx, bucket).Return(false, nil)
		client.On("MakeBucket", ctx, bucket, minio.MakeBucketOptions{}).Return(nil)

		require.NoError(t, artifacts.NewService(client, bucket, nil).EnsureBucket(ctx))
		client.AssertExpectations(t)
	})

	t.Run("Unreachable", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", ctx, bucket).Return(false, errors.New("dial tcp: refused"))

		assert.Error(t, artifacts.NewService(client, bucket, nil).EnsureBucket(ctx))
	})
}

func TestArchive(t *testing.T) {
	ctx := context.Background()
	wasm := []byte("\x00asm-module")
	digest := artifacts.Digest(wasm)

	client := new(mocks.Client)
	client.On("PutObject", ctx, bucket, "modules/game/"+digest+".wasm", mock.Anything, int64(len(wasm)), mock.Anything).
		Return(minio.UploadInfo{}, nil)
	client.On("PutObject", ctx, bucket, "modules/game/latest", mock.Anything, int64(len(digest)), mock.Anything).
		Return(minio.UploadInfo{}, nil)

	require.NoError(t, artifacts.NewService(client, bucket, nil).Archive(ctx, "game", wasm))
	client.AssertExpectations(t)

	t.Run("UploadFails", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(minio.UploadInfo{}, errors.New("quota exceeded"))

		err := artifacts.NewService(client, bucket, nil).Archive(ctx, "game", wasm)
		assert.ErrorContains(t, err, "quota exceeded")
		client.AssertNumberOfCalls(t, "PutObject", 1)
	})
}

func TestFetch(t *testing.T) {
	ctx := context.Background()
	wasm := "\x00asm-module"
	digest := artifacts.Digest([]byte(wasm))

	t.Run("Latest", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", ctx, bucket, "modules/game/latest", mock.Anything).Return(body(digest+"\n"), nil)
		client.On("GetObject", ctx, bucket, "modules/game/"+digest+".wasm", mock.Anything).Return(body(wasm), nil)

		got, gotDigest, err := artifacts.NewService(client, bucket, nil).Fetch(ctx, "game")
		require.NoError(t, err)
		assert.Equal(t, []byte(wasm), got)
		assert.Equal(t, digest, gotDigest)
	})

	t.Run("Corrupted", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", ctx, bucket, "modules/game/latest", mock.Anything).Return(body(digest), nil)
		client.On("GetObject", ctx, bucket, "modules/game/"+digest+".wasm", mock.Anything).Return(body("tampered"), nil)

		_, _, err := artifacts.NewService(client, bucket, nil).Fetch(ctx, "game")
		assert.ErrorContains(t, err, "digest mismatch")
	})

	t.Run("NeverArchived", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", ctx, bucket, "modules/game/latest", mock.Anything).
			Return(nil, minio.ErrorResponse{Code: "NoSuchKey"})

		_, _, err := artifacts.NewService(client, bucket, nil).Fetch(ctx, "game")
		assert.ErrorIs(t, err, artifacts.ErrNoArchive)
	})
}

func versionsClient(ctx context.Context, latest string) *mocks.Client {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	client := new(mocks.Client)
	client.On("GetObject", ctx, bucket, "modules/game/latest", mock.Anything).Return(body(latest), nil)
	client.On("ListObjects", ctx, bucket, minio.ListObjectsOptions{Prefix: "modules/game/", Recursive: true}).
		Return(listing(
			minio.ObjectInfo{Key: "modules/game/aaa.wasm", Size: 10, LastModified: now.Add(-2 * time.Hour)},
			minio.ObjectInfo{Key: "modules/game/latest", Size: 3, LastModified: now},
			minio.ObjectInfo{Key: "modules/game/ccc.wasm", Size: 30, LastModified: now},
			minio.ObjectInfo{Key: "modules/game/bbb.wasm", Size: 20, LastModified: now.Add(-time.Hour)},
		))
	return client
}

func TestVersions(t *testing.T) {
	ctx := context.Background()
	client := versionsClient(ctx, "ccc")

	versions, err := artifacts.NewService(client, bucket, nil).Versions(ctx, "game")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, "ccc", versions[0].Digest)
	assert.True(t, versions[0].Latest)
	assert.Equal(t, "bbb", versions[1].Digest)
	assert.Equal(t, "aaa", versions[2].Digest)
	assert.False(t, versions[2].Latest)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	client := versionsClient(ctx, "ccc")

	var removed []string
	client.On("RemoveObjects", ctx, bucket, mock.Anything, minio.RemoveObjectsOptions{}).
		Run(func(args mock.Arguments) {
			for obj := range args.Get(2).(<-chan minio.ObjectInfo) {
				removed = append(removed, obj.Key)
			}
		}).
		Return(nil)

	n, err := artifacts.NewService(client, bucket, nil).Prune(ctx, "game", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"modules/game/bbb.wasm", "modules/game/aaa.wasm"}, removed)
}

func TestHandler(t *testing.T) {
	ctx := context.Background()
	client := versionsClient(ctx, "ccc")
	client.On("GetObject", mock.Anything, bucket, "modules/game/latest", mock.Anything).Return(body("ccc"), nil)
	client.On("ListObjects", mock.Anything, bucket, mock.Anything).Return(listing(
		minio.ObjectInfo{Key: "modules/game/ccc.wasm", Size: 30},
	))

	feature := artifacts.NewFeature(client, bucket, nil, true)
	assert.Equal(t, "artifacts", feature.Name())
	assert.True(t, feature.IsEnabled())
	assert.False(t, artifacts.NewFeature(nil, bucket, nil, true).IsEnabled())

	app := fiber.New()
	require.NoError(t, feature.Load(app))

	resp, err := app.Test(httptest.NewRequest("GET", "/modules/game", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), `"digest":"ccc"`)

	resp, err = app.Test(httptest.NewRequest("POST", "/modules/game/prune?keep=0", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

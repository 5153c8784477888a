package artifacts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"asset-bank/core/storage"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

const (
	rootPrefix = "modules"
	latestKey  = "latest"
	wasmExt    = ".wasm"
)

// ErrNoArchive is returned when a module has never been archived.
var ErrNoArchive = errors.New("no archived module")

// Version is one archived build.
type Version struct {
	Digest       string    `json:"digest"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	Latest       bool      `json:"latest"`
}

// Service stores and retrieves module builds.
type Service struct {
	client storage.Client
	bucket string
	logger *zap.Logger
}

// NewService creates a new artifact service.
func NewService(client storage.Client, bucket string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, bucket: bucket, logger: logger}
}

// Digest returns the hex sha256 of wasm.
func Digest(wasm []byte) string {
	sum := sha256.Sum256(wasm)
	return hex.EncodeToString(sum[:])
}

func objectKey(name, digest string) string {
	return path.Join(rootPrefix, name, digest+wasmExt)
}

func latestObject(name string) string {
	return path.Join(rootPrefix, name, latestKey)
}

// EnsureBucket creates the bucket when it does not exist.
func (s *Service) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("Created module bucket", zap.String("bucket", s.bucket))
	return nil
}

// Archive uploads wasm and moves the latest pointer to it.
func (s *Service) Archive(ctx context.Context, name string, wasm []byte) error {
	digest := Digest(wasm)

	_, err := s.client.PutObject(ctx, s.bucket, objectKey(name, digest), bytes.NewReader(wasm), int64(len(wasm)),
		minio.PutObjectOptions{ContentType: "application/wasm"})
	if err != nil {
		return fmt.Errorf("upload module %s: %w", name, err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, latestObject(name), strings.NewReader(digest), int64(len(digest)),
		minio.PutObjectOptions{ContentType: "text/plain"})
	if err != nil {
		return fmt.Errorf("update latest pointer of %s: %w", name, err)
	}

	s.logger.Info("Module archived",
		zap.String("module", name),
		zap.String("digest", digest),
		zap.Int("bytes", len(wasm)))
	return nil
}

// LatestDigest returns the digest the latest pointer refers to.
func (s *Service) LatestDigest(ctx context.Context, name string) (string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, latestObject(name), minio.GetObjectOptions{})
	if err != nil {
		return "", s.notFound(name, err)
	}
	defer obj.Close()

	raw, err := io.ReadAll(io.LimitReader(obj, 128))
	if err != nil {
		return "", s.notFound(name, err)
	}
	digest := strings.TrimSpace(string(raw))
	if digest == "" {
		return "", fmt.Errorf("%w: %s", ErrNoArchive, name)
	}
	return digest, nil
}

// Fetch downloads the latest archived build of name and verifies its digest.
func (s *Service) Fetch(ctx context.Context, name string) ([]byte, string, error) {
	digest, err := s.LatestDigest(ctx, name)
	if err != nil {
		return nil, "", err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(name, digest), minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("download module %s: %w", name, err)
	}
	defer obj.Close()

	wasm, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("download module %s: %w", name, err)
	}
	if got := Digest(wasm); got != digest {
		return nil, "", fmt.Errorf("module %s digest mismatch: want %s, got %s", name, digest, got)
	}
	return wasm, digest, nil
}

func (s *Service) notFound(name string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrNoArchive, name)
	}
	return fmt.Errorf("read latest pointer of %s: %w", name, err)
}

// Versions lists the archived builds of name, newest first.
func (s *Service) Versions(ctx context.Context, name string) ([]Version, error) {
	latest, err := s.LatestDigest(ctx, name)
	if err != nil && !errors.Is(err, ErrNoArchive) {
		return nil, err
	}

	prefix := path.Join(rootPrefix, name) + "/"
	var versions []Version
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list modules of %s: %w", name, obj.Err)
		}
		base := strings.TrimPrefix(obj.Key, prefix)
		if !strings.HasSuffix(base, wasmExt) || strings.Contains(base, "/") {
			continue
		}
		digest := strings.TrimSuffix(base, wasmExt)
		versions = append(versions, Version{
			Digest:       digest,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			Latest:       digest == latest,
		})
	}

	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].LastModified.After(versions[j].LastModified)
	})
	return versions, nil
}

// Prune removes all but the newest keep builds of name. The latest build is
// never removed. It returns the number of removed objects.
func (s *Service) Prune(ctx context.Context, name string, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	versions, err := s.Versions(ctx, name)
	if err != nil {
		return 0, err
	}

	var doomed []string
	kept := 0
	for _, v := range versions {
		if v.Latest || kept < keep {
			kept++
			continue
		}
		doomed = append(doomed, objectKey(name, v.Digest))
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	objects := make(chan minio.ObjectInfo, len(doomed))
	for _, key := range doomed {
		objects <- minio.ObjectInfo{Key: key}
	}
	close(objects)

	var errs []error
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("remove %s: %w", rerr.ObjectName, rerr.Err))
	}
	removed := len(doomed) - len(errs)

	s.logger.Info("Pruned archived modules",
		zap.String("module", name),
		zap.Int("removed", removed),
		zap.Int("kept", kept))
	return removed, errors.Join(errs...)
}

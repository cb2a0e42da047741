package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

var ErrObjectNotFound = errors.New("object not found")

// BucketService stores voucher images and other generated assets.
type BucketService interface {
	UploadFile(ctx context.Context, key string, file io.Reader) error
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, error)
	GetPublicURL(key string) string
}

type BucketConfig struct {
	BucketName  string
	CDNDomain   string
	Credentials string
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	name          string
	cdnDomain     string
}

func NewBucketService(ctx context.Context, log *logger.Logger, cfg BucketConfig) (BucketService, error) {
	name := strings.TrimSpace(cfg.BucketName)
	if name == "" {
		return nil, fmt.Errorf("missing GCS_BUCKET_NAME")
	}
	opts := ClientOptions(cfg.Credentials)
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	stClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &bucketService{
		log:           log.With("service", "BucketService"),
		storageClient: stClient,
		name:          name,
		cdnDomain:     strings.TrimSpace(cfg.CDNDomain),
	}, nil
}

func (bs *bucketService) UploadFile(ctx context.Context, key string, file io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := bs.storageClient.Bucket(bs.name).Object(key).NewWriter(ctx)
	if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	bs.log.Debug("Uploaded object", "bucket", bs.name, "key", key)
	return nil
}

// The cancel func is tied to Close so callers can read after this returns.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func (bs *bucketService) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	r, err := bs.storageClient.Bucket(bs.name).Object(key).NewReader(ctx2)
	if err != nil {
		cancel()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

func (bs *bucketService) GetPublicURL(key string) string {
	if bs.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", bs.cdnDomain, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bs.name, key)
}

// localBucket keeps objects on disk and serves them under PublicBase.
type localBucket struct {
	log        *logger.Logger
	dir        string
	publicBase string
}

// NewLocalBucket is used when no GCS bucket is configured.
func NewLocalBucket(log *logger.Logger, dir, publicBase string) (BucketService, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "./vouchers"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create voucher dir: %w", err)
	}
	if publicBase == "" {
		publicBase = "/vouchers"
	}
	return &localBucket{
		log:        log.With("service", "LocalBucket"),
		dir:        dir,
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

func (lb *localBucket) path(key string) (string, error) {
	clean := filepath.Base(filepath.Clean("/" + key))
	if clean == "/" || clean == "." || clean != key {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(lb.dir, clean), nil
}

func (lb *localBucket) UploadFile(ctx context.Context, key string, file io.Reader) error {
	p, err := lb.path(key)
	if err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, file); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (lb *localBucket) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := lb.path(key)
	if err != nil {
		return nil, ErrObjectNotFound
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return f, nil
}

func (lb *localBucket) GetPublicURL(key string) string {
	return lb.publicBase + "/" + key
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	default:
		return ""
	}
}

// ContentTypeForKey is exported for the local voucher file handler.
func ContentTypeForKey(key string) string { return contentTypeForKey(key) }

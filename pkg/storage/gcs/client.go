package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/angelmondragon/ltv-backend/pkg/config"
	"github.com/angelmondragon/ltv-backend/pkg/logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

const pingTimeout = 5 * time.Second

var (
	errBucketRequired    = errors.New("gcs bucket name is required")
	errNotInitialized    = errors.New("gcs client not initialized")
	errObjectNameMissing = errors.New("gcs object name is required")
)

// Client uploads objects into a single configured bucket.
type Client struct {
	svc    *storage.Service
	bucket string
	prefix string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// NewClient opens the JSON API client and checks the bucket is reachable.
// Extra options are appended after the credential options.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger, extra ...option.ClientOption) (*Client, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errBucketRequired
	}

	opts := append(clientOptions(gcp), extra...)
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs service: %w", err)
	}

	client := &Client{
		svc:    svc,
		bucket: bucket,
		prefix: strings.Trim(strings.TrimSpace(cfg.ArchivePrefix), "/"),
	}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", bucket), "gcs client initialized")
	}
	return client, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(storage.DevstorageReadWriteScope)}
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	return opts
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// ObjectName joins the archive prefix and name.
func (c *Client) ObjectName(name string) string {
	if c == nil || c.prefix == "" {
		return name
	}
	return path.Join(c.prefix, name)
}

// Upload writes body to object, replacing any previous generation.
func (c *Client) Upload(ctx context.Context, object, contentType string, body io.Reader) error {
	if c == nil || c.svc == nil {
		return errNotInitialized
	}
	if strings.TrimSpace(object) == "" {
		return errObjectNameMissing
	}
	_, err := c.svc.Objects.Insert(c.bucket, &storage.Object{
		Name:        object,
		ContentType: contentType,
	}).Media(body, googleapi.ContentType(contentType)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("upload gs://%s/%s: %w", c.bucket, object, err)
	}
	return nil
}

// Ping checks the bucket metadata is readable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.svc == nil {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.svc.Buckets.Get(c.bucket).Context(ctx).Do(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == 404 {
			return fmt.Errorf("bucket %q does not exist", c.bucket)
		}
		return err
	}
	return nil
}

// Close is a no-op; the JSON API client holds no long-lived connection.
func (c *Client) Close() error {
	return nil
}

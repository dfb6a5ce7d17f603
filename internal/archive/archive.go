// Package archive exports shopping lists as encrypted JSON snapshots in
// S3-compatible storage. Snapshots are an off-site record of completed
// shopping trips, not a sync mechanism.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"

	"github.com/Destaw-dev/listali-sub002/internal/model"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Snapshot is the exported form of one list at one moment.
type Snapshot struct {
	List       model.ShoppingList `json:"list"`
	Items      []model.Item       `json:"items"`
	ArchivedAt time.Time          `json:"archived_at"`
}

// Archiver writes and reads encrypted snapshots.
type Archiver struct {
	client s3Client
	bucket string
	logger *slog.Logger
	now    func() time.Time
}

func New(cfg S3Config, logger *slog.Logger) *Archiver {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return &Archiver{
		client: s3.New(opts),
		bucket: cfg.Bucket,
		logger: logger.With("component", "archive"),
		now:    time.Now,
	}
}

// Key returns the object key for a list snapshot taken at t.
func Key(listID string, t time.Time) string {
	return fmt.Sprintf("archives/%s/%s.json.enc", listID, t.UTC().Format("2006-01-02T15-04-05"))
}

// Archive encrypts and uploads a snapshot. Transient upload failures are
// retried with exponential backoff.
func (a *Archiver) Archive(ctx context.Context, list model.ShoppingList, items []model.Item, passphrase string) (string, error) {
	snap := Snapshot{List: list, Items: items, ArchivedAt: a.now().UTC()}
	plaintext, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}
	sealed, err := Encrypt(plaintext, passphrase, salt)
	if err != nil {
		return "", fmt.Errorf("encrypt snapshot: %w", err)
	}

	key := Key(list.ID, snap.ArchivedAt)
	backoff := retry.WithMaxRetries(4, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(a.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(sealed),
			ContentLength: aws.Int64(int64(len(sealed))),
		})
		if err != nil {
			a.logger.Warn("upload snapshot", "key", key, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}

	a.logger.Info("snapshot archived", "key", key, "items", len(items))
	return key, nil
}

// Fetch downloads and decrypts a snapshot by key.
func (a *Archiver) Fetch(ctx context.Context, key, passphrase string) (*Snapshot, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download snapshot: %w", err)
	}
	defer out.Body.Close()

	sealed, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	plaintext, err := Decrypt(sealed, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(plaintext, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

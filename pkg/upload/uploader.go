package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// maxAttempts is the total number of STS exchange attempts (not a
// retry count on top of the first attempt).
const maxAttempts = 3

// stsCredentials is the response of the upstream credential-issuing
// endpoint: short-lived object-storage credentials scoped to one upload
// plus the destination and the eventual public URL.
type stsCredentials struct {
	AccessKeyID     string `json:"access_key_id"`
	AccessKeySecret string `json:"access_key_secret"`
	SecurityToken   string `json:"security_token"`
	BucketName      string `json:"bucketname"`
	Region          string `json:"region"`
	FilePath        string `json:"file_path"`
	FileURL         string `json:"file_url"`
	FileID          string `json:"file_id"`
}

// missingFields returns the names of required fields the upstream
// response left empty. A non-empty result means the response is
// malformed and the exchange should be retried.
func (c *stsCredentials) missingFields() []string {
	var missing []string
	for name, value := range map[string]string{
		"access_key_id":     c.AccessKeyID,
		"access_key_secret": c.AccessKeySecret,
		"security_token":    c.SecurityToken,
		"bucketname":        c.BucketName,
		"region":            c.Region,
		"file_path":         c.FilePath,
		"file_url":          c.FileURL,
		"file_id":           c.FileID,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// RetryExhaustedError is returned when the STS exchange keeps failing
// after the bounded retry schedule.
type RetryExhaustedError struct {
	// Attempts is how many attempts were made.
	Attempts int

	// LastErr is the error from the final attempt.
	LastErr error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("credential exchange failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.LastErr
}

// Result is the outcome of a successful upload.
type Result struct {
	// FileURL is the durable public URL of the uploaded object.
	FileURL string

	// FileID is the upstream's opaque identifier for the object.
	FileID string
}

// objectPutter is the slice of the S3 API the uploader needs.
// It is an interface so tests can substitute a fake client.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Recorder counts upload outcomes. A nil value disables recording.
type Recorder interface {
	RecordUpload(outcome string)
}

// Uploader implements the upload pipeline against one STS endpoint.
type Uploader struct {
	client   *http.Client
	stsURL   string
	recorder Recorder
	logger   *slog.Logger

	// sleep waits for the backoff delay; replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error

	// newPutter builds the object-storage client from the issued
	// temporary credentials; replaceable in tests.
	newPutter func(ctx context.Context, creds *stsCredentials) (objectPutter, error)
}

// NewUploader creates an uploader that exchanges credentials at stsURL.
// A nil client falls back to a dedicated client with a 60s timeout;
// recorder may be nil when telemetry is disabled.
func NewUploader(client *http.Client, stsURL string, recorder Recorder) *Uploader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Uploader{
		client:    client,
		stsURL:    stsURL,
		recorder:  recorder,
		logger:    slog.Default().With("component", "upload"),
		sleep:     sleepCtx,
		newPutter: newS3Putter,
	}
}

func (u *Uploader) record(outcome string) {
	if u.recorder != nil {
		u.recorder.RecordUpload(outcome)
	}
}

// sleepCtx waits for d, respecting context cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// newS3Putter builds a real S3 client from temporary credentials.
func newS3Putter(ctx context.Context, creds *stsCredentials) (objectPutter, error) {
	provider := credentials.NewStaticCredentialsProvider(
		creds.AccessKeyID, creds.AccessKeySecret, creds.SecurityToken)

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(creds.Region),
		awsconfig.WithCredentialsProvider(provider),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build object storage config: %w", err)
	}

	return s3.NewFromConfig(cfg), nil
}

// Upload writes data to object storage under a path chosen by the
// upstream and returns the durable URL and file id. The token
// authenticates the credential exchange.
func (u *Uploader) Upload(ctx context.Context, data []byte, filename, token string) (*Result, error) {
	creds, err := u.exchangeCredentials(ctx, filename, len(data), token)
	if err != nil {
		u.record("failure")
		return nil, err
	}

	putter, err := u.newPutter(ctx, creds)
	if err != nil {
		u.record("failure")
		return nil, err
	}

	_, err = putter.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(creds.BucketName),
		Key:         aws.String(creds.FilePath),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ContentTypeForFilename(filename)),
	})
	if err != nil {
		u.record("failure")
		return nil, fmt.Errorf("failed to write object %s/%s: %w", creds.BucketName, creds.FilePath, err)
	}
	u.record("success")

	u.logger.Debug("asset uploaded",
		"filename", filename,
		"size", len(data),
		"file_id", creds.FileID,
	)

	return &Result{FileURL: creds.FileURL, FileID: creds.FileID}, nil
}

// exchangeCredentials performs the STS exchange with an explicit
// bounded retry loop: up to maxAttempts total attempts, backing off
// 1s, 2s between them.
func (u *Uploader) exchangeCredentials(ctx context.Context, filename string, size int, token string) (*stsCredentials, error) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(1<<(attempt-2)) * time.Second
			u.logger.Debug("retrying credential exchange",
				"attempt", attempt,
				"backoff", backoff,
			)
			if err := u.sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}

		creds, err := u.requestCredentials(ctx, filename, size, token)
		if err == nil {
			return creds, nil
		}
		lastErr = err

		u.logger.Warn("credential exchange failed",
			"attempt", attempt,
			"error", err,
		)
	}

	return nil, &RetryExhaustedError{Attempts: maxAttempts, LastErr: lastErr}
}

// requestCredentials performs one STS exchange attempt.
func (u *Uploader) requestCredentials(ctx context.Context, filename string, size int, token string) (*stsCredentials, error) {
	body, err := json.Marshal(map[string]any{
		"filename": filename,
		"filesize": size,
		"filetype": "image",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.stsURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create sts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("sts endpoint returned status %d: %s", resp.StatusCode, respBody)
	}

	var creds stsCredentials
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return nil, fmt.Errorf("failed to decode sts response: %w", err)
	}

	if missing := creds.missingFields(); len(missing) > 0 {
		return nil, fmt.Errorf("sts response missing fields: %s", strings.Join(missing, ", "))
	}

	return &creds, nil
}

// ContentTypeForFilename infers the object content type from a filename
// extension. Only the image types the upstream serves inline are
// recognized explicitly.
func ContentTypeForFilename(filename string) string {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(filename), ".")) {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

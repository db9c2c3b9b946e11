// Package upload ships finished recordings to a destination service as a
// multipart POST.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/smazurov/recordnode/internal/logging"
	"github.com/smazurov/recordnode/internal/media"
)

// Metadata accompanies the blob in the upload form.
type Metadata struct {
	Filename string
	Duration time.Duration
	Token    string
	URL      string
}

// Receipt is the destination's acknowledgement.
type Receipt struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Uploader posts blobs over HTTP.
type Uploader struct {
	client *http.Client
	logger logging.Logger
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithHTTPClient substitutes the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Uploader) { u.client = c }
}

// New creates an Uploader.
func New(opts ...Option) *Uploader {
	u := &Uploader{
		client: &http.Client{Timeout: 5 * time.Minute},
		logger: logging.GetLogger("upload"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload sends the blob and its metadata and returns the destination's
// receipt. Non-2xx responses are returned as upload errors.
func (u *Uploader) Upload(ctx context.Context, blob media.Blob, meta Metadata) (*Receipt, error) {
	if meta.URL == "" {
		return nil, media.NewRecordingError(media.ErrCodeUpload, "no destination URL", nil)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", meta.Filename)
	if err != nil {
		return nil, media.NewRecordingError(media.ErrCodeUpload, "building form failed", err)
	}
	if _, err := part.Write(blob.Data); err != nil {
		return nil, media.NewRecordingError(media.ErrCodeUpload, "writing blob failed", err)
	}

	fields := map[string]string{
		"filename":         meta.Filename,
		"duration_seconds": strconv.FormatFloat(meta.Duration.Seconds(), 'f', 3, 64),
		"size":             strconv.FormatInt(blob.Size, 10),
		"mime":             blob.MIME,
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return nil, media.NewRecordingError(media.ErrCodeUpload, "writing form field failed", err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, media.NewRecordingError(media.ErrCodeUpload, "closing form failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, meta.URL, &body)
	if err != nil {
		return nil, media.NewRecordingError(media.ErrCodeUpload, "building request failed", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if meta.Token != "" {
		req.Header.Set("Authorization", "Bearer "+meta.Token)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, media.NewRecordingError(media.ErrCodeUpload, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, media.NewRecordingError(media.ErrCodeUpload,
			fmt.Sprintf("destination returned %s", resp.Status), nil)
	}

	var receipt Receipt
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&receipt); err != nil {
		return nil, media.NewRecordingError(media.ErrCodeUpload, "decoding receipt failed", err)
	}

	u.logger.Info("upload complete",
		"filename", meta.Filename,
		"size", blob.Size,
		"id", receipt.ID,
		"status", receipt.Status)
	return &receipt, nil
}

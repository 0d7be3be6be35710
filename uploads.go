package goLearn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/MrEthical07/goLearn/middleware"
)

const presignPath = "/uploads/presign"

// PresignUpload asks the backend for a short-lived storage URL.
func (c *Client) PresignUpload(ctx context.Context, in UploadRequest) (*PresignedUpload, error) {
	if in.FileName == "" || in.ContentType == "" {
		return nil, errors.New("upload needs a file name and content type")
	}
	var p PresignedUpload
	if err := c.do(ctx, c.http, http.MethodPost, presignPath, nil, in, &p); err != nil {
		return nil, err
	}
	if p.UploadURL == "" {
		return nil, fmt.Errorf("%w: presign response carried no url", ErrUploadFailed)
	}
	return &p, nil
}

// UploadFile sends body straight to storage using p. The request carries the presigned
// headers only: no bearer token, no request id and no refresh on failure. size is sent as
// Content-Length when positive.
func (c *Client) UploadFile(ctx context.Context, p *PresignedUpload, body io.Reader, size int64) error {
	if p == nil || p.UploadURL == "" {
		return fmt.Errorf("%w: missing presigned url", ErrUploadFailed)
	}
	if !p.ExpiresAt.IsZero() && !c.now().Before(p.ExpiresAt) {
		return fmt.Errorf("%w: presigned url expired at %s", ErrUploadFailed, p.ExpiresAt.Format("15:04:05"))
	}

	method := p.Method
	if method == "" {
		method = http.MethodPut
	}
	req, err := http.NewRequestWithContext(ctx, method, p.UploadURL, body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	if size > 0 {
		req.ContentLength = size
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.upload.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	defer middleware.DrainAndClose(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %w", ErrUploadFailed, c.apiError(resp))
	}

	c.emit(ctx, Event{
		Type:     EventUploadComplete,
		Success:  true,
		Metadata: map[string]string{"key": p.Key, "size": strconv.FormatInt(size, 10)},
	})
	return nil
}

// Upload presigns and uploads in one call and returns the public file URL.
func (c *Client) Upload(ctx context.Context, in UploadRequest, body io.Reader) (string, error) {
	p, err := c.PresignUpload(ctx, in)
	if err != nil {
		return "", err
	}
	if err := c.UploadFile(ctx, p, body, in.Size); err != nil {
		return "", err
	}
	return p.FileURL, nil
}

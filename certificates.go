package goLearn

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/MrEthical07/goLearn/middleware"
)

const certificatesPath = "/certificates"

func (c *Client) ListCertificates(ctx context.Context, opts ListOptions) (*Page[Certificate], error) {
	var page Page[Certificate]
	if err := c.do(ctx, c.http, http.MethodGet, certificatesPath, opts.values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetCertificate(ctx context.Context, id string) (*Certificate, error) {
	if id == "" {
		return nil, errEmptyID
	}
	var cert Certificate
	if err := c.do(ctx, c.http, http.MethodGet, certificatesPath+"/"+url.PathEscape(id), nil, nil, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// DownloadCertificate streams the certificate PDF into w and returns the bytes written.
func (c *Client) DownloadCertificate(ctx context.Context, id string, w io.Writer) (int64, error) {
	if id == "" {
		return 0, errEmptyID
	}
	req, err := c.newRequest(ctx, http.MethodGet, certificatesPath+"/"+url.PathEscape(id)+"/download", nil, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer middleware.DrainAndClose(resp)
	if resp.StatusCode != http.StatusOK {
		return 0, c.apiError(resp)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download certificate %s: %w", id, err)
	}
	return n, nil
}

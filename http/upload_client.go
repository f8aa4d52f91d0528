package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/mintkit/intents/go/metadata"
)

// UploadConfig configures the upload client
type UploadConfig struct {
	URL        string
	HTTPClient *http.Client
	Timeout    time.Duration
	// Leases authenticates uploads
	Leases *LeaseProvider
}

// UploadClient uploads files to IPFS through the upload service. It
// implements metadata.Uploader.
type UploadClient struct {
	url        string
	httpClient *http.Client
	leases     *LeaseProvider
}

var _ metadata.Uploader = (*UploadClient)(nil)

// NewUploadClient creates a new upload client
func NewUploadClient(config UploadConfig) *UploadClient {
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 2 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &UploadClient{
		url:        strings.TrimRight(config.URL, "/"),
		httpClient: httpClient,
		leases:     config.Leases,
	}
}

type uploadResponse struct {
	CID string `json:"cid"`
}

// Upload stores file and returns its ipfs:// URI. A 401 drops the cached
// lease and retries once with a fresh one.
func (c *UploadClient) Upload(ctx context.Context, file metadata.File) (string, error) {
	content, err := io.ReadAll(file.Content)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", file.Name, err)
	}

	uri, status, err := c.upload(ctx, file, content)
	if status == http.StatusUnauthorized && c.leases != nil {
		c.leases.Invalidate()
		uri, _, err = c.upload(ctx, file, content)
	}
	return uri, err
}

func (c *UploadClient) upload(ctx context.Context, file metadata.File, content []byte) (string, int, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := form.CreatePart(header)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create upload form: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", 0, fmt.Errorf("failed to write upload form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/upload", &body)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.leases != nil {
		headers, err := c.leases.GetAuthHeaders(ctx)
		if err != nil {
			return "", 0, fmt.Errorf("failed to get upload lease: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, &StatusError{Service: "upload api", StatusCode: resp.StatusCode, Body: string(responseBody)}
	}

	var uploaded uploadResponse
	if err := json.Unmarshal(responseBody, &uploaded); err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if uploaded.CID == "" {
		return "", resp.StatusCode, fmt.Errorf("upload response has no cid")
	}
	return "ipfs://" + uploaded.CID, resp.StatusCode, nil
}

// Package mediastore uploads listing media to a content-addressed store
// and validates the locators it hands back. The store is an optional
// collaborator; a client without an endpoint refuses uploads cleanly.
package mediastore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var (
	ErrNotConfigured  = errors.New("no media store endpoint configured")
	ErrBadLocator     = errors.New("media store returned an unusable locator")
	ErrDigestMismatch = errors.New("media locator does not match the uploaded content")
)

type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

func New(endpoint string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

func (c *Client) Enabled() bool {
	return c.endpoint != ""
}

type addResponse struct {
	Hash string `json:"Hash"`
	Name string `json:"Name"`
	Size string `json:"Size"`
}

// Upload stores blob and returns its content locator. The locator must
// parse as a CID; when it commits to a raw sha2-256 digest it is also
// checked against the blob itself.
func (c *Client) Upload(ctx context.Context, name string, blob []byte) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(blob); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/v0/add", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("media store add failed: %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var added addResponse
	if err := json.NewDecoder(resp.Body).Decode(&added); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadLocator, err)
	}
	if err := Verify(added.Hash, blob); err != nil {
		return "", err
	}
	c.logger.Debug("media uploaded", "locator", added.Hash, "bytes", len(blob))
	return added.Hash, nil
}

// Verify checks that locator is a valid CID and, when it uses the raw
// codec with sha2-256, that its digest matches data.
func Verify(locator string, data []byte) error {
	parsed, err := cid.Decode(strings.TrimSpace(locator))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadLocator, err)
	}
	prefix := parsed.Prefix()
	if prefix.Codec == cid.Raw && prefix.MhType == multihash.SHA2_256 {
		local, err := LocalCID(data)
		if err != nil {
			return err
		}
		if !parsed.Equals(local) {
			return ErrDigestMismatch
		}
	}
	return nil
}

// LocalCID computes the CIDv1 raw/sha2-256 locator for data.
func LocalCID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

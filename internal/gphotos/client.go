package gphotos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

const (
	defaultBaseURL = "https://photoslibrary.googleapis.com"

	// searchPageSize is the maximum page size mediaItems:search accepts.
	searchPageSize = 100

	// albumsPageSize is the maximum page size the albums listing accepts.
	albumsPageSize = 50
)

// ErrUnauthorized marks an API response that rejected our credentials
// (HTTP 401/403 or a failed token refresh). The caller must trigger
// re-authorization; retrying is pointless.
var ErrUnauthorized = errors.New("provider rejected credentials")

// FetchError reports a failed API call for a single listing page or content
// download. StatusCode is 0 for transport-level failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client talks to the Google Photos Library API using an OAuth2-backed HTTP
// client supplied by the token store. It caches nothing.
type Client struct {
	hc      *http.Client
	baseURL string
	log     *slog.Logger
}

// NewClient creates a Client against the production API endpoint. hc must
// inject Authorization headers (see token.Store.Client).
func NewClient(hc *http.Client, logger *slog.Logger) *Client {
	return NewClientWithBaseURL(hc, defaultBaseURL, logger)
}

// NewClientWithBaseURL creates a Client against an alternate endpoint.
// Intended for tests backed by httptest servers.
func NewClientWithBaseURL(hc *http.Client, baseURL string, logger *slog.Logger) *Client {
	return &Client{hc: hc, baseURL: strings.TrimRight(baseURL, "/"), log: logger}
}

// searchRequest is the mediaItems:search request body.
type searchRequest struct {
	AlbumID   string `json:"albumId"`
	PageSize  int    `json:"pageSize"`
	PageToken string `json:"pageToken,omitempty"`
}

// searchResponse is the mediaItems:search response body.
type searchResponse struct {
	MediaItems    []MediaItem `json:"mediaItems"`
	NextPageToken string      `json:"nextPageToken"`
}

// albumsResponse is the albums listing response body.
type albumsResponse struct {
	Albums        []Album `json:"albums"`
	NextPageToken string  `json:"nextPageToken"`
}

// ListMediaItems returns every media item of the given album, following
// pagination until the listing is exhausted. Each call re-lists from the
// start. Duplicate IDs are returned as-is; deduplication is the caller's
// concern.
// https://developers.google.com/photos/library/reference/rest/v1/mediaItems/search
func (c *Client) ListMediaItems(ctx context.Context, albumID string) ([]MediaItem, error) {
	endpoint := c.baseURL + "/v1/mediaItems:search"

	var items []MediaItem
	pageToken := ""
	for {
		reqBody := searchRequest{AlbumID: albumID, PageSize: searchPageSize, PageToken: pageToken}

		var page searchResponse
		err := Retry(ctx, defaultMaxAttempts, func() error {
			return c.postJSON(ctx, endpoint, reqBody, &page)
		})
		if err != nil {
			return nil, fmt.Errorf("listing album %s: %w", albumID, err)
		}

		items = append(items, page.MediaItems...)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	c.log.Debug("album listed", "album_id", albumID, "items", len(items))
	return items, nil
}

// ListAlbums returns all albums visible to the authorized account, following
// pagination. Used by the setup wizard's album picker.
// https://developers.google.com/photos/library/reference/rest/v1/albums/list
func (c *Client) ListAlbums(ctx context.Context) ([]Album, error) {
	var albums []Album
	pageToken := ""
	for {
		q := url.Values{"pageSize": {fmt.Sprint(albumsPageSize)}}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		endpoint := c.baseURL + "/v1/albums?" + q.Encode()

		var page albumsResponse
		err := Retry(ctx, defaultMaxAttempts, func() error {
			return c.getJSON(ctx, endpoint, &page)
		})
		if err != nil {
			return nil, fmt.Errorf("listing albums: %w", err)
		}

		albums = append(albums, page.Albums...)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	return albums, nil
}

// Download returns the raw content bytes of the given media item. The "=d"
// suffix asks for the original resolution instead of a scaled preview.
// https://developers.google.com/photos/library/guides/access-media-items#base-urls
func (c *Client) Download(ctx context.Context, item MediaItem) ([]byte, error) {
	downloadURL := item.BaseURL + "=d"

	var content []byte
	err := Retry(ctx, defaultMaxAttempts, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
		if err != nil {
			return &FetchError{URL: downloadURL, Err: err}
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			return &FetchError{URL: downloadURL, Err: classifyTransport(err)}
		}
		defer func() { _ = resp.Body.Close() }()

		if err := checkStatus(resp, downloadURL); err != nil {
			return err
		}

		content, err = io.ReadAll(resp.Body)
		if err != nil {
			return &FetchError{URL: downloadURL, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("downloading item %s: %w", item.ID, err)
	}
	return content, nil
}

// postJSON issues a JSON POST and decodes the response into out.
func (c *Client) postJSON(ctx context.Context, endpoint string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return &FetchError{URL: endpoint, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return &FetchError{URL: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

// getJSON issues a GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &FetchError{URL: endpoint, Err: err}
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return &FetchError{URL: req.URL.String(), Err: classifyTransport(err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp, req.URL.String()); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{URL: req.URL.String(), Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// checkStatus maps a non-2xx response to a FetchError, tagging 401/403 with
// ErrUnauthorized so callers abort instead of retrying.
func checkStatus(resp *http.Response, reqURL string) error {
	if resp.StatusCode < 300 {
		return nil
	}

	// The error body is JSON with a message field; keep it short if present.
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)

	cause := errors.New(apiErr.Error.Message)
	if apiErr.Error.Message == "" {
		cause = errors.New(resp.Status)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		cause = fmt.Errorf("%w: %v", ErrUnauthorized, cause)
	}
	return &FetchError{URL: reqURL, StatusCode: resp.StatusCode, Err: cause}
}

// classifyTransport tags transport errors caused by a failed token refresh
// as ErrUnauthorized. The oauth2 transport surfaces refresh failures as a
// *oauth2.RetrieveError inside the url.Error chain.
func classifyTransport(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return fmt.Errorf("%w: token refresh failed: %v", ErrUnauthorized, rerr)
	}
	return err
}

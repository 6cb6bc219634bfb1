package dmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/castingly/castingly-backend/pkg/config"
	"github.com/castingly/castingly-backend/pkg/logger"
)

const (
	pingTimeout     = 5 * time.Second
	maxErrorBody    = 4096
	defaultPageSize = 100
)

// Client talks to the media storage API on behalf of one credential.
type Client struct {
	baseURL    string
	app        string
	httpClient *http.Client
	tokens     TokenSource
	logg       *logger.Logger
}

type Pinger interface {
	Ping(ctx context.Context) error
}

func closeBody(ctx context.Context, logg *logger.Logger, body io.Closer, msg string) {
	if body == nil {
		return
	}
	if err := body.Close(); err != nil && logg != nil {
		logg.Warn(ctx, msg)
	}
}

// NewClient builds a client; tokens may be nil when every call goes through As.
func NewClient(cfg config.DMAPIConfig, tokens TokenSource, logg *logger.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("dmapi base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parsing dmapi base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    base,
		app:        cfg.AppSlug,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		logg:       logg,
	}, nil
}

// As returns a copy of the client that authenticates with ts.
func (c *Client) As(ts TokenSource) *Client {
	clone := *c
	clone.tokens = ts
	return &clone
}

// Ping checks reachability of the API.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer closeBody(ctx, c.logg, resp.Body, "dmapi ping body close failed")
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("dmapi health check failed: %s", resp.Status)
	}
	return nil
}

// Upload stores a file. Duplicate rejections surface as *APIError (see IsDuplicate).
func (c *Client) Upload(ctx context.Context, in UploadRequest) (*File, error) {
	if in.Body == nil {
		return nil, errors.New("dmapi upload: body required")
	}
	if in.Filename == "" {
		return nil, errors.New("dmapi upload: filename required")
	}

	var out struct {
		Success bool  `json:"success"`
		File    *File `json:"file"`
	}
	build := func() (requestBody, error) {
		if seeker, ok := in.Body.(io.Seeker); ok {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return requestBody{}, fmt.Errorf("rewind upload body: %w", err)
			}
		}
		return multipartBody(in, c.app)
	}
	_, replayable := in.Body.(io.Seeker)

	if err := c.doWith(ctx, http.MethodPost, "/api/upload", nil, build, replayable, &out); err != nil {
		return nil, err
	}
	if out.File == nil {
		return nil, errors.New("dmapi upload: response missing file")
	}
	return out.File, nil
}

// VerifyKey checks that the media API accepts key, using a one-item listing.
// A rejected key yields ErrInvalidKey; transport and server failures are
// returned as they are.
func (c *Client) VerifyKey(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	_, err := c.As(StaticToken(key)).ListFiles(ctx, ListQuery{Limit: 1})
	switch {
	case err == nil:
		return nil
	case IsUnauthorized(err), IsForbidden(err):
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	default:
		return err
	}
}

// ListFiles returns one page of files.
func (c *Client) ListFiles(ctx context.Context, q ListQuery) (*FileList, error) {
	params := url.Values{}
	if c.app != "" {
		params.Set("app", c.app)
	}
	if q.Bucket != "" {
		params.Set("bucket_id", q.Bucket)
	}
	if q.Folder != "" {
		params.Set("folder", q.Folder)
	}
	if q.Recursive {
		params.Set("recursive", "true")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	params.Set("limit", strconv.Itoa(limit))
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	var out FileList
	if err := c.do(ctx, http.MethodGet, "/api/files", params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAll pages through ListFiles until max files are collected or the listing ends.
// max <= 0 means no cap.
func (c *Client) ListAll(ctx context.Context, q ListQuery, max int) ([]File, error) {
	pageSize := q.Limit
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	var files []File
	offset := q.Offset
	for {
		if max > 0 && len(files) >= max {
			return files[:max], nil
		}
		page := q
		page.Limit = pageSize
		page.Offset = offset
		res, err := c.ListFiles(ctx, page)
		if err != nil {
			return files, err
		}
		files = append(files, res.Files...)
		offset += len(res.Files)
		if len(res.Files) < pageSize || (res.Total > 0 && offset >= res.Total) {
			break
		}
	}
	if max > 0 && len(files) > max {
		files = files[:max]
	}
	return files, nil
}

// GetFile fetches a single file by database id.
func (c *Client) GetFile(ctx context.Context, id string) (*File, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("dmapi: file id required")
	}
	var out struct {
		File *File `json:"file"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/files/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	if out.File == nil {
		return nil, &APIError{Status: http.StatusNotFound, Message: "file not found"}
	}
	return out.File, nil
}

// PatchMetadata merges patch into the file's metadata.
func (c *Client) PatchMetadata(ctx context.Context, id string, patch map[string]any) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("dmapi: file id required")
	}
	body := map[string]any{"metadata": patch}
	return c.do(ctx, http.MethodPatch, "/api/files/"+url.PathEscape(id)+"/metadata", nil, body, nil)
}

// PatchMetadataByKey merges patch into the metadata of the object at ref.
func (c *Client) PatchMetadataByKey(ctx context.Context, ref KeyRef, patch map[string]any) error {
	if strings.TrimSpace(ref.StorageKey) == "" {
		return errors.New("dmapi: storage key required")
	}
	body := struct {
		KeyRef
		Metadata map[string]any `json:"metadata"`
	}{KeyRef: ref, Metadata: patch}
	return c.do(ctx, http.MethodPatch, "/api/files/by-key/metadata", nil, body, nil)
}

// SignedURL asks the API for a time-limited download URL.
func (c *Client) SignedURL(ctx context.Context, id string, ttl time.Duration) (string, error) {
	body := map[string]any{"expires_in": int(ttl.Seconds())}
	var out struct {
		URL       string `json:"url"`
		SignedURL string `json:"signed_url"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/files/"+url.PathEscape(id)+"/signed-url", nil, body, &out); err != nil {
		return "", err
	}
	if out.URL != "" {
		return out.URL, nil
	}
	if out.SignedURL != "" {
		return out.SignedURL, nil
	}
	return "", errors.New("dmapi: signed url missing from response")
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode dmapi request: %w", err)
		}
		payload = encoded
	}
	build := func() (requestBody, error) {
		if payload == nil {
			return requestBody{}, nil
		}
		return requestBody{reader: bytes.NewReader(payload), contentType: "application/json"}, nil
	}
	return c.doWith(ctx, method, path, params, build, true, out)
}

// doWith sends the request, refreshing the credential and replaying once on 401.
func (c *Client) doWith(
	ctx context.Context,
	method, path string,
	params url.Values,
	build func() (requestBody, error),
	replayable bool,
	out any,
) error {
	if c.tokens == nil {
		return errors.New("dmapi: no credential configured")
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("dmapi credential: %w", err)
	}

	err = c.send(ctx, method, path, params, build, token, out)
	if err == nil || !IsUnauthorized(err) || !replayable {
		return err
	}

	fresh, refreshErr := c.tokens.Refresh(ctx)
	if refreshErr != nil || fresh == "" || fresh == token {
		return err
	}
	return c.send(ctx, method, path, params, build, fresh, out)
}

func (c *Client) send(
	ctx context.Context,
	method, path string,
	params url.Values,
	build func() (requestBody, error),
	token string,
	out any,
) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	body, err := build()
	if err != nil {
		return err
	}
	defer body.close()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body.reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body.contentType != "" {
		req.Header.Set("Content-Type", body.contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dmapi %s %s: %w", method, path, err)
	}
	defer closeBody(ctx, c.logg, resp.Body, "dmapi response body close failed")

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return decodeAPIError(resp.StatusCode, raw)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode dmapi %s %s: %w", method, path, err)
	}
	return nil
}

// requestBody is one attempt's payload. release, when set, must return only
// after nothing reads the caller's data any more, so a replay can rewind it.
type requestBody struct {
	reader      io.Reader
	contentType string
	release     func()
}

func (b requestBody) close() {
	if b.release != nil {
		b.release()
	}
}

var errBodyReleased = errors.New("dmapi: upload body released")

// multipartBody streams the upload form through a pipe so large files are
// never buffered in memory. Its release stops the writer goroutine and waits
// for it to exit.
func multipartBody(in UploadRequest, app string) (requestBody, error) {
	meta := in.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	encodedMeta, err := json.Marshal(meta)
	if err != nil {
		return requestBody{}, fmt.Errorf("encode upload metadata: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pw.CloseWithError(writeForm(mw, in, app, string(encodedMeta)))
	}()

	return requestBody{
		reader:      pr,
		contentType: mw.FormDataContentType(),
		release: func() {
			_ = pr.CloseWithError(errBodyReleased)
			<-done
		},
	}, nil
}

func writeForm(mw *multipart.Writer, in UploadRequest, app, encodedMeta string) error {
	fields := [][2]string{
		{"bucket_id", in.Bucket},
		{"folder", in.Folder},
		{"original_filename", in.Filename},
		{"is_public", strconv.FormatBool(in.Public)},
		{"metadata", encodedMeta},
	}
	if app != "" {
		fields = append(fields, [2]string{"app", app})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	part, err := createFilePart(mw, in.Filename, in.ContentType)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, in.Body); err != nil {
		return err
	}
	return mw.Close()
}

func createFilePart(mw *multipart.Writer, filename, contentType string) (io.Writer, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	return mw.CreatePart(header)
}

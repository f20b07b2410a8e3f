package backend

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/julianbeese/immo_search/internal/domain"
	"github.com/julianbeese/immo_search/internal/ingest"
	"github.com/julianbeese/immo_search/internal/throttle"
)

const (
	propertiesPath    = "/properties"
	myRequestsPath    = "/visit-requests/me"
	visitRequestsPath = "/visit-requests"

	maxErrorBody = 512
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status: %d - %s", e.Code, e.Body)
}

// Options configures a Client
type Options struct {
	BaseURL     string
	Token       string
	Cookie      string
	Timeout     time.Duration
	RateLimiter *throttle.RateLimiter
	Ingest      ingest.Options
	Logger      *slog.Logger
}

// Client talks to the listings backend over HTTP/JSON
type Client struct {
	httpClient  *http.Client
	baseURL     string
	token       string
	rateLimiter *throttle.RateLimiter
	ingestOpts  ingest.Options
	logger      *slog.Logger
}

// NewClient creates a new backend client
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("parse base url: unsupported scheme %q", base.Scheme)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if opts.Cookie != "" {
		jar.SetCookies(base, parseCookieString(opts.Cookie))
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		baseURL:     base.String(),
		token:       opts.Token,
		rateLimiter: opts.RateLimiter,
		ingestOpts:  opts.Ingest,
		logger:      logger,
	}, nil
}

// FetchProperties returns every listing of the given rent type
func (c *Client) FetchProperties(ctx context.Context, rentType domain.RentType) ([]domain.PropertyRecord, error) {
	params := url.Values{}
	if rentType != "" {
		params.Set("rentType", string(rentType))
	}
	u := c.baseURL + propertiesPath
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	body, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch properties: %w", err)
	}

	raw, err := decodeList(body)
	if err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}

	records, report := ingest.Records(raw, c.ingestOpts)
	c.logger.Debug("properties ingested",
		"rent_type", rentType,
		"total", report.Total,
		"kept", report.Kept,
		"missing_id", report.MissingID,
		"duplicate", report.Duplicate,
		"not_for_rent", report.NotForRent,
	)
	return records, nil
}

// FetchVisitRequests returns the property ids the current user already
// requested a visit for
func (c *Client) FetchVisitRequests(ctx context.Context) ([]string, error) {
	body, err := c.do(ctx, http.MethodGet, c.baseURL+myRequestsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch visit requests: %w", err)
	}

	raw, err := decodeList(body)
	if err != nil {
		return nil, fmt.Errorf("decode visit requests: %w", err)
	}

	ids := make([]string, 0, len(raw))
	for _, r := range raw {
		if id := requestPropertyID(r); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// SubmitVisitRequest posts a new visit request
func (c *Client) SubmitVisitRequest(ctx context.Context, req *domain.VisitRequest) error {
	payload, err := json.Marshal(map[string]string{
		"id":         req.ID,
		"propertyId": req.PropertyID,
		"message":    req.Message,
	})
	if err != nil {
		return err
	}

	if _, err := c.do(ctx, http.MethodPost, c.baseURL+visitRequestsPath, payload); err != nil {
		return fmt.Errorf("submit visit request: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, urlStr string, payload []byte) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, payload != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Handle gzip encoding
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(reader, maxErrorBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	return io.ReadAll(reader)
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// decodeList accepts a bare JSON array or an envelope {"data": [...]}
func decodeList(body []byte) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] == '[' {
		var list []map[string]any
		if err := dec.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var envelope struct {
		Data    []map[string]any `json:"data"`
		Results []map[string]any `json:"results"`
	}
	if err := dec.Decode(&envelope); err != nil {
		return nil, err
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	return envelope.Results, nil
}

// requestPropertyID resolves {propertyId}, {property_id} or {property: {id}}
func requestPropertyID(r map[string]any) string {
	for _, key := range []string{"propertyId", "property_id"} {
		if id := idString(r[key]); id != "" {
			return id
		}
	}
	if nested, ok := r["property"].(map[string]any); ok {
		return idString(nested["id"])
	}
	return idString(r["property"])
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	case float64:
		return fmt.Sprintf("%v", id)
	}
	return ""
}

// parseCookieString parses a cookie header string into http.Cookie objects
func parseCookieString(cookieStr string) []*http.Cookie {
	var cookies []*http.Cookie
	parts := strings.Split(cookieStr, ";")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:  name,
			Value: strings.TrimSpace(value),
		})
	}
	return cookies
}

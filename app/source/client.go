package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lysyi3m/grocery-feed/app/catalog"
)

var ErrInvalidProduct = errors.New("invalid product")

// StatusError is returned when the remote feed source answers with a
// non-success status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %s", e.Status)
}

// Client talks to the remote feed source over HTTP.
type Client struct {
	httpClient *http.Client
	endpoint   string
	userAgent  string
	timeout    time.Duration
	parser     *Parser
	validate   *validator.Validate
}

func NewClient(httpClient *http.Client, endpoint string, userAgent string, timeout time.Duration) *Client {
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		userAgent:  userAgent,
		timeout:    timeout,
		parser:     NewParser(),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (c *Client) FetchPage(ctx context.Context, req catalog.PageRequest) (catalog.Page, error) {
	pageURL, err := c.pageURL(req)
	if err != nil {
		return catalog.Page{}, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return catalog.Page{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "application/json, application/rss+xml, application/atom+xml;q=0.9")

	data, contentType, err := c.do(httpReq)
	if err != nil {
		return catalog.Page{}, fmt.Errorf("failed to fetch page %d: %w", req.Page, err)
	}

	page, err := c.parser.Run(data, contentType)
	if err != nil {
		return catalog.Page{}, fmt.Errorf("failed to parse page %d: %w", req.Page, err)
	}

	return page, nil
}

func (c *Client) CreateProduct(ctx context.Context, product catalog.NewProduct) (*catalog.Product, error) {
	if err := c.validate.Struct(product); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}

	body, err := json.Marshal(product)
	if err != nil {
		return nil, fmt.Errorf("failed to encode product: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	data, _, err := c.do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	created, err := c.parser.Record(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode created product: %w", err)
	}

	return created, nil
}

func (c *Client) do(req *http.Request) ([]byte, string, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) pageURL(req catalog.PageRequest) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %s: %w", c.endpoint, err)
	}

	category := req.Category
	if category == "" {
		category = catalog.AllCategories
	}

	query := u.Query()
	query.Set("page", strconv.Itoa(req.Page))
	query.Set("limit", strconv.Itoa(req.Limit))
	query.Set("q", strings.TrimSpace(req.Search))
	query.Set("category", category)
	u.RawQuery = query.Encode()

	return u.String(), nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

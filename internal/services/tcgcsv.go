package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/codyseavey/tcg-scan/internal/metrics"
)

const (
	tcgcsvBaseURL        = "https://tcgcsv.com/tcgplayer"
	tcgcsvDefaultTimeout = 30 * time.Second
	tcgcsvRetryBackoff   = 750 * time.Millisecond
	// PokemonCategoryID is the TCGPlayer category for Pokemon products.
	PokemonCategoryID = 3
)

// ErrUnexpectedResponse is returned when tcgcsv answers without a results list.
var ErrUnexpectedResponse = errors.New("unexpected tcgcsv response")

// TCGCSVGroup is a TCGPlayer group (set).
type TCGCSVGroup struct {
	GroupID      int    `json:"groupId"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	PublishedOn  string `json:"publishedOn"`
	CategoryID   int    `json:"categoryId"`
}

// TCGCSVProduct is a TCGPlayer product. Singles carry a "Number" entry in ExtendedData.
type TCGCSVProduct struct {
	ProductID    int                  `json:"productId"`
	Name         string               `json:"name"`
	CleanName    string               `json:"cleanName"`
	ImageURL     string               `json:"imageUrl"`
	GroupID      int                  `json:"groupId"`
	URL          string               `json:"url"`
	ExtendedData []TCGCSVExtendedData `json:"extendedData"`
}

// TCGCSVExtendedData is one name/value attribute of a product.
type TCGCSVExtendedData struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"displayName"`
	Value       json.RawMessage `json:"value"`
}

// TCGCSVPrice is one (product, sub-type) price row.
type TCGCSVPrice struct {
	ProductID   int      `json:"productId"`
	SubTypeName string   `json:"subTypeName"`
	MarketPrice *float64 `json:"marketPrice"`
	LowPrice    *float64 `json:"lowPrice"`
	MidPrice    *float64 `json:"midPrice"`
	HighPrice   *float64 `json:"highPrice"`
}

type tcgcsvEnvelope[T any] struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
	Results *[]T     `json:"results"`
}

// Attribute returns the trimmed string value of the named extended-data
// entry, or "" when it is missing or empty.
func (p *TCGCSVProduct) Attribute(name string) string {
	for _, item := range p.ExtendedData {
		if item.Name != name || len(item.Value) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(item.Value, &s); err != nil {
			// numbers and other scalars come through as their JSON text
			s = string(item.Value)
			if s == "null" {
				continue
			}
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// TCGCSVClient reads groups, products and prices from tcgcsv.com.
type TCGCSVClient struct {
	client     *http.Client
	baseURL    string
	categoryID int
	retries    int
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// TCGCSVOptions configures a TCGCSVClient. Zero values fall back to defaults.
type TCGCSVOptions struct {
	BaseURL    string
	CategoryID int
	Throttle   time.Duration // minimum spacing between requests
	Retries    int
	Timeout    time.Duration
}

// NewTCGCSVClient creates a new tcgcsv API client
func NewTCGCSVClient(opts TCGCSVOptions, logger *zap.Logger) *TCGCSVClient {
	if opts.BaseURL == "" {
		opts.BaseURL = tcgcsvBaseURL
	}
	if opts.CategoryID <= 0 {
		opts.CategoryID = PokemonCategoryID
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = tcgcsvDefaultTimeout
	}

	limit := rate.Inf
	if opts.Throttle > 0 {
		limit = rate.Every(opts.Throttle)
	}

	return &TCGCSVClient{
		client:     &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		categoryID: opts.CategoryID,
		retries:    opts.Retries,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.Named("tcgcsv"),
	}
}

// GetGroups lists every group in the configured category.
func (c *TCGCSVClient) GetGroups(ctx context.Context) ([]TCGCSVGroup, error) {
	url := fmt.Sprintf("%s/%d/groups", c.baseURL, c.categoryID)
	return getResults[TCGCSVGroup](ctx, c, "groups", url)
}

// GetProducts lists every product in a group, singles and sealed alike.
func (c *TCGCSVClient) GetProducts(ctx context.Context, groupID int) ([]TCGCSVProduct, error) {
	url := fmt.Sprintf("%s/%d/%d/products", c.baseURL, c.categoryID, groupID)
	return getResults[TCGCSVProduct](ctx, c, "products", url)
}

// GetPrices lists the current price rows for a group.
func (c *TCGCSVClient) GetPrices(ctx context.Context, groupID int) ([]TCGCSVPrice, error) {
	url := fmt.Sprintf("%s/%d/%d/prices", c.baseURL, c.categoryID, groupID)
	return getResults[TCGCSVPrice](ctx, c, "prices", url)
}

// getResults retries with a linear backoff of 0.75s x attempt.
func getResults[T any](ctx context.Context, c *TCGCSVClient, endpoint, url string) ([]T, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		results, err := fetchResults[T](ctx, c, url)
		if err == nil {
			metrics.TCGCSVRequestsTotal.WithLabelValues(endpoint, "success").Inc()
			return results, nil
		}
		metrics.TCGCSVRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == c.retries {
			break
		}

		c.logger.Debug("retrying tcgcsv request",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(tcgcsvRetryBackoff * time.Duration(attempt)):
		}
	}
	return nil, fmt.Errorf("tcgcsv %s failed after %d attempts: %w", endpoint, c.retries, lastErr)
}

func fetchResults[T any](ctx context.Context, c *TCGCSVClient, url string) ([]T, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tcgcsv API error: status %d", resp.StatusCode)
	}

	var env tcgcsvEnvelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Results == nil {
		if len(env.Errors) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedResponse, strings.Join(env.Errors, "; "))
		}
		return nil, fmt.Errorf("%w: missing results", ErrUnexpectedResponse)
	}
	return *env.Results, nil
}

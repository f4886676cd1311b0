package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"agency_listings/config"
	"agency_listings/models"
)

const (
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"
	acceptHeader = "application/json, text/javascript, */*; q=0.01"
)

// StatusError is returned when a page request gets a non-2xx response.
type StatusError struct {
	RT         string
	Page       int
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("error fetching %s: %s", e.RT, e.Status)
}

// AgencyClient reads an agent's feeds from the listing service.
type AgencyClient struct {
	agent    config.AgentConfig
	pageSize int
	client   *http.Client
	limiter  *rate.Limiter
	origin   string
}

func NewAgencyClient(agent config.AgentConfig, httpCfg config.HTTPConfig, client *http.Client) *AgencyClient {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if httpCfg.RateLimitMS > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Duration(httpCfg.RateLimitMS)*time.Millisecond), 1)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &AgencyClient{
		agent:    agent,
		pageSize: httpCfg.PageSize,
		client:   client,
		limiter:  limiter,
		origin:   originOf(agent.Referer),
	}
}

type pageResponse struct {
	Items []models.Listing `json:"Items"`
}

// FetchAll requests pages 1, 2, ... until a page comes back with fewer items
// than the page size, and returns every item in request order.
func (c *AgencyClient) FetchAll(ctx context.Context, rt string) ([]models.Listing, error) {
	all := []models.Listing{}

	for page := 1; ; page++ {
		items, err := c.FetchPage(ctx, rt, page)
		if err != nil {
			return nil, err
		}

		all = append(all, items...)
		slog.Debug("page fetched", "rt", rt, "page", page, "items", len(items), "total", len(all))

		if len(items) < c.pageSize {
			break
		}
	}

	return all, nil
}

func (c *AgencyClient) FetchPage(ctx context.Context, rt string, page int) ([]models.Listing, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(rt, page), nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", rt, err)
	}

	req.Header.Set("Referer", c.agent.Referer)
	req.Header.Set("Origin", c.origin)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching %s page %d: %w", rt, page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{
			RT:         rt,
			Page:       page,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()

	var result pageResponse
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("decode %s page %d: %w", rt, page, err)
	}

	return result.Items, nil
}

func (c *AgencyClient) pageURL(rt string, page int) string {
	params := url.Values{}
	params.Set("ownerPK", c.agent.Key)
	params.Set("ownerRT", c.agent.OwnerRT)
	params.Set("RT", rt)
	params.Set("urlQuery", "")
	params.Set("Q", "")
	params.Set("PageSize", strconv.Itoa(c.pageSize))
	params.Set("pageNum", strconv.Itoa(page))

	u, err := url.Parse(c.agent.BaseURL)
	if err != nil {
		return c.agent.BaseURL + "?" + params.Encode()
	}
	q := u.Query()
	for k, v := range params {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// originOf reduces the referer to scheme://host.
func originOf(referer string) string {
	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return referer
	}
	return u.Scheme + "://" + u.Host
}

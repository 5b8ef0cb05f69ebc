package trends

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpproxy"

	"trends-go/pkg/logger"
)

const (
	DefaultBaseURL       = "https://trends.google.com"
	DefaultLocale        = "en-US"
	DefaultRetries       = 2
	DefaultBackoffFactor = 0.5
	DefaultTimeout       = 30 * time.Second

	explorePath   = "/trends/api/explore"
	multilinePath = "/trends/api/widgetdata/multiline"
)

// ClientConfig configures the trends client. Proxy, when set, routes both
// http and https traffic through the given proxy URL.
type ClientConfig struct {
	BaseURL       string
	Locale        string
	TZ            int
	Retries       int
	BackoffFactor float64
	Proxy         string
	Timeout       time.Duration
}

// payload is the stateful query configuration set by BuildPayload.
type payload struct {
	keywords  []string
	category  int
	timeframe string
	geo       string
}

// Client queries the Google Trends widget API over fasthttp. An explore call
// hands out a widget token, then the multiline widget endpoint returns the
// time-indexed interest values.
type Client struct {
	config  ClientConfig
	client  *fasthttp.Client
	retry   *Retry
	log     *logger.Logger
	payload *payload
	cookie  string
}

var _ QueryClient = (*Client)(nil)

// NewClient creates a trends client. The zero values of BaseURL, Locale,
// Timeout, Retries and BackoffFactor fall back to the package defaults.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Locale == "" {
		config.Locale = DefaultLocale
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Retries == 0 {
		config.Retries = DefaultRetries
	}
	if config.BackoffFactor == 0 {
		config.BackoffFactor = DefaultBackoffFactor
	}

	client := &fasthttp.Client{
		ReadTimeout:         config.Timeout,
		WriteTimeout:        config.Timeout,
		MaxIdleConnDuration: 90 * time.Second,
	}

	if config.Proxy != "" {
		proxyAddr, err := proxyDialAddr(config.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		// One CONNECT-capable dialer covers both http and https upstreams.
		client.Dial = fasthttpproxy.FasthttpHTTPDialerTimeout(proxyAddr, config.Timeout)
	}

	return &Client{
		config: config,
		client: client,
		retry:  NewRetry(config.Retries, config.BackoffFactor),
		log:    logger.GetLogger().WithField("component", "trends_client"),
	}, nil
}

// proxyDialAddr converts a proxy URL into the host[:port] form the fasthttp
// proxy dialer expects, keeping credentials when present.
func proxyDialAddr(proxyURL string) (string, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("proxy URL %q has no host", proxyURL)
	}
	if u.User != nil {
		return u.User.String() + "@" + u.Host, nil
	}
	return u.Host, nil
}

// BuildPayload stores the query configuration for the next InterestOverTime
// call, mirroring the collaborator's stateful API.
func (c *Client) BuildPayload(keywords []string, category int, timeframe, geo string) {
	kws := make([]string, len(keywords))
	copy(kws, keywords)

	c.payload = &payload{
		keywords:  kws,
		category:  category,
		timeframe: timeframe,
		geo:       geo,
	}
}

// InterestOverTime fetches the interest table for the last-built payload.
func (c *Client) InterestOverTime(ctx context.Context) (*InterestTable, error) {
	if c.payload == nil {
		return nil, fmt.Errorf("no payload built, call BuildPayload first")
	}

	c.log.WithFields(map[string]interface{}{
		"keywords_count": len(c.payload.keywords),
		"timeframe":      c.payload.timeframe,
		"geo":            c.payload.geo,
	}).Debug("Fetching interest over time")

	var table *InterestTable
	err := c.retry.Execute(ctx, func() error {
		t, err := c.fetchInterestOverTime()
		if err != nil {
			return err
		}
		table = t
		return nil
	})
	if err != nil {
		c.log.WithError(err).Error("Interest over time query failed")
		return nil, err
	}

	c.log.WithField("rows", len(table.Rows)).Debug("Interest over time query completed")
	return table, nil
}

func (c *Client) fetchInterestOverTime() (*InterestTable, error) {
	c.ensureCookie()

	token, widgetReq, err := c.explore()
	if err != nil {
		return nil, err
	}

	rows, partialFlagged, err := c.widgetData(token, widgetReq)
	if err != nil {
		return nil, err
	}

	return &InterestTable{
		Keywords:       c.payload.keywords,
		Rows:           rows,
		PartialFlagged: partialFlagged,
	}, nil
}

// ensureCookie fetches the session cookie the trends frontend hands out.
// Best effort: a missing cookie surfaces later as a status error on explore.
func (c *Client) ensureCookie() {
	if c.cookie != "" {
		return
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + "/?geo=" + url.QueryEscape(c.payload.geo))
	req.Header.SetMethod(fasthttp.MethodGet)
	c.setCommonHeaders(req)

	if err := c.client.DoTimeout(req, resp, c.config.Timeout); err != nil {
		c.log.WithError(err).Debug("Cookie bootstrap request failed")
		return
	}

	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)
	cookie.SetKey("NID")
	if resp.Header.Cookie(cookie) {
		c.cookie = "NID=" + string(cookie.Value())
	}
}

// explore posts the comparison items and returns the TIMESERIES widget token
// plus the widget request blob to replay against the multiline endpoint.
func (c *Client) explore() (string, json.RawMessage, error) {
	type comparisonItem struct {
		Keyword string `json:"keyword"`
		Geo     string `json:"geo"`
		Time    string `json:"time"`
	}

	items := make([]comparisonItem, 0, len(c.payload.keywords))
	for _, kw := range c.payload.keywords {
		items = append(items, comparisonItem{
			Keyword: kw,
			Geo:     c.payload.geo,
			Time:    c.payload.timeframe,
		})
	}

	exploreReq, err := json.Marshal(map[string]interface{}{
		"comparisonItem": items,
		"category":       c.payload.category,
		"property":       "",
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal explore request: %w", err)
	}

	params := url.Values{}
	params.Set("hl", c.config.Locale)
	params.Set("tz", strconv.Itoa(c.config.TZ))
	params.Set("req", string(exploreReq))

	body, err := c.do(fasthttp.MethodPost, explorePath, params)
	if err != nil {
		return "", nil, err
	}

	return parseExploreResponse(body)
}

// widgetData fetches and decodes the multiline widget for the given token.
func (c *Client) widgetData(token string, widgetReq json.RawMessage) ([]InterestRow, bool, error) {
	params := url.Values{}
	params.Set("hl", c.config.Locale)
	params.Set("tz", strconv.Itoa(c.config.TZ))
	params.Set("req", string(widgetReq))
	params.Set("token", token)

	body, err := c.do(fasthttp.MethodGet, multilinePath, params)
	if err != nil {
		return nil, false, err
	}

	return parseMultilineResponse(body)
}

func (c *Client) do(method, path string, params url.Values) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + path + "?" + params.Encode())
	req.Header.SetMethod(method)
	c.setCommonHeaders(req)

	if err := c.client.DoTimeout(req, resp, c.config.Timeout); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode(), Body: string(resp.Body())}
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

func (c *Client) setCommonHeaders(req *fasthttp.Request) {
	req.Header.Set("User-Agent", "trends-go/1.0")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", c.config.Locale)
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
}

// stripJSONPrefix drops the XSSI guard (`)]}'` plus a newline or comma) the
// trends API prepends to every JSON body.
func stripJSONPrefix(body []byte) ([]byte, error) {
	idx := bytes.IndexAny(body, "{[")
	if idx < 0 {
		return nil, fmt.Errorf("response contains no JSON document")
	}
	return body[idx:], nil
}

func parseExploreResponse(body []byte) (string, json.RawMessage, error) {
	data, err := stripJSONPrefix(body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode explore response: %w", err)
	}

	var exploreResp struct {
		Widgets []struct {
			ID      string          `json:"id"`
			Token   string          `json:"token"`
			Request json.RawMessage `json:"request"`
		} `json:"widgets"`
	}
	if err := json.Unmarshal(data, &exploreResp); err != nil {
		return "", nil, fmt.Errorf("failed to decode explore response: %w", err)
	}

	for _, widget := range exploreResp.Widgets {
		if widget.ID == "TIMESERIES" {
			return widget.Token, widget.Request, nil
		}
	}

	return "", nil, fmt.Errorf("explore response has no TIMESERIES widget")
}

func parseMultilineResponse(body []byte) ([]InterestRow, bool, error) {
	data, err := stripJSONPrefix(body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode widget response: %w", err)
	}

	var widgetResp struct {
		Default struct {
			TimelineData []struct {
				Time      string    `json:"time"`
				Value     []float64 `json:"value"`
				HasData   []bool    `json:"hasData"`
				IsPartial *bool     `json:"isPartial"`
			} `json:"timelineData"`
		} `json:"default"`
	}
	if err := json.Unmarshal(data, &widgetResp); err != nil {
		return nil, false, fmt.Errorf("failed to decode widget response: %w", err)
	}

	rows := make([]InterestRow, 0, len(widgetResp.Default.TimelineData))
	partialFlagged := false

	for _, point := range widgetResp.Default.TimelineData {
		row := InterestRow{
			Values:  point.Value,
			HasData: point.HasData,
		}
		if sec, err := strconv.ParseInt(point.Time, 10, 64); err == nil {
			row.Time = time.Unix(sec, 0).UTC()
		}
		if point.IsPartial != nil {
			partialFlagged = true
			row.Partial = *point.IsPartial
		}
		rows = append(rows, row)
	}

	return rows, partialFlagged, nil
}

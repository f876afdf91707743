package thingspeak

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	jww "github.com/spf13/jwalterweatherman"
)

func NewClient(endpoint string, apiKey string, log *jww.Notepad) *Client {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	return &Client{
		url:        endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        log,
	}
}

// Update sends one channel update and returns the entry id assigned by ThingSpeak.
// ThingSpeak answers 200 with entry id 0 when it drops an update, usually
// because the channel rate limit was hit. That still counts as delivered.
func (c *Client) Update(ctx context.Context, fields url.Values) (int64, error) {
	endpoint, err := url.Parse(c.url)
	if err != nil {
		return 0, fmt.Errorf("invalid thingspeak url: %w", err)
	}

	params := endpoint.Query()
	params.Set("api_key", c.apiKey)
	for key, values := range fields {
		for _, value := range values {
			params.Add(key, value)
		}
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return 0, err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("thingspeak request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1024))
	if err != nil {
		return 0, fmt.Errorf("failed to read thingspeak response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return 0, fmt.Errorf("%w: %s", ErrBadStatus, res.Status)
	}

	entryID, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		c.log.DEBUG.Printf("Unexpected ThingSpeak response body: %q", body)
		return 0, nil
	}
	if entryID == 0 {
		c.log.DEBUG.Println("ThingSpeak returned entry id 0, the update was probably rate limited")
	}
	return entryID, nil
}

package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cryptosignal/internal/exchange"
	"cryptosignal/internal/metrics"
	"cryptosignal/logger"
	"cryptosignal/models"
)

// DefaultURL is the public alternative.me Crypto Fear & Greed endpoint.
const DefaultURL = "https://api.alternative.me/fng/"

const sourceName = "alternative.me"

// NeutralIndex is used when no reading can be obtained.
const NeutralIndex = 50

// Source returns the current market-wide fear and greed reading.
type Source interface {
	CurrentIndex(ctx context.Context) (models.FearGreed, error)
}

// Client reads the index over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
	log        *logger.Log
}

// NewClient returns a client for url, DefaultURL when empty.
func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.GetLogger(),
	}
}

type fngResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
		Timestamp      string `json:"timestamp"`
	} `json:"data"`
	Metadata struct {
		Error *string `json:"error"`
	} `json:"metadata"`
}

func (c *Client) CurrentIndex(ctx context.Context) (fg models.FearGreed, err error) {
	defer func() { metrics.UpstreamCall(sourceName, "fear_greed", err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return models.FearGreed{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.FearGreed{}, fmt.Errorf("fear and greed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.FearGreed{}, fmt.Errorf("fear and greed: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		exchange.ReportLimit(c.log, sourceName, "", "fear_greed", resp.Status+" "+string(body))
		return models.FearGreed{}, &exchange.StatusError{Source: sourceName, Endpoint: "fear_greed", Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload fngResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.FearGreed{}, fmt.Errorf("fear and greed: decode: %w", err)
	}
	if payload.Metadata.Error != nil && *payload.Metadata.Error != "" {
		return models.FearGreed{}, fmt.Errorf("fear and greed: %s", *payload.Metadata.Error)
	}
	if len(payload.Data) == 0 {
		return models.FearGreed{}, fmt.Errorf("fear and greed: no data points")
	}

	d := payload.Data[0]
	v, err := strconv.Atoi(strings.TrimSpace(d.Value))
	if err != nil || v < 0 || v > 100 {
		return models.FearGreed{}, fmt.Errorf("fear and greed: invalid value %q", d.Value)
	}
	fg = models.FearGreed{Value: v, Classification: d.Classification}
	if fg.Classification == "" {
		fg.Classification = Classify(v)
	}
	if ts, err := strconv.ParseInt(d.Timestamp, 10, 64); err == nil {
		fg.Timestamp = time.Unix(ts, 0).UTC()
	}
	return fg, nil
}

// Neutral is the reading assumed when the source cannot be reached.
func Neutral(now time.Time) models.FearGreed {
	return models.FearGreed{
		Value:          NeutralIndex,
		Classification: Classify(NeutralIndex),
		Timestamp:      now.UTC(),
		Fallback:       true,
	}
}

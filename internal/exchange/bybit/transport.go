package bybit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"cryptosignal/logger"
)

// limitTransport reports the request budget Bybit announces in response
// headers. Throttling statuses are rewritten into a regular envelope carrying
// the matching retCode, so they surface through the same decode path as a
// throttled 200 response.
type limitTransport struct {
	base http.RoundTripper
	log  *logger.Log
}

func (t *limitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	reportUsedWeight(t.log, resp.Header, path.Base(req.URL.Path))

	var code int
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		code = 10006
	case http.StatusForbidden:
		code = 10018
	default:
		return resp, nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	resp.Body.Close()
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	env, err := json.Marshal(map[string]interface{}{
		"retCode": code,
		"retMsg":  fmt.Sprintf("http %d: %s", resp.StatusCode, msg),
		"result":  map[string]interface{}{},
	})
	if err != nil {
		return nil, err
	}
	resp.StatusCode = http.StatusOK
	resp.Status = "200 OK"
	resp.Body = io.NopCloser(bytes.NewReader(env))
	resp.ContentLength = int64(len(env))
	resp.Header.Del("Content-Length")
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

// reportUsedWeight reads the legacy X-Bapi-* headers, falling back to the
// generic X-RateLimit-* names.
func reportUsedWeight(log *logger.Log, header http.Header, endpoint string) {
	limitStr := header.Get("X-Bapi-Limit")
	if limitStr == "" {
		limitStr = header.Get("X-RateLimit-Limit")
	}
	remainingStr := header.Get("X-Bapi-Limit-Status")
	if remainingStr == "" {
		remainingStr = header.Get("X-RateLimit-Remaining")
	}
	if limitStr == "" || remainingStr == "" {
		return
	}
	log.LogMetric("bybit_client", "used_weight", usedWeight(limitStr, remainingStr), "gauge", logger.Fields{"endpoint": endpoint})
}

func usedWeight(limitStr, remainingStr string) int64 {
	limit, _ := strconv.ParseInt(limitStr, 10, 64)
	remaining, _ := strconv.ParseInt(remainingStr, 10, 64)
	if used := limit - remaining; used > 0 {
		return used
	}
	return 0
}

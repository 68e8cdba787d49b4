package exchange

import (
	"strings"

	"cryptosignal/logger"
)

// detectLimit inspects an upstream error message and determines whether it
// signals a rate limit or an IP ban. Wording differs per upstream.
func detectLimit(source, msg string) (rateLimit bool, ipBan bool) {
	lowerMsg := strings.ToLower(msg)
	switch strings.ToLower(source) {
	case "binance":
		rateLimit = strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "rate limit") ||
			strings.Contains(lowerMsg, "too much request weight")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban")
	case "indodax":
		rateLimit = strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "rate limit") ||
			strings.Contains(lowerMsg, "too_many_requests")
		ipBan = strings.Contains(lowerMsg, "ip") && (strings.Contains(lowerMsg, "blocked") || strings.Contains(lowerMsg, "ban"))
	case "bybit":
		ipBan = strings.Contains(lowerMsg, "ip rate limit") || (strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban"))
		rateLimit = !ipBan && (strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests") ||
			strings.Contains(lowerMsg, "too many visits") || strings.Contains(lowerMsg, "access too frequent"))
	default:
		rateLimit = strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban")
	}
	return
}

// ReportLimit records a rate limit or IP ban signalled by an upstream error
// message. Messages matching neither are ignored.
func ReportLimit(log *logger.Log, source, pair, endpoint, msg string) {
	rateLimit, ipBan := detectLimit(source, msg)
	if !rateLimit && !ipBan {
		return
	}
	component := strings.ToLower(source) + "_client"
	fields := logger.Fields{
		"source":   strings.ToLower(source),
		"pair":     pair,
		"endpoint": endpoint,
	}
	l := log.WithComponent(component)
	if ipBan {
		l.LogMetric(component, "ip_ban", int64(1), "counter", fields)
		l.WithFields(fields).Error("ip banned")
		return
	}
	l.LogMetric(component, "rate_limit_exceeded", int64(1), "counter", fields)
	l.WithFields(fields).Warn("rate limit exceeded")
}

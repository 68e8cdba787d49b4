// Package symbols converts between the canonical pair id used across the
// module ("btc_idr") and the formats each upstream expects.
package symbols

import "strings"

// quotes are the quote assets recognised when a symbol has no separator.
// Longer suffixes come first so "usdt" wins over "usd".
var quotes = []string{"usdt", "usdc", "busd", "idr", "btc", "eth", "usd"}

// binanceMultiplied lists futures contracts Binance quotes per 1000 units.
var binanceMultiplied = map[string]string{
	"bonk":  "1000BONK",
	"pepe":  "1000PEPE",
	"shib":  "1000SHIB",
	"floki": "1000FLOKI",
}

// bybitMultiplied lists contracts Bybit quotes per 1000 units. Bybit puts
// the multiplier after the base for some of them.
var bybitMultiplied = map[string]string{
	"bonk":  "1000BONK",
	"pepe":  "1000PEPE",
	"shib":  "SHIB1000",
	"floki": "1000FLOKI",
}

// Normalize turns an asset key into a canonical pair id. It accepts
// "btc_idr", "BTC-IDR", "btc/idr", "btcidr", "BTCUSDT" and a bare base asset,
// which is paired with defaultQuote. ok is false when nothing usable remains.
func Normalize(asset, defaultQuote string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(asset))
	s = strings.NewReplacer("-", "_", "/", "_").Replace(s)
	if s == "" {
		return "", false
	}
	if base, quote, found := strings.Cut(s, "_"); found {
		if !valid(base) || !valid(quote) {
			return "", false
		}
		return base + "_" + quote, true
	}
	for _, q := range quotes {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			base := strings.TrimPrefix(s[:len(s)-len(q)], "1000")
			if !valid(base) {
				return "", false
			}
			return base + "_" + q, true
		}
	}
	dq := strings.ToLower(defaultQuote)
	if !valid(s) || !valid(dq) {
		return "", false
	}
	return s + "_" + dq, true
}

func valid(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Split returns the base and quote asset of a canonical pair id.
func Split(pair string) (base, quote string) {
	base, quote, _ = strings.Cut(pair, "_")
	return base, quote
}

// ToIndodax converts a pair id to the ticker path form, "btc_idr" -> "btcidr".
func ToIndodax(pair string) string {
	return strings.ReplaceAll(pair, "_", "")
}

// ToBinance converts a pair id to a Binance futures symbol. Pairs quoted in a
// currency Binance does not list are re-quoted in quoteAsset.
// Examples:
//
//	btc_usdt -> BTCUSDT
//	btc_idr  -> BTCUSDT (quoteAsset USDT)
//	pepe_usdt -> 1000PEPEUSDT
func ToBinance(pair, quoteAsset string) string {
	base, quote := Split(pair)
	if quote == "" || quote == "idr" {
		quote = strings.ToLower(quoteAsset)
	}
	if m, ok := binanceMultiplied[base]; ok {
		return m + strings.ToUpper(quote)
	}
	return strings.ToUpper(base + quote)
}

// FromBinance converts a Binance symbol back to a pair id.
func FromBinance(sym string) string {
	pair, ok := Normalize(sym, "")
	if !ok {
		return strings.ToLower(sym)
	}
	return pair
}

// ToBybit converts a pair id to a Bybit symbol. Spot symbols carry no
// contract multiplier.
// Examples:
//
//	btc_usdt  -> BTCUSDT
//	btc_idr   -> BTCUSDT (quoteAsset USDT)
//	shib_usdt -> SHIB1000USDT (linear)
func ToBybit(pair, quoteAsset string, linear bool) string {
	base, quote := Split(pair)
	if quote == "" || quote == "idr" {
		quote = strings.ToLower(quoteAsset)
	}
	if m, ok := bybitMultiplied[base]; ok && linear {
		return m + strings.ToUpper(quote)
	}
	return strings.ToUpper(base + quote)
}

// FromBybit converts a Bybit symbol back to a pair id.
func FromBybit(sym string) string {
	pair, ok := Normalize(sym, "")
	if !ok {
		return strings.ToLower(sym)
	}
	base, quote := Split(pair)
	if trimmed := strings.TrimSuffix(base, "1000"); trimmed != "" {
		base = trimmed
	}
	return base + "_" + quote
}

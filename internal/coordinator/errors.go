package coordinator

import (
	"errors"
	"fmt"
)

// ErrRateLimited is matched by every RateLimitError.
var ErrRateLimited = errors.New("rate limited")

// RateLimitError reports that a fetch was not attempted or was refused for
// lack of request budget. Upstream is true when the upstream itself throttled
// the call rather than the local governor.
type RateLimitError struct {
	Key      string
	Upstream bool
	Err      error
}

func (e *RateLimitError) Error() string {
	if e.Upstream {
		return fmt.Sprintf("rate limited by upstream fetching %s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("rate limited: no request budget for %s", e.Key)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

func (e *RateLimitError) Unwrap() error { return e.Err }

// UpstreamError reports that the fetcher failed or returned unusable data.
type UpstreamError struct {
	Key string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream fetch %s: %v", e.Key, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUpstream reports whether err is an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// throttled is implemented by fetcher errors that know whether the upstream
// rejected the call for exceeding its rate limit.
type throttled interface {
	RateLimited() bool
}

func isThrottled(err error) bool {
	var t throttled
	return errors.As(err, &t) && t.RateLimited()
}

package ratelimit

import (
	"net/http"
	"strconv"
)

const RetryAfterHeader = "Retry-After"

// Rejection is the "too many requests" answer built from a rejected Result.
type Rejection struct {
	Status     int    `json:"-"`
	Message    string `json:"error"`
	RetryAfter int    `json:"retry_after"` // seconds
}

// NewRejection builds the rejection for res. It has no side effects.
func NewRejection(res Result) Rejection {
	retry := res.RetryAfterSeconds
	if retry < 1 {
		retry = 1
	}
	return Rejection{
		Status:     http.StatusTooManyRequests,
		Message:    "too many requests, please try again in " + formatSeconds(retry),
		RetryAfter: retry,
	}
}

// Header returns the metadata clients use for backoff.
func (rj Rejection) Header() http.Header {
	h := make(http.Header, 1)
	h.Set(RetryAfterHeader, strconv.Itoa(rj.RetryAfter))
	return h
}

func formatSeconds(n int) string {
	if n == 1 {
		return "1 second"
	}
	return strconv.Itoa(n) + " seconds"
}

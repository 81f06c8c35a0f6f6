// Package transient retries remote calls that failed for reasons worth retrying.
package transient

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"

	"github.com/ademuri/lastfm-go/lastfm"
)

// Delay is the base backoff between attempts.
var Delay = 500 * time.Millisecond

// Do calls fn up to attempts times, retrying only errors for which Retryable
// returns true.
func Do(attempts uint, what string, fn func() error) error {
	return DoIf(attempts, what, Retryable, fn)
}

// DoIf is Do with a custom retry predicate.
func DoIf(attempts uint, what string, retryable func(error) bool, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	return retry.Do(
		fn,
		retry.Attempts(attempts),
		retry.Delay(Delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Str("call", what).Uint("attempt", n+1).Msg("remote call failed, retrying")
		}),
	)
}

// bareStatus matches the error spotify.Client returns for an error response
// with an empty body.
var bareStatus = regexp.MustCompile(`spotify: HTTP (\d{3}): `)

// undecodable marks an error response whose body is not Spotify's JSON, which
// in practice is a proxy or gateway page.
const undecodable = "spotify: couldn't decode error"

// spotifyStatus extracts the HTTP status of a failed Spotify call.
func spotifyStatus(err error) (int, bool) {
	var serr spotify.Error
	if errors.As(err, &serr) {
		return serr.Status, true
	}
	if m := bareStatus.FindStringSubmatch(err.Error()); m != nil {
		status, _ := strconv.Atoi(m[1])
		return status, true
	}
	return 0, false
}

// Retryable reports whether err is a rate-limit or server-side failure.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if status, ok := spotifyStatus(err); ok {
		return status == http.StatusTooManyRequests || status/100 == 5
	}
	if strings.Contains(err.Error(), undecodable) {
		return true
	}
	var lerr *lastfm.LastfmError
	if errors.As(err, &lerr) {
		return lerr.Code/100 == 5
	}
	return false
}

// RateLimited reports whether err is a 429, which the server rejects before
// doing any work. Calls that are not safe to repeat retry only on this.
func RateLimited(err error) bool {
	if err == nil {
		return false
	}
	status, ok := spotifyStatus(err)
	return ok && status == http.StatusTooManyRequests
}

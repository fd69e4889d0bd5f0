package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// StatusError is a non-200 answer from an Overpass endpoint.
type StatusError struct {
	StatusCode int
	Endpoint   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("overpass endpoint %s answered %d %s", e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
}

// Transient reports whether the status signals overload or a gateway problem.
func (e *StatusError) Transient() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsTransient reports whether err is an overload/gateway status worth a
// longer pause before the next attempt.
func IsTransient(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Transient()
}

// attemptTransport binds one attempt's context to the request, sets the
// User-Agent and turns non-200 answers into errors so the body is never
// decoded.
type attemptTransport struct {
	ctx       context.Context
	userAgent string
	base      http.RoundTripper
	status    int
}

func (t *attemptTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(t.ctx)
	req.Header.Set("User-Agent", t.userAgent)

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		t.status = resp.StatusCode
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Endpoint: req.URL.String()}
	}
	return resp, nil
}

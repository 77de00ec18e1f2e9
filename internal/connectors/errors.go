package connectors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/xela07ax/nft-agents-console/internal/domain"
)

// ThrottleError: бэкенд попросил подождать (429/503 с Retry-After).
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }

const defaultRetryAfter = time.Second

// classify переводит HTTP-ответ бэкенда в таксономию ошибок консоли.
func classify(op string, resp *http.Response) error {
	msg := readErrorMessage(resp.Body)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	cause := fmt.Errorf("status %d: %s", resp.StatusCode, msg)

	switch code := resp.StatusCode; {
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return &domain.ValidationError{Message: msg}
	case code == http.StatusUnauthorized:
		return &domain.AuthError{Reason: msg}
	case code == http.StatusNotFound:
		return fmt.Errorf("%s: %s: %w", op, msg, domain.ErrNotFound)
	case code == http.StatusConflict:
		return &domain.ConflictError{Op: op, Reason: msg}
	case code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable:
		return &domain.NetworkError{Op: op, Err: &ThrottleError{
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
			Cause:      cause,
		}}
	case code >= 500:
		return &domain.NetworkError{Op: op, Err: cause}
	}
	// 403 и прочие 4xx: запрос понят, но отклонен
	return fmt.Errorf("%s: %w", op, cause)
}

// readErrorMessage достает {"error": "..."} или {"message": "..."}.
func readErrorMessage(body io.Reader) string {
	var errBody struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 64<<10)).Decode(&errBody); err != nil {
		return ""
	}
	if errBody.Error != "" {
		return errBody.Error
	}
	return errBody.Message
}

func retryAfter(h string) time.Duration {
	if h == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(h); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return defaultRetryAfter
}

// transportError: запрос не дошел до бэкенда.
func transportError(op string, err error) error {
	var netErr *domain.NetworkError
	if errors.As(err, &netErr) {
		return err
	}
	return &domain.NetworkError{Op: op, Err: err}
}

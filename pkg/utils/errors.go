package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// IsTimeoutError checks if an error is a timeout error
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}

	return ContainsAnyFold(err.Error(), []string{
		"timeout",
		"timed out",
		"deadline exceeded",
		"deadline_exceeded",
	})
}

// IsNetworkError checks if an error is a network-related error
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	return ContainsAnyFold(err.Error(), []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network unreachable",
		"dial tcp",
		"no route to host",
		"eof",
	})
}

// CombineErrors joins non-nil errors, returning nil when there are none
func CombineErrors(errs []error) error {
	valid := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			valid = append(valid, err)
		}
	}

	switch len(valid) {
	case 0:
		return nil
	case 1:
		return valid[0]
	default:
		return errors.Join(valid...)
	}
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return fmt.Errorf("validation error for %s: %s", field, message)
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) error {
	return fmt.Errorf("configuration error: %s", message)
}

// ContainsAnyFold reports whether s contains any of the substrings, ignoring case
func ContainsAnyFold(s string, substrings []string) bool {
	lower := strings.ToLower(s)
	for _, substr := range substrings {
		if strings.Contains(lower, strings.ToLower(substr)) {
			return true
		}
	}
	return false
}

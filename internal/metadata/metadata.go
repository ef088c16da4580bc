// Package metadata resolves media references and fetches item and container
// details from the video platform.
package metadata

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"media-digest-go/internal/classify"
	"media-digest-go/internal/model"
)

var (
	ErrQuotaExceeded     = classify.ErrQuotaExceeded
	ErrNotFound          = classify.ErrNotFound
	ErrPrivate           = classify.ErrPrivate
	ErrContainerNotFound = classify.ErrContainerNotFound
)

// Provider is the video and container metadata source
type Provider interface {
	GetItemDetails(ctx context.Context, id string) (*model.ItemMetadata, error)
	GetContainerDetails(ctx context.Context, containerID string) (*model.ContainerMetadata, error)
	ListContainerItems(ctx context.Context, containerID string, maxResults int, pageToken string) (*ItemPage, error)

	// ResolveContainerID maps a handle to a container ID, returning an empty
	// ID when the handle does not exist
	ResolveContainerID(ctx context.Context, handle string) (string, error)
}

// ItemPage is one page of container items
type ItemPage struct {
	Items         []model.ItemMetadata
	NextPageToken string
}

// EachContainerItem pages through a container until maxItems items have been
// passed to fn or the container is exhausted. Returning false from fn stops.
func EachContainerItem(ctx context.Context, p Provider, containerID string, maxItems int, fn func(model.ItemMetadata) bool) error {
	var token string
	seen := 0
	for {
		pageSize := 50
		if maxItems > 0 && maxItems-seen < pageSize {
			pageSize = maxItems - seen
		}

		page, err := p.ListContainerItems(ctx, containerID, pageSize, token)
		if err != nil {
			return fmt.Errorf("listing items of %q: %w", containerID, err)
		}

		for _, item := range page.Items {
			if !fn(item) {
				return nil
			}
			seen++
			if maxItems > 0 && seen >= maxItems {
				return nil
			}
		}

		if page.NextPageToken == "" || len(page.Items) == 0 {
			return nil
		}
		token = page.NextPageToken
	}
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseDuration parses an ISO 8601 duration such as PT1H2M3S
func ParseDuration(value string) (time.Duration, error) {
	m := isoDuration.FindStringSubmatch(value)
	if m == nil || value == "P" || value == "PT" {
		return 0, fmt.Errorf("invalid ISO 8601 duration: %q", value)
	}

	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("invalid ISO 8601 duration: %q", value)
		}
		total += time.Duration(n) * unit
	}
	return total, nil
}

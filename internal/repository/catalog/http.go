package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nkruiper/ls-updater/internal/domain/release"
)

// Repository defines read access to the release catalog.
type Repository interface {
	Releases(ctx context.Context) ([]release.Release, error)
}

// DefaultPageURL is the public releases listing page.
const DefaultPageURL = "https://community.limesurvey.org/downloads/"

var (
	// ErrUnavailable is returned when the releases page cannot be retrieved.
	ErrUnavailable = errors.New("releases page unavailable")

	// ErrUnparseable is returned when the page content does not yield releases.
	ErrUnparseable = errors.New("releases page not parseable")
)

// HTTPRepository fetches the releases page over HTTP.
type HTTPRepository struct {
	// pageURL is the releases listing page address.
	pageURL string
	// client performs the page request.
	client *http.Client
}

// NewHTTPRepository creates a repository for the provided page URL.
// An empty URL selects DefaultPageURL; a nil client selects http.DefaultClient.
func NewHTTPRepository(pageURL string, client *http.Client) *HTTPRepository {
	if pageURL == "" {
		pageURL = DefaultPageURL
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPRepository{
		pageURL: pageURL,
		client:  client,
	}
}

// Releases downloads and parses the releases page.
func (r *HTTPRepository) Releases(ctx context.Context) ([]release.Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	response, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", ErrUnavailable, r.pageURL, response.Status)
	}

	return parseReleases(response.Body)
}

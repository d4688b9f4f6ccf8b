package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/eternisai/assignment-relay/internal/assignments"
	apperrors "github.com/eternisai/assignment-relay/internal/errors"
	"github.com/eternisai/assignment-relay/internal/logger"
)

// maxPages bounds @odata.nextLink following so a misbehaving server cannot
// keep a cycle busy forever.
const maxPages = 50

// Client reads education assignments from Microsoft Graph.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a Graph client rooted at baseURL (e.g. https://graph.microsoft.com/v1.0).
func NewClient(baseURL string, httpClient *http.Client, logger *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger.WithComponent("graph_client"),
	}
}

// FetchAssignments returns every assignment visible to the token's identity,
// in the order Graph returns them.
//
// On any failure it returns an empty, non-nil slice together with a
// *errors.FetchError; partial results from earlier pages are discarded. The
// token is not validated locally.
func (c *Client) FetchAssignments(ctx context.Context, token string) ([]assignments.Assignment, error) {
	log := c.logger.WithContext(ctx)

	var result []assignments.Assignment
	next := c.baseURL + "/education/me/assignments"

	for page := 0; next != ""; page++ {
		if page >= maxPages {
			log.Warn("stopping assignment pagination at page limit",
				slog.Int("max_pages", maxPages),
				slog.Int("fetched", len(result)))
			break
		}

		body, err := c.getPage(ctx, next, token)
		if err != nil {
			return []assignments.Assignment{}, err
		}

		for _, item := range body.Value {
			result = append(result, item.toAssignment())
		}

		if body.NextLink != "" {
			if err := c.checkNextLink(body.NextLink); err != nil {
				log.Error("refusing to follow assignment page link",
					slog.String("next_link", body.NextLink),
					slog.String("error", err.Error()))
				return []assignments.Assignment{}, &apperrors.FetchError{Err: err}
			}
		}
		next = body.NextLink
	}

	log.Debug("fetched assignments", slog.Int("count", len(result)))

	if result == nil {
		result = []assignments.Assignment{}
	}
	return result, nil
}

// checkNextLink keeps the bearer token on the configured Graph origin: a page
// link must share the scheme and host of baseURL.
func (c *Client) checkNextLink(link string) error {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid graph base url: %w", err)
	}
	next, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("invalid nextLink: %w", err)
	}
	if !strings.EqualFold(next.Scheme, base.Scheme) || !strings.EqualFold(next.Host, base.Host) {
		return fmt.Errorf("nextLink points to %s://%s, expected %s://%s", next.Scheme, next.Host, base.Scheme, base.Host)
	}
	return nil
}

func (c *Client) getPage(ctx context.Context, pageURL, token string) (*assignmentPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &apperrors.FetchError{Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &apperrors.FetchError{Err: fmt.Errorf("failed to call graph: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.WithContext(ctx).Error("graph returned error",
			slog.Int("status_code", resp.StatusCode),
			slog.String("body", string(body)))
		return nil, &apperrors.FetchError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("graph returned status %d", resp.StatusCode),
		}
	}

	var page assignmentPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, &apperrors.FetchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return &page, nil
}

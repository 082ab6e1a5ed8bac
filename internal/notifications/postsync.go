package notifications

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const postSyncTimeout = 5 * time.Second

// PostServiceNotifier asks the post service to refresh a post's comment count
// after a comment is created or deleted. Other events are ignored.
type PostServiceNotifier struct {
	baseURL string
	client  *http.Client
}

// NewPostServiceNotifier targets baseURL. A nil client gets an instrumented default.
func NewPostServiceNotifier(baseURL string, client *http.Client) *PostServiceNotifier {
	if client == nil {
		client = &http.Client{
			Timeout:   postSyncTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &PostServiceNotifier{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (n *PostServiceNotifier) Name() string { return "post_service" }

func (n *PostServiceNotifier) Publish(ctx context.Context, evt Event) error {
	if !evt.ChangesCommentCount() || evt.PostID == "" {
		return nil
	}

	endpoint := fmt.Sprintf("%s/api/v1/posts/%s/update-comment-count", n.baseURL, url.PathEscape(evt.PostID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post service: unexpected status %d", resp.StatusCode)
	}
	return nil
}

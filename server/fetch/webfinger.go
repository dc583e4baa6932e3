package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/fedforumdev/fedforum/server/telemetry"
)

type webfingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type"`
	HRef string `json:"href"`
}

type webfingerResponse struct {
	Subject string          `json:"subject"`
	Aliases []string        `json:"aliases,omitempty"`
	Links   []webfingerLink `json:"links"`
}

// DiscoverActor resolves a name@domain handle to the actor's profile IRI
// via the domain's webfinger endpoint.
func (f *Fetcher) DiscoverActor(ctx context.Context, handle string) (string, error) {
	name, domain, ok := strings.Cut(handle, "@")
	if !ok || name == "" || domain == "" {
		return "", fmt.Errorf("%w: malformed handle [%s]", ErrNotFound, handle)
	}
	endpoint := fmt.Sprintf("https://%s/.well-known/webfinger?resource=%s",
		domain, url.QueryEscape("acct:"+handle))

	telemetry.Increment("webfinger_lookups", 1)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrTransport, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: no webfinger resource for [%s]", ErrNotFound, handle)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: webfinger status %d for [%s]", ErrTransport, resp.StatusCode, handle)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrTransport, err)
	}
	var wf webfingerResponse
	if err := json.Unmarshal(body, &wf); err != nil {
		return "", fmt.Errorf("%w: unmarshaling webfinger response: %s", ErrTransport, err)
	}
	for _, link := range wf.Links {
		if link.Rel == "self" && strings.Contains(link.Type, "json") && link.HRef != "" {
			return link.HRef, nil
		}
	}
	return "", fmt.Errorf("%w: no self link in webfinger response for [%s]", ErrNotFound, handle)
}

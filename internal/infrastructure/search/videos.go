package search

import (
	"context"
	"net/url"
	"strings"

	"CurriculumSpider/internal/domain"
	"CurriculumSpider/internal/ports"
)

// VideoSearch is the secondary candidate channel: Custom Search restricted to youtube.com.
// It cannot see durations, so its candidates carry an unknown duration.
type VideoSearch struct {
	client *Client
}

var _ ports.ResourceSearch = (*VideoSearch)(nil)

// NewVideoSearch wraps a Custom Search client.
func NewVideoSearch(client *Client) *VideoSearch {
	return &VideoSearch{client: client}
}

// Search returns watch-page results for query.
func (v *VideoSearch) Search(ctx context.Context, query string) ([]domain.CandidateResource, error) {
	items, err := v.client.Items(ctx, query+" site:youtube.com")
	if err != nil {
		return nil, err
	}
	out := make([]domain.CandidateResource, 0, len(items))
	for _, it := range items {
		id, ok := WatchID(it.Link)
		if !ok {
			continue
		}
		channel := ""
		if len(it.Pagemap.Person) > 0 {
			channel = it.Pagemap.Person[0].Name
		}
		out = append(out, domain.CandidateResource{
			ID:            id,
			Title:         strings.TrimSuffix(strings.TrimSpace(it.Title), " - YouTube"),
			URL:           "https://www.youtube.com/watch?v=" + id,
			SourceChannel: channel,
			Snippet:       strings.TrimSpace(it.Snippet),
			Origin:        domain.OriginSecondary,
		})
	}
	return out, nil
}

// WatchID extracts the video id from a youtube.com/watch or youtu.be link.
func WatchID(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch host {
	case "youtube.com", "m.youtube.com":
		if u.Path != "/watch" {
			return "", false
		}
		id := u.Query().Get("v")
		return id, id != ""
	case "youtu.be":
		id := strings.Trim(u.Path, "/")
		return id, id != ""
	default:
		return "", false
	}
}

package github

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SearchQuery selects repositories by language and popularity.
type SearchQuery struct {
	Language   string
	MinStars   int
	MaxResults int
	// Sort and Order default to "stars" and "desc".
	Sort  string
	Order string
}

func (q SearchQuery) String() string {
	var parts []string
	if q.Language != "" {
		parts = append(parts, "language:"+q.Language)
	}
	parts = append(parts, "stars:>="+strconv.Itoa(q.MinStars))
	return strings.Join(parts, " ")
}

// SearchResult is one repository from the search API.
type SearchResult struct {
	FullName      string    `json:"full_name"`
	Description   string    `json:"description"`
	Stars         int       `json:"stargazers_count"`
	Forks         int       `json:"forks_count"`
	Language      string    `json:"language"`
	IsFork        bool      `json:"fork"`
	IsArchived    bool      `json:"archived"`
	DefaultBranch string    `json:"default_branch"`
	Size          int       `json:"size"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	PushedAt      time.Time `json:"pushed_at"`
}

func (r SearchResult) Owner() string {
	owner, _, _ := strings.Cut(r.FullName, "/")
	return owner
}

func (r SearchResult) Name() string {
	_, name, _ := strings.Cut(r.FullName, "/")
	return name
}

func (r SearchResult) URL() string { return "https://github.com/" + r.FullName }

type searchPage struct {
	TotalCount int            `json:"total_count"`
	Items      []SearchResult `json:"items"`
}

// Search pages through /search/repositories until MaxResults are collected
// or a short page signals the end.
func (c *Client) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	if q.MaxResults <= 0 {
		return nil, nil
	}
	sort, order := q.Sort, q.Order
	if sort == "" {
		sort = "stars"
	}
	if order == "" {
		order = "desc"
	}

	var out []SearchResult
	for page := 1; len(out) < q.MaxResults; page++ {
		params := url.Values{}
		params.Set("q", q.String())
		params.Set("sort", sort)
		params.Set("order", order)
		params.Set("per_page", strconv.Itoa(perPage))
		params.Set("page", strconv.Itoa(page))

		var res searchPage
		if err := c.getJSON(ctx, "/search/repositories", params, &res); err != nil {
			return out, fmt.Errorf("search %q page %d: %w", q.String(), page, err)
		}
		for _, it := range res.Items {
			if len(out) == q.MaxResults {
				break
			}
			out = append(out, it)
		}
		if len(res.Items) < perPage {
			break
		}
	}
	return out, nil
}

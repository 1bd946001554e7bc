package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"flightclaim/internal/platform/metrics"
	dErrors "flightclaim/pkg/domain-errors"
)

const upstreamTimeout = 10 * time.Second

// AirportClient queries the airport autocomplete upstream and ranks its
// results locally.
type AirportClient struct {
	baseURL string
	client  *http.Client
	metrics *metrics.Metrics
}

func NewAirportClient(baseURL string, m *metrics.Metrics) *AirportClient {
	return &AirportClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: upstreamTimeout},
		metrics: m,
	}
}

// Search returns ranked airport options for the term. Terms shorter than
// MinTermLength never reach the upstream; they answer with a single sentinel
// option so the dropdown is never empty.
func (c *AirportClient) Search(ctx context.Context, q AirportQuery) ([]AirportOption, error) {
	term := strings.TrimSpace(q.Term)
	if len(term) < MinTermLength {
		return []AirportOption{{
			Value: SentinelValue,
			Label: "Enter at least 3 characters",
		}}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/airports?term=%s&lang=%s", c.baseURL, url.QueryEscape(term), url.QueryEscape(q.Lang)), nil)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "build airport request", err)
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	c.metrics.ObserveSearch("airports", time.Since(start))
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "airport upstream unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, dErrors.New(dErrors.CodeInternal,
			fmt.Sprintf("airport upstream returned %d", resp.StatusCode))
	}

	var options []AirportOption
	if err := json.NewDecoder(resp.Body).Decode(&options); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "decode airport response", err)
	}
	RankAirports(options, term)
	return options, nil
}

// RankAirports orders options for the dropdown: exact code match first, then
// code-prefix matches, then name-prefix matches, then the rest alphabetically
// by code. Ties within a band also sort by code.
func RankAirports(options []AirportOption, term string) {
	t := strings.ToUpper(strings.TrimSpace(term))
	sort.SliceStable(options, func(i, j int) bool {
		bi, bj := rankBand(options[i], t), rankBand(options[j], t)
		if bi != bj {
			return bi < bj
		}
		return options[i].Value < options[j].Value
	})
}

func rankBand(o AirportOption, upperTerm string) int {
	code := strings.ToUpper(o.Value)
	switch {
	case code == upperTerm:
		return 0
	case strings.HasPrefix(code, upperTerm):
		return 1
	case hasNamePrefix(o, upperTerm):
		return 2
	default:
		return 3
	}
}

func hasNamePrefix(o AirportOption, upperTerm string) bool {
	for _, name := range []string{o.Label, o.Description} {
		if strings.HasPrefix(strings.ToUpper(name), upperTerm) {
			return true
		}
	}
	return false
}

// Package rxnav is an interaction.Source backed by the NLM RxNav REST API:
// approximateTerm for identifier resolution and interaction/list for pairs.
package rxnav

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ehr/medsafety/internal/domain/interaction"
)

// DefaultBaseURL is the public RxNav REST root.
const DefaultBaseURL = "https://rxnav.nlm.nih.gov/REST"

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client against baseURL. timeout bounds every request.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ interaction.Source = (*Client)(nil)

type approximateResponse struct {
	ApproximateGroup struct {
		Candidate []struct {
			Rxcui string `json:"rxcui"`
			Score string `json:"score"`
			Rank  string `json:"rank"`
		} `json:"candidate"`
	} `json:"approximateGroup"`
}

// ResolveApproximateIdentifier returns the best RxCUI for name, or "" when
// RxNav has no candidate.
func (c *Client) ResolveApproximateIdentifier(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}
	u := fmt.Sprintf("%s/approximateTerm.json?term=%s&maxEntries=1", c.baseURL, url.QueryEscape(name))

	var body approximateResponse
	if err := c.getJSON(ctx, u, &body); err != nil {
		return "", fmt.Errorf("approximate term %q: %w", name, err)
	}
	for _, cand := range body.ApproximateGroup.Candidate {
		if cand.Rxcui != "" {
			return cand.Rxcui, nil
		}
	}
	return "", nil
}

type interactionListResponse struct {
	FullInteractionTypeGroup []struct {
		SourceName          string `json:"sourceName"`
		FullInteractionType []struct {
			InteractionPair []struct {
				InteractionConcept []struct {
					MinConceptItem struct {
						Rxcui string `json:"rxcui"`
						Name  string `json:"name"`
					} `json:"minConceptItem"`
				} `json:"interactionConcept"`
				Severity    string `json:"severity"`
				Description string `json:"description"`
			} `json:"interactionPair"`
		} `json:"fullInteractionType"`
	} `json:"fullInteractionTypeGroup"`
}

// FetchInteractions returns every interaction pair among ids. Pairs reported
// more than once are collapsed, keeping the first.
func (c *Client) FetchInteractions(ctx context.Context, ids []string) ([]interaction.Pair, error) {
	if len(ids) < 2 {
		return nil, nil
	}
	u := fmt.Sprintf("%s/interaction/list.json?rxcuis=%s", c.baseURL, strings.Join(ids, "+"))

	var body interactionListResponse
	if err := c.getJSON(ctx, u, &body); err != nil {
		return nil, fmt.Errorf("interaction list: %w", err)
	}

	var pairs []interaction.Pair
	seen := make(map[string]bool)
	for _, group := range body.FullInteractionTypeGroup {
		for _, fit := range group.FullInteractionType {
			for _, p := range fit.InteractionPair {
				if len(p.InteractionConcept) < 2 {
					continue
				}
				id1 := p.InteractionConcept[0].MinConceptItem.Rxcui
				id2 := p.InteractionConcept[1].MinConceptItem.Rxcui
				if id1 == "" || id2 == "" {
					continue
				}
				key := id1 + "-" + id2
				if id2 < id1 {
					key = id2 + "-" + id1
				}
				if seen[key] {
					continue
				}
				seen[key] = true
				pairs = append(pairs, interaction.Pair{
					ID1:         id1,
					ID2:         id2,
					Severity:    p.Severity,
					Description: p.Description,
				})
			}
		}
	}
	return pairs, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

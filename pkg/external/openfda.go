package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/priorauth-engine/internal/domain"
)

// OpenFDAClient handles interactions with the openFDA drug label API.
type OpenFDAClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rateLimit  *rate.Limiter
}

// OpenFDAConfig represents configuration for the openFDA API client.
type OpenFDAConfig struct {
	BaseURL   string        `json:"base_url"`
	APIKey    string        `json:"api_key"`
	Timeout   time.Duration `json:"timeout"`
	RateLimit int           `json:"rate_limit"` // requests per second
}

// labelResponse is the JSON shape of openFDA drug label queries.
type labelResponse struct {
	Results []struct {
		IndicationsAndUsage    []string `json:"indications_and_usage"`
		DosageAndAdministration []string `json:"dosage_and_administration"`
		OpenFDA                struct {
			BrandName    []string `json:"brand_name"`
			GenericName  []string `json:"generic_name"`
			Route        []string `json:"route"`
		} `json:"openfda"`
	} `json:"results"`
}

// NewOpenFDAClient creates a new openFDA API client.
func NewOpenFDAClient(config OpenFDAConfig) *OpenFDAClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.fda.gov"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit == 0 {
		// openFDA allows 4 requests per second without an API key
		config.RateLimit = 4
	}

	return &OpenFDAClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// ApprovalInfo checks the drug's FDA label for the requested indication. The
// match is a case-insensitive substring check against the label's
// indications-and-usage section.
func (o *OpenFDAClient) ApprovalInfo(ctx context.Context, genericName, indication string) (*domain.ApprovalInfo, error) {
	genericName = strings.TrimSpace(genericName)
	if genericName == "" {
		return nil, fmt.Errorf("generic name cannot be empty")
	}

	if err := o.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	params := url.Values{}
	params.Set("search", fmt.Sprintf("openfda.generic_name:%q", genericName))
	params.Set("limit", "1")
	if o.apiKey != "" {
		params.Set("api_key", o.apiKey)
	}

	var resp labelResponse
	if err := o.getJSON(ctx, "/drug/label.json?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("failed to query drug label for %s: %w", genericName, err)
	}

	if len(resp.Results) == 0 {
		return &domain.ApprovalInfo{Approved: false}, nil
	}

	label := resp.Results[0]
	info := &domain.ApprovalInfo{Approved: true}

	if indication != "" {
		info.Approved = labelMentions(label.IndicationsAndUsage, indication)
		if info.Approved {
			info.Indication = indication
		}
	}

	return info, nil
}

// labelMentions reports whether any label section contains the phrase,
// case-insensitively.
func labelMentions(sections []string, phrase string) bool {
	needle := strings.ToLower(phrase)
	for _, section := range sections {
		if strings.Contains(strings.ToLower(section), needle) {
			return true
		}
	}
	return false
}

func (o *OpenFDAClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// openFDA returns 404 for zero-match searches
	if resp.StatusCode == http.StatusNotFound {
		return json.Unmarshal([]byte("{}"), out)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

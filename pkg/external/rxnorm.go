// Package external provides clients for the drug-terminology services the
// engine consults on the enhanced assessment path: RxNorm for identification
// and formulations, openFDA for approval status. All lookups are advisory;
// callers degrade to static profiles when a service is unavailable.
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

// RxNormClient handles interactions with the NLM RxNav RxNorm API.
type RxNormClient struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  *rate.Limiter
}

// RxNormConfig represents configuration for the RxNorm API client.
type RxNormConfig struct {
	BaseURL   string        `json:"base_url"`
	Timeout   time.Duration `json:"timeout"`
	RateLimit int           `json:"rate_limit"` // requests per second
}

// rxcuiResponse is the JSON shape of /rxcui.json lookups.
type rxcuiResponse struct {
	IDGroup struct {
		Name    string   `json:"name"`
		RxNormID []string `json:"rxnormId"`
	} `json:"idGroup"`
}

// propertiesResponse is the JSON shape of /rxcui/{id}/properties.json.
type propertiesResponse struct {
	Properties struct {
		RxCUI string `json:"rxcui"`
		Name  string `json:"name"`
		TTY   string `json:"tty"`
	} `json:"properties"`
}

// classResponse is the JSON shape of rxclass byRxcui lookups.
type classResponse struct {
	RxClassDrugInfoList struct {
		RxClassDrugInfo []struct {
			RxClassMinConceptItem struct {
				ClassID   string `json:"classId"`
				ClassName string `json:"className"`
				ClassType string `json:"classType"`
			} `json:"rxclassMinConceptItem"`
		} `json:"rxclassDrugInfo"`
	} `json:"rxclassDrugInfoList"`
}

// relatedResponse is the JSON shape of /rxcui/{id}/related.json queries.
type relatedResponse struct {
	RelatedGroup struct {
		ConceptGroup []struct {
			TTY             string `json:"tty"`
			ConceptProperties []struct {
				RxCUI string `json:"rxcui"`
				Name  string `json:"name"`
			} `json:"conceptProperties"`
		} `json:"conceptGroup"`
	} `json:"relatedGroup"`
}

// NewRxNormClient creates a new RxNorm API client.
func NewRxNormClient(config RxNormConfig) *RxNormClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://rxnav.nlm.nih.gov/REST"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 20 // RxNav guidance: 20 requests per second per IP
	}

	return &RxNormClient{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// Identify resolves a drug name to its RxCUI and therapeutic classes.
func (r *RxNormClient) Identify(ctx context.Context, drugName string) (*domain.DrugIdentification, error) {
	drugName = strings.TrimSpace(drugName)
	if drugName == "" {
		return nil, fmt.Errorf("drug name cannot be empty")
	}

	if err := r.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	var lookup rxcuiResponse
	params := url.Values{}
	params.Set("name", drugName)
	params.Set("search", "2") // normalized search
	if err := r.getJSON(ctx, "/rxcui.json?"+params.Encode(), &lookup); err != nil {
		return nil, fmt.Errorf("failed to look up RxCUI for %s: %w", drugName, err)
	}

	if len(lookup.IDGroup.RxNormID) == 0 {
		return nil, fmt.Errorf("drug %q not found in RxNorm", drugName)
	}
	rxcui := lookup.IDGroup.RxNormID[0]

	identification := &domain.DrugIdentification{
		RxCUI: rxcui,
		Name:  drugName,
	}

	if err := r.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	var props propertiesResponse
	if err := r.getJSON(ctx, fmt.Sprintf("/rxcui/%s/properties.json", url.PathEscape(rxcui)), &props); err == nil {
		if props.Properties.Name != "" {
			identification.GenericName = props.Properties.Name
		}
	}

	classes, err := r.drugClasses(ctx, rxcui)
	if err == nil {
		identification.Classes = classes
	}

	return identification, nil
}

// drugClasses returns the therapeutic classes RxClass records for an RxCUI.
func (r *RxNormClient) drugClasses(ctx context.Context, rxcui string) ([]string, error) {
	if err := r.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	var resp classResponse
	params := url.Values{}
	params.Set("rxcui", rxcui)
	if err := r.getJSON(ctx, "/rxclass/class/byRxcui.json?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("failed to query drug classes: %w", err)
	}

	seen := make(map[string]bool)
	var classes []string
	for _, info := range resp.RxClassDrugInfoList.RxClassDrugInfo {
		name := info.RxClassMinConceptItem.ClassName
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		classes = append(classes, name)
	}
	return classes, nil
}

// Formulations returns the marketed strengths RxNorm knows for a drug name.
func (r *RxNormClient) Formulations(ctx context.Context, drugName string) ([]domain.Formulation, error) {
	identification, err := r.Identify(ctx, drugName)
	if err != nil {
		return nil, err
	}

	if err := r.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	var resp relatedResponse
	path := fmt.Sprintf("/rxcui/%s/related.json?tty=SCD+SBD", url.PathEscape(identification.RxCUI))
	if err := r.getJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("failed to query formulations: %w", err)
	}

	seen := make(map[string]bool)
	var formulations []domain.Formulation
	for _, group := range resp.RelatedGroup.ConceptGroup {
		for _, concept := range group.ConceptProperties {
			strength := extractStrength(concept.Name)
			if strength == "" || seen[strength] {
				continue
			}
			seen[strength] = true
			formulations = append(formulations, domain.Formulation{Strength: strength})
		}
	}
	return formulations, nil
}

// extractStrength pulls the "N MG" token pair out of an RxNorm concept name
// such as "semaglutide 2.4 MG in 0.75 ML Auto-Injector [Wegovy]".
func extractStrength(conceptName string) string {
	fields := strings.Fields(conceptName)
	for i := 0; i < len(fields)-1; i++ {
		unit := strings.ToUpper(fields[i+1])
		if unit != "MG" && unit != "MG/ML" && unit != "MCG" {
			continue
		}
		if !strings.ContainsAny(fields[i], "0123456789") {
			continue
		}
		return fields[i] + " " + strings.ToLower(unit)
	}
	return ""
}

// getJSON performs a GET request against the RxNav API and decodes the JSON body.
func (r *RxNormClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

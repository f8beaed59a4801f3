// Package advisor is the HTTP client for the generative safety layer. The
// remote service receives the candidate medication and returns additional
// warnings the static rule table does not cover.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/medsafety/internal/domain/safety"
)

const DefaultTimeout = 8 * time.Second

type Client struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
	logger     zerolog.Logger
}

func New(url string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		logger:     logger.With().Str("component", "advisor-client").Logger(),
	}
}

var _ safety.Advisor = (*Client)(nil)

type suggestRequest struct {
	PatientID           string           `json:"patient_id"`
	Medication          safety.Candidate `json:"medication"`
	ExcludeMedicationID string           `json:"exclude_medication_id,omitempty"`
}

type suggestResponse struct {
	Warnings []struct {
		Type                  string `json:"type"`
		Severity              string `json:"severity"`
		Message               string `json:"message"`
		Details               string `json:"details"`
		Recommendation        string `json:"recommendation"`
		ConflictingMedication string `json:"conflicting_medication"`
		Allergen              string `json:"allergen"`
	} `json:"warnings"`
}

var knownTypes = map[string]safety.WarningType{
	string(safety.TypeDuplicateTherapy): safety.TypeDuplicateTherapy,
	string(safety.TypeDrugInteraction):  safety.TypeDrugInteraction,
	string(safety.TypeAllergyAlert):     safety.TypeAllergyAlert,
}

// SuggestAdditionalWarnings posts the candidate to the advisor service.
// Suggestions with an unknown type or severity are dropped.
func (c *Client) SuggestAdditionalWarnings(ctx context.Context, patientID uuid.UUID, entry safety.Candidate, excludeID *uuid.UUID) ([]safety.Warning, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqBody := suggestRequest{PatientID: patientID.String(), Medication: entry}
	if excludeID != nil {
		reqBody.ExcludeMedicationID = excludeID.String()
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call advisor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("advisor returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var body suggestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode advisor response: %w", err)
	}

	out := make([]safety.Warning, 0, len(body.Warnings))
	for _, w := range body.Warnings {
		typ, ok := knownTypes[strings.ToLower(strings.TrimSpace(w.Type))]
		if !ok {
			c.logger.Debug().Str("type", w.Type).Msg("dropping suggestion with unknown type")
			continue
		}
		sev, err := safety.ParseSeverity(w.Severity)
		if err != nil {
			c.logger.Debug().Str("severity", w.Severity).Msg("dropping suggestion with unknown severity")
			continue
		}
		out = append(out, safety.Warning{
			Type:                  typ,
			Severity:              sev,
			Message:               w.Message,
			Details:               w.Details,
			Recommendation:        w.Recommendation,
			ConflictingMedication: w.ConflictingMedication,
			Allergen:              w.Allergen,
			Source:                safety.SourceAI,
		})
	}
	return out, nil
}

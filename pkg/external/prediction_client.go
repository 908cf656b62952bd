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

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"

	"github.com/acmg-amp-rating/internal/domain"
)

// PredictionClient queries one automated ACMG/AMP prediction service.
//
// The service answers GET {base}/predict?variant=... with
// {"variant": "...", "criteria": [{"criteria": "Pvs1", "presence": "Present", "evidence": "Pathogenic Very Strong"}]}.
type PredictionClient struct {
	source     domain.Source
	baseURL    string
	httpClient *http.Client
	caller     *resilientCaller
	logger     *logrus.Logger
}

type predictionResponse struct {
	Variant  string          `json:"variant"`
	Criteria []wireCriterion `json:"criteria"`
}

// NewPredictionClient creates a client for the automated source.
func NewPredictionClient(source domain.Source, config domain.PredictionSourceConfig, logger *logrus.Logger) (*PredictionClient, error) {
	if !source.IsAutomated() {
		return nil, fmt.Errorf("%w: %q is not an automated source", domain.ErrUnknownSource, source)
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("%s base URL is required", source)
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}

	return &PredictionClient{
		source:  source,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		caller: newResilientCaller(predictionServices[source], config.RateLimit, config.RetryCount,
			DefaultCircuitBreakerConfig(), logger),
		logger: logger,
	}, nil
}

// NewPredictionSources creates a client for every service with a configured base URL,
// in automated precedence order.
func NewPredictionSources(config domain.AnnotationConfig, logger *logrus.Logger) ([]domain.PredictionSource, error) {
	configured := map[domain.Source]domain.PredictionSourceConfig{
		domain.SourceInterVar: config.InterVar,
		domain.SourceAutoACMG: config.AutoACMG,
		domain.SourceAutoPVS1: config.AutoPVS1,
	}

	var sources []domain.PredictionSource
	for _, src := range domain.AutomatedSources() {
		cfg := configured[src]
		if cfg.BaseURL == "" {
			continue
		}
		client, err := NewPredictionClient(src, cfg, logger)
		if err != nil {
			return nil, err
		}
		sources = append(sources, client)
	}
	return sources, nil
}

// Source implements domain.PredictionSource.
func (c *PredictionClient) Source() domain.Source {
	return c.source
}

// Predict returns the judgments the service makes for variant. Criteria the service does
// not report are simply absent from the result.
func (c *PredictionClient) Predict(ctx context.Context, variant string) ([]domain.Judgment, error) {
	id, err := domain.ParseVariantID(variant)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/predict?variant=%s", c.baseURL, url.QueryEscape(id.String()))

	var body predictionResponse
	err = c.caller.do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	judgments := make([]domain.Judgment, 0, len(body.Criteria))
	for _, wc := range body.Criteria {
		rc, err := decodeCriterion(wc)
		if err != nil {
			return nil, fmt.Errorf("%s prediction for %s: %w", c.source, variant, err)
		}
		judgments = append(judgments, domain.Judgment{
			Source:   c.source,
			Code:     rc.Code,
			Presence: rc.Presence,
			Strength: rc.Strength,
		})
	}

	c.logger.WithFields(logrus.Fields{
		"source":    c.source.String(),
		"variant":   variant,
		"judgments": len(judgments),
	}).Debug("Received automated prediction")

	return judgments, nil
}

// Health reports the circuit breaker state of the service.
func (c *PredictionClient) Health() ServiceHealth {
	return c.caller.health()
}

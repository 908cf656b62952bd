package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"

	"github.com/acmg-amp-rating/internal/domain"
)

// RatingClient stores rating records in the remote rating backend.
//
// Sequence variants use the /acmgSeqvar/{get,create,update,delete,list} endpoints with a
// seqvar query parameter, structural variants the /acmgStrucvar ones with strucvar.
type RatingClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	caller     *resilientCaller
	logger     *logrus.Logger
}

// NewRatingClient creates a new rating backend client
func NewRatingClient(config domain.RatingBackendConfig, logger *logrus.Logger) (*RatingClient, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("rating backend base URL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid rating backend URL: %w", err)
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10
	}

	return &RatingClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		token:   config.Token,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		caller: newResilientCaller(ServiceTypeRatingBackend, config.RateLimit, config.RetryCount,
			DefaultCircuitBreakerConfig(), logger),
		logger: logger,
	}, nil
}

// Create stores a new rating. The backend answers 409 when one already exists.
func (c *RatingClient) Create(ctx context.Context, variant string, record *domain.RatingRecord) error {
	return c.write(ctx, http.MethodPost, "create", variant, record)
}

// Update replaces an existing rating.
func (c *RatingClient) Update(ctx context.Context, variant string, record *domain.RatingRecord) error {
	return c.write(ctx, http.MethodPut, "update", variant, record)
}

// Fetch retrieves the rating of variant.
func (c *RatingClient) Fetch(ctx context.Context, variant string) (*domain.RatingRecord, error) {
	endpoint, err := c.endpoint("get", variant)
	if err != nil {
		return nil, err
	}

	var body wireRating
	if err := c.roundTrip(ctx, http.MethodGet, endpoint, nil, &body); err != nil {
		return nil, c.translate("fetch", variant, err)
	}

	record, err := decodeRating(&body)
	if err != nil {
		return nil, fmt.Errorf("rating for %s: %w", variant, err)
	}
	return record, nil
}

// Delete removes the rating of variant.
func (c *RatingClient) Delete(ctx context.Context, variant string) error {
	endpoint, err := c.endpoint("delete", variant)
	if err != nil {
		return err
	}
	if err := c.roundTrip(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return c.translate("delete", variant, err)
	}
	return nil
}

// List pages through the sequence variant ratings held by the backend.
func (c *RatingClient) List(ctx context.Context, opts domain.ListOptions) ([]*domain.StoredRating, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	endpoint := c.baseURL + "/acmgSeqvar/list"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var body []wireListedRating
	if err := c.roundTrip(ctx, http.MethodGet, endpoint, nil, &body); err != nil {
		return nil, c.translate("list", "", err)
	}

	out := make([]*domain.StoredRating, 0, len(body))
	for _, entry := range body {
		variant := entry.Seqvar
		if variant == "" {
			variant = entry.Strucvar
		}
		record, err := decodeRating(&entry.wireRating)
		if err != nil {
			return nil, fmt.Errorf("rating for %s: %w", variant, err)
		}
		out = append(out, &domain.StoredRating{Variant: variant, Record: *record})
	}
	return out, nil
}

// Count returns the number of ratings the backend lists.
func (c *RatingClient) Count(ctx context.Context) (int, error) {
	all, err := c.List(ctx, domain.ListOptions{})
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

// Health reports the circuit breaker state of the backend.
func (c *RatingClient) Health() ServiceHealth {
	return c.caller.health()
}

func (c *RatingClient) write(ctx context.Context, method, action, variant string, record *domain.RatingRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	endpoint, err := c.endpoint(action, variant)
	if err != nil {
		return err
	}
	payload, err := encodeRating(record)
	if err != nil {
		return err
	}
	if err := c.roundTrip(ctx, method, endpoint, payload, nil); err != nil {
		return c.translate(action, variant, err)
	}

	c.logger.WithFields(logrus.Fields{
		"variant":  variant,
		"action":   action,
		"criteria": len(record.Criteria),
	}).Debug("Rating written to backend")
	return nil
}

func (c *RatingClient) endpoint(action, variant string) (string, error) {
	id, err := domain.ParseVariantID(variant)
	if err != nil {
		return "", err
	}
	resource, param := "acmgSeqvar", "seqvar"
	if id.Kind == domain.STRUCTURAL_VARIANT {
		resource, param = "acmgStrucvar", "strucvar"
	}
	return fmt.Sprintf("%s/%s/%s?%s=%s", c.baseURL, resource, action, param, url.QueryEscape(id.String())), nil
}

// roundTrip sends body as JSON (when not nil) and decodes a 2xx answer into out (when not nil).
func (c *RatingClient) roundTrip(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	return c.caller.do(ctx, func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	})
}

// translate maps backend answers onto the store contract. 404 and 409 become the domain
// sentinels, everything else a PersistenceError carrying the status code.
func (c *RatingClient) translate(op, variant string, err error) error {
	var se *StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("rating for %s: %w", variant, domain.ErrNotFound)
		case http.StatusConflict:
			return fmt.Errorf("rating for %s: %w", variant, domain.ErrAlreadyExists)
		}
		return domain.NewPersistenceError(op, variant, se.StatusCode, err)
	}
	return domain.NewPersistenceError(op, variant, 0, err)
}

package inference

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"clinic-session-service/internal/models"
	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/go-resty/resty/v2"
)

// Label recorded when the model could not be reached.
const UnknownLabel = "Unknown"

type Prediction struct {
	Prediction  string                 `json:"prediction"`
	Probability float64                `json:"probability"`
	Confidence  float64                `json:"confidence"`
	InputUsed   models.SessionAverages `json:"input_used"`
}

// Unknown is the degraded outcome stored when inference fails.
func Unknown() Prediction {
	return Prediction{Prediction: UnknownLabel}
}

type Client struct {
	http *resty.Client
	log  *slog.Logger
}

// New builds a client for the predictive model. Requests are not retried:
// the session must be able to end promptly even when the model is down.
func New(log *slog.Logger, baseURL string, timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http: client,
		log:  log.With(slog.String("component", "inference")),
	}
}

// Predict sends the nine session features. Any transport failure, timeout or
// non-2xx answer is reported as response.ErrInferenceUnavailable.
func (c *Client) Predict(ctx context.Context, features models.SessionAverages) (Prediction, error) {
	const op = "inference.Client.Predict"

	var out Prediction

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(features).
		SetResult(&out).
		Post("/api/predict")
	if err != nil {
		c.log.Warn("inference request failed", slog.String("op", op), sl.Err(err))
		return Unknown(), fmt.Errorf("%s: %w: %v", op, response.ErrInferenceUnavailable, err)
	}

	if resp.IsError() {
		c.log.Warn("inference returned error status",
			slog.String("op", op),
			slog.Int("status_code", resp.StatusCode()),
		)
		return Unknown(), fmt.Errorf("%s: status %d: %w", op, resp.StatusCode(), response.ErrInferenceUnavailable)
	}

	if out.Prediction == "" {
		return Unknown(), fmt.Errorf("%s: empty prediction: %w", op, response.ErrInferenceUnavailable)
	}

	return out, nil
}

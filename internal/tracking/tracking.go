// Package tracking forwards unexpected errors to an external collector.
package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"linkfolio/internal/config"
	applog "linkfolio/internal/log"
)

// Reporter receives unexpected errors.
type Reporter interface {
	Report(ctx context.Context, err error, attrs map[string]string)
}

// New returns a webhook reporter when an endpoint is configured, otherwise Noop.
func New(cfg config.TrackingConfig) Reporter {
	if cfg.Enabled() {
		return NewHTTPReporter(cfg.Endpoint)
	}
	return Noop{}
}

// Noop discards every report.
type Noop struct{}

func (Noop) Report(context.Context, error, map[string]string) {}

// Event is the JSON document posted to the collector.
type Event struct {
	Message    string            `json:"message"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// HTTPReporter posts events to a webhook. Delivery failures are logged and dropped.
type HTTPReporter struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPReporter(endpoint string) *HTTPReporter {
	return &HTTPReporter{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 3 * time.Second},
	}
}

func (h *HTTPReporter) Report(ctx context.Context, err error, attrs map[string]string) {
	if err == nil {
		return
	}
	if sendErr := h.send(ctx, Event{Message: err.Error(), Attributes: attrs, Timestamp: time.Now().UTC()}); sendErr != nil {
		applog.Warn(ctx, "failed to report error", "error", sendErr)
	}
}

func (h *HTTPReporter) send(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// Detach from request cancellation so a client disconnect does not drop the report.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.Client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("collector responded with %d", resp.StatusCode)
	}
	return nil
}

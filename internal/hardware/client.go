// Package hardware talks to the serial sensor bridge that exposes the
// thermometer and heart-rate board over HTTP.
package hardware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"clinic-session-service/pkg/response"
	"clinic-session-service/pkg/sl"

	"github.com/go-resty/resty/v2"
)

type State struct {
	BodyTemp *float64 `json:"body_temp"`
}

type Port struct {
	Device      string `json:"device"`
	Description string `json:"description"`
	LikelyESP32 bool   `json:"likely_esp32"`
}

type Ports struct {
	Ports        []Port  `json:"ports"`
	SerialStatus string  `json:"serial_status"`
	Connected    bool    `json:"connected"`
	Current      *string `json:"current"`
}

type Selection struct {
	Success   bool   `json:"success"`
	Port      string `json:"port"`
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
}

type bridgeError struct {
	Error string `json:"error"`
}

type Client struct {
	http *resty.Client
	log  *slog.Logger
}

func New(log *slog.Logger, baseURL string, timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http: client,
		log:  log.With(slog.String("component", "hardware")),
	}
}

// State returns the latest sensor reading.
func (c *Client) State(ctx context.Context) (State, error) {
	const op = "hardware.Client.State"

	var out State

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/state")
	if err := c.check(op, resp, err); err != nil {
		return State{}, err
	}

	return out, nil
}

// Ports lists the serial ports and the bridge's connection status.
func (c *Client) Ports(ctx context.Context) (Ports, error) {
	const op = "hardware.Client.Ports"

	var out Ports

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/ports")
	if err := c.check(op, resp, err); err != nil {
		return Ports{}, err
	}

	if out.Ports == nil {
		out.Ports = []Port{}
	}

	return out, nil
}

// Connected reports whether the bridge currently holds an open serial link.
func (c *Client) Connected(ctx context.Context) (bool, error) {
	p, err := c.Ports(ctx)
	if err != nil {
		return false, err
	}

	return p.Connected, nil
}

// SelectPort asks the bridge to (re)open the given port. "SIMULATOR" is
// accepted by the bridge as a synthetic source.
func (c *Client) SelectPort(ctx context.Context, port string) (Selection, error) {
	const op = "hardware.Client.SelectPort"

	var out Selection
	var failure bridgeError

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"port": port}).
		SetResult(&out).
		SetError(&failure).
		Post("/api/ports/select")
	if err != nil {
		c.log.Error("bridge request failed", slog.String("op", op), sl.Err(err))
		return Selection{}, fmt.Errorf("%s: %w: %v", op, response.ErrHardwareUnavailable, err)
	}

	if resp.IsError() || !out.Success {
		msg := failure.Error
		if msg == "" {
			msg = resp.Status()
		}

		c.log.Warn("bridge rejected port",
			slog.String("op", op),
			slog.String("port", port),
			slog.String("reason", msg),
		)

		return Selection{}, fmt.Errorf("%s: %w: %s", op, response.ErrHardwareUnavailable, msg)
	}

	return out, nil
}

func (c *Client) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		c.log.Error("bridge request failed", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w: %v", op, response.ErrHardwareUnavailable, err)
	}

	if resp.IsError() {
		c.log.Error("bridge returned error status",
			slog.String("op", op),
			slog.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("%s: status %d: %w", op, resp.StatusCode(), response.ErrHardwareUnavailable)
	}

	return nil
}

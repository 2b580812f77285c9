// Package controlplane talks to the wipe control-plane server: registration,
// command polling and status reporting over HTTP/JSON.
package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/securewipe/wipe-agent/pkg/errors"
)

var (
	// ErrRegistration marks a failed registration. Fatal for the run.
	ErrRegistration = errors.New("registration failed")
	// ErrPoll marks a failed status poll. Transient.
	ErrPoll = errors.New("poll failed")
)

const (
	DefaultPollInterval   = 5 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// Config holds the endpoint and timing the client is built with.
type Config struct {
	BaseURL        string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	// DefaultTarget is used when a wipe command omits target_drive.
	DefaultTarget string
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient builds the resty client on top of hc instead of a fresh
// http.Client. The configured request timeout is applied to hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSleep replaces the delay used between polls.
func WithSleep(fn SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

// Client is the agent side of the control channel.
type Client struct {
	baseURL       string
	pollInterval  time.Duration
	defaultTarget string
	httpClient    *http.Client
	rest          *resty.Client
	sleep         SleepFunc
}

// NewClient creates a control-plane client for cfg.BaseURL.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	c := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		pollInterval:  cfg.PollInterval,
		defaultTarget: cfg.DefaultTarget,
		sleep:         sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient != nil {
		c.rest = resty.NewWithClient(c.httpClient)
	} else {
		c.rest = resty.New()
	}
	c.rest.
		SetBaseURL(c.baseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("Accept", "application/json")

	slog.Info("control_plane_client_init", "base_url", c.baseURL, "poll_interval", c.pollInterval)
	return c
}

// PollInterval returns the delay between polls.
func (c *Client) PollInterval() time.Duration {
	return c.pollInterval
}

// Register announces machineID to the server. Anything but HTTP 200 is an
// ErrRegistration; the caller must not retry at this layer.
func (c *Client) Register(ctx context.Context, machineID string) error {
	slog.Info("register_start", "machine_id", machineID, "server", c.baseURL)

	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(RegisterRequest{MachineID: machineID}).
		Post("/agent/register")
	if err != nil {
		slog.Error("register_unreachable", "server", c.baseURL, "error", err)
		return errors.Mark(errors.Wrapf(err, "could not connect to %s", c.baseURL), ErrRegistration)
	}

	if resp.StatusCode() != http.StatusOK {
		slog.Error("register_rejected", "machine_id", machineID, "status_code", resp.StatusCode())
		return errors.Mark(fmt.Errorf("server responded with %d", resp.StatusCode()), ErrRegistration)
	}

	slog.Info("register_complete", "machine_id", machineID)
	return nil
}

// statusReply is the lenient decoding of StatusResponse. A target_drive that
// is not a JSON string is kept as its raw text so the safety gate sees it.
type statusReply struct {
	Command     json.RawMessage `json:"command"`
	TargetDrive json.RawMessage `json:"target_drive"`
}

// PollCommand performs one status request. A non-200 response, transport
// error or undecodable body is an ErrPoll. A body without a wipe command
// decodes as CommandNone.
func (c *Client) PollCommand(ctx context.Context, machineID string) (Command, error) {
	var body statusReply
	resp, err := c.rest.R().
		SetContext(ctx).
		SetPathParam("machine_id", machineID).
		ForceContentType("application/json").
		SetResult(&body).
		Get("/agent/{machine_id}/status")
	if err != nil {
		return Command{}, errors.Mark(errors.Wrap(err, "connection to server lost"), ErrPoll)
	}

	if resp.StatusCode() != http.StatusOK {
		return Command{}, errors.Mark(fmt.Errorf("server returned status %d", resp.StatusCode()), ErrPoll)
	}
	if len(resp.Body()) == 0 {
		return Command{}, errors.Mark(errors.New("empty status response"), ErrPoll)
	}

	if rawString(body.Command) != string(CommandWipe) {
		return Command{Kind: CommandNone}, nil
	}

	target := rawString(body.TargetDrive)
	if target == "" {
		slog.Warn("wipe_command_without_target", "default_target", c.defaultTarget)
		target = c.defaultTarget
	}
	return Command{Kind: CommandWipe, Target: target}, nil
}

// rawString returns the string held by raw, or the raw JSON text for any
// other non-null value.
func rawString(raw json.RawMessage) string {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return text
}

// ReportStatus sends a status report. It is best-effort: failures are
// logged and never returned.
func (c *Client) ReportStatus(ctx context.Context, report StatusReport) {
	slog.Info("report_status", "status", report.Status, "message", report.Message, "drive", report.Drive)

	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(report).
		Post("/agent/report_status")
	if err != nil {
		slog.Warn("report_status_failed", "status", report.Status, "error", err)
		return
	}

	if resp.IsError() {
		slog.Warn("report_status_rejected", "status", report.Status, "status_code", resp.StatusCode())
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

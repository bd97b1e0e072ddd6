// Package hostbridge talks to the 3D host over socket.io and implements
// rig.Builder on top of it.
//
// Every request carries a correlation id; the host answers with a single
// result event echoing that id.
package hostbridge

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
	"go.uber.org/zap"

	"github.com/Benny93/rigweave/internal/rig"
)

// Event names understood by the host plugin.
const (
	EventTemplate = "rig:template"
	EventBuild    = "rig:build"
	EventLink     = "rig:link"
	EventResult   = "rig:result"
)

// ErrHostFailed wraps an error message reported by the host.
var ErrHostFailed = errors.New("host reported failure")

// Config describes how to reach the host.
type Config struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool

	// ConnectTimeout bounds Dial. Zero selects 15s.
	ConnectTimeout time.Duration
}

// request is the payload of every emitted event.
type request struct {
	ID         string         `json:"id"`
	Module     string         `json:"module,omitempty"`
	Operation  string         `json:"operation,omitempty"`
	Identifier string         `json:"identifier,omitempty"`
	Args       map[string]any `json:"args,omitempty"`
	Source     string         `json:"source,omitempty"`
	Target     string         `json:"target,omitempty"`
}

// reply is the payload of EventResult.
type reply struct {
	ID      string   `json:"id"`
	Handles []string `json:"handles,omitempty"`
	Handle  string   `json:"handle,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Client is a rig.Builder backed by a socket.io connection.
type Client struct {
	emit   func(event string, payload any) error
	close  func()
	logger *zap.Logger

	mu      sync.Mutex
	pending map[string]chan reply
}

var _ rig.Builder = (*Client)(nil)

func newClient(emit func(string, any) error, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		emit:    emit,
		close:   func() {},
		logger:  logger,
		pending: make(map[string]chan reply),
	}
}

// Dial connects to the host and waits for the socket.io handshake.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("url", cfg.URL))

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("host URL %q needs a scheme and host", cfg.URL)
	}

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	c := newClient(func(event string, payload any) error {
		if !io.Connected() {
			return errors.New("socket.io client is not connected")
		}
		return io.Emit(event, payload)
	}, logger)
	c.close = func() { io.Disconnect() }

	io.On(types.EventName(EventResult), func(data ...any) {
		c.handleResult(data...)
	})

	connectChan := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to host", zap.Any("sid", io.Id()))
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		connectChan <- connectError(errs...)
	})

	io.Connect()

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return c, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %v waiting for socket.io connection", timeout)
	}
}

// Close disconnects from the host. Requests still waiting fail with
// their context.
func (c *Client) Close() error {
	c.close()
	return nil
}

// Template implements rig.Builder.
func (c *Client) Template(ctx context.Context, req rig.Request) error {
	_, err := c.call(ctx, EventTemplate, request{
		Module: req.Module, Operation: req.Operation, Identifier: req.Identifier, Args: req.Args,
	})
	return err
}

// Build implements rig.Builder.
func (c *Client) Build(ctx context.Context, req rig.Request) ([]string, error) {
	r, err := c.call(ctx, EventBuild, request{
		Module: req.Module, Operation: req.Operation, Identifier: req.Identifier, Args: req.Args,
	})
	if err != nil {
		return nil, err
	}
	return r.Handles, nil
}

// Link implements rig.Builder.
func (c *Client) Link(ctx context.Context, source, target string) (string, error) {
	r, err := c.call(ctx, EventLink, request{Source: source, Target: target})
	if err != nil {
		return "", err
	}
	return r.Handle, nil
}

func (c *Client) call(ctx context.Context, event string, req request) (reply, error) {
	req.ID = uuid.NewString()
	done := make(chan reply, 1)

	c.mu.Lock()
	c.pending[req.ID] = done
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	c.logger.Debug("Emitting event", zap.String("event", event), zap.String("id", req.ID))
	if err := c.emit(event, req); err != nil {
		return reply{}, fmt.Errorf("emitting %s: %w", event, err)
	}

	select {
	case <-ctx.Done():
		return reply{}, fmt.Errorf("waiting for %s reply: %w", event, ctx.Err())
	case r := <-done:
		if r.Error != "" {
			return r, fmt.Errorf("%w: %s", ErrHostFailed, r.Error)
		}
		return r, nil
	}
}

// handleResult routes a result event to the waiting call. Results nobody
// waits for are logged and dropped.
func (c *Client) handleResult(data ...any) {
	if len(data) == 0 {
		c.logger.Warn("Empty result event")
		return
	}
	r, err := decodeReply(data[0])
	if err != nil {
		c.logger.Warn("Malformed result event", zap.Error(err))
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[r.ID]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("Dropping unmatched result", zap.String("id", r.ID))
		return
	}
	select {
	case ch <- r:
	default:
	}
}

func decodeReply(v any) (reply, error) {
	var r reply
	var raw []byte
	switch t := v.(type) {
	case []byte:
		raw = t
	case string:
		raw = []byte(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return r, err
		}
		raw = b
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, err
	}
	if r.ID == "" {
		return r, errors.New("result without id")
	}
	return r, nil
}

// connectError turns a connect_error payload into an error. The payload may
// be empty.
func connectError(payload ...any) error {
	if len(payload) == 0 {
		return errors.New("connection refused by host")
	}
	if err, ok := payload[0].(error); ok && err != nil {
		return err
	}
	return fmt.Errorf("%v", payload[0])
}

package hostbridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/rigweave/internal/rig"
)

// fakeHost answers every emitted request on a separate goroutine, the way
// socket.io delivers events.
type fakeHost struct {
	mu     sync.Mutex
	events []string
	answer func(event string, req request) any
	client *Client
}

func (h *fakeHost) emit(event string, payload any) error {
	req := payload.(request)
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()

	res := h.answer(event, req)
	if res != nil {
		go h.client.handleResult(res)
	}
	return nil
}

func newFakeHost(answer func(string, request) any) (*fakeHost, *Client) {
	h := &fakeHost{answer: answer}
	h.client = newClient(h.emit, nil)
	return h, h.client
}

func TestClient_Build(t *testing.T) {
	t.Parallel()

	var seen request
	_, c := newFakeHost(func(event string, req request) any {
		seen = req
		// Decoded socket.io payloads arrive as generic maps.
		return map[string]any{"id": req.ID, "handles": []any{"a", "b", "c"}}
	})

	handles, err := c.Build(t.Context(), rig.Request{
		Module: "Control", Operation: "Control", Identifier: "ctrl",
		Args: map[string]any{"Colour": "red"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, handles)
	assert.Equal(t, "ctrl", seen.Identifier)
	assert.NotEmpty(t, seen.ID)
	assert.Empty(t, c.pending)
}

func TestClient_TemplateAndLink(t *testing.T) {
	t.Parallel()

	h, c := newFakeHost(func(event string, req request) any {
		switch event {
		case EventLink:
			return `{"id":"` + req.ID + `","handle":"` + req.Source + `_to_` + req.Target + `"}`
		default:
			return []byte(`{"id":"` + req.ID + `"}`)
		}
	})

	require.NoError(t, c.Template(t.Context(), rig.Request{Module: "foot", Operation: "template", Identifier: "foot"}))
	handle, err := c.Link(t.Context(), "x", "y")
	require.NoError(t, err)
	assert.Equal(t, "x_to_y", handle)
	assert.Equal(t, []string{EventTemplate, EventLink}, h.events)
}

func TestClient_HostError(t *testing.T) {
	t.Parallel()

	_, c := newFakeHost(func(event string, req request) any {
		return map[string]any{"id": req.ID, "error": "module IKarms not found"}
	})

	_, err := c.Build(t.Context(), rig.Request{Module: "IKarms"})
	assert.ErrorIs(t, err, ErrHostFailed)
	assert.Contains(t, err.Error(), "IKarms not found")
}

func TestClient_Timeout(t *testing.T) {
	t.Parallel()

	_, c := newFakeHost(func(string, request) any { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Link(ctx, "a", "b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, c.pending)
}

func TestClient_EmitError(t *testing.T) {
	t.Parallel()

	boom := errors.New("not connected")
	c := newClient(func(string, any) error { return boom }, nil)

	err := c.Template(t.Context(), rig.Request{})
	assert.ErrorIs(t, err, boom)
}

func TestClient_UnmatchedAndMalformedResults(t *testing.T) {
	t.Parallel()

	c := newClient(func(string, any) error { return nil }, nil)

	assert.NotPanics(t, func() {
		c.handleResult()
		c.handleResult("not json")
		c.handleResult(map[string]any{"handles": []any{"x"}})
		c.handleResult(map[string]any{"id": "nobody-waits"})
	})
}

func TestDial_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := Dial(t.Context(), Config{URL: "no-scheme"}, nil)
	assert.Error(t, err)
}

func TestConnectError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload []any
		want    string
	}{
		{"Empty", nil, "connection refused by host"},
		{"Error", []any{errors.New("websocket: bad handshake")}, "websocket: bad handshake"},
		{"Message", []any{map[string]any{"message": "denied"}}, "map[message:denied]"},
		{"NilError", []any{nil}, "<nil>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := connectError(tt.payload...)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

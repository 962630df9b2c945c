// Package kurento drives a Kurento Media Server over its JSON-RPC websocket
// protocol and exposes it as a core.MediaEngine.
package kurento

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/jsonrpc2"
	wsstream "github.com/sourcegraph/jsonrpc2/websocket"
)

// Event is the value of an onEvent notification.
type Event struct {
	Object string          `json:"object"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
}

type eventKey struct {
	object string
	typ    string
}

type result struct {
	Value     json.RawMessage `json:"value"`
	SessionID string          `json:"sessionId"`
}

// Client is one JSON-RPC session with the media server.
type Client struct {
	conn *jsonrpc2.Conn

	mu        sync.Mutex
	sessionID string
	handlers  map[eventKey]func(Event)
}

func Dial(ctx context.Context, url string) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{handlers: make(map[eventKey]func(Event))}
	c.conn = jsonrpc2.NewConn(context.Background(), wsstream.NewObjectStream(ws), jsonrpc2.HandlerWithError(c.handle))
	log.Info().Str("module", "kurento").Str("url", url).Msg("connected to media server")
	return c, nil
}

func (c *Client) handle(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	if req.Method != "onEvent" {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: req.Method}
	}
	if req.Params == nil {
		return nil, nil
	}
	var params struct {
		Value Event `json:"value"`
	}
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		log.Warn().Err(err).Str("module", "kurento").Msg("bad event payload")
		return nil, nil
	}
	ev := params.Value
	c.mu.Lock()
	fn := c.handlers[eventKey{ev.Object, ev.Type}]
	c.mu.Unlock()
	if fn == nil {
		log.Debug().Str("module", "kurento").Str("object", ev.Object).Str("type", ev.Type).Msg("unhandled event")
		return nil, nil
	}
	fn(ev)
	return nil, nil
}

func (c *Client) call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.sessionID != "" {
		params["sessionId"] = c.sessionID
	}
	c.mu.Unlock()

	var res result
	if err := c.conn.Call(ctx, method, params, &res); err != nil {
		return nil, fmt.Errorf("kurento %s: %w", method, err)
	}
	if res.SessionID != "" {
		c.mu.Lock()
		c.sessionID = res.SessionID
		c.mu.Unlock()
	}
	return res.Value, nil
}

// Create builds a media object and returns its id.
func (c *Client) Create(ctx context.Context, typ string, constructorParams map[string]any) (string, error) {
	if constructorParams == nil {
		constructorParams = map[string]any{}
	}
	raw, err := c.call(ctx, "create", map[string]any{
		"type":              typ,
		"constructorParams": constructorParams,
		"properties":        map[string]any{},
	})
	if err != nil {
		return "", err
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", fmt.Errorf("kurento create %s: bad object id: %w", typ, err)
	}
	return id, nil
}

// Invoke runs operation on object and returns the raw result value.
func (c *Client) Invoke(ctx context.Context, object, operation string, operationParams map[string]any) (json.RawMessage, error) {
	params := map[string]any{"object": object, "operation": operation}
	if operationParams != nil {
		params["operationParams"] = operationParams
	}
	return c.call(ctx, "invoke", params)
}

// Subscribe registers fn for events of type typ raised by object.
func (c *Client) Subscribe(ctx context.Context, object, typ string, fn func(Event)) error {
	key := eventKey{object, typ}
	c.mu.Lock()
	c.handlers[key] = fn
	c.mu.Unlock()
	if _, err := c.call(ctx, "subscribe", map[string]any{"object": object, "type": typ}); err != nil {
		c.mu.Lock()
		delete(c.handlers, key)
		c.mu.Unlock()
		return err
	}
	return nil
}

// Release frees object on the server and drops its event handlers.
func (c *Client) Release(ctx context.Context, object string) error {
	c.mu.Lock()
	for key := range c.handlers {
		if key.object == object {
			delete(c.handlers, key)
		}
	}
	c.mu.Unlock()
	_, err := c.call(ctx, "release", map[string]any{"object": object})
	return err
}

// Ping keeps the server-side session alive for interval.
func (c *Client) Ping(ctx context.Context, intervalMillis int64) error {
	_, err := c.call(ctx, "ping", map[string]any{"interval": intervalMillis})
	return err
}

// Done is closed when the connection to the server is lost.
func (c *Client) Done() <-chan struct{} { return c.conn.DisconnectNotify() }

func (c *Client) Close() error { return c.conn.Close() }

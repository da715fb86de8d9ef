package sensorsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Sosiggg/EnviroSense/internal/domain"
	"github.com/Sosiggg/EnviroSense/internal/infra/logging"
	"github.com/Sosiggg/EnviroSense/internal/infra/transport/gateway"
	"github.com/Sosiggg/EnviroSense/internal/repo/credential"
)

const (
	streamPath       = "/api/v1/sensor/ws"
	handshakeTimeout = 10 * time.Second

	// readingBufferSize bounds the delivery channel. When the consumer lags
	// behind, new readings are dropped and counted rather than blocking the
	// read loop.
	readingBufferSize = 64
)

var (
	// ErrNilGateway indicates the client was constructed without a gateway.
	ErrNilGateway = errors.New("nil gateway")

	// ErrNilCredentialStore indicates the client was constructed without a credential store.
	ErrNilCredentialStore = errors.New("nil credential store")

	// ErrNilBus indicates the client was constructed without an invalidation bus.
	ErrNilBus = errors.New("nil invalidation bus")

	// ErrAlreadyConnected indicates Dial was called on a connected client.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrClientClosed indicates Dial was called on a closed client.
	ErrClientClosed = errors.New("client closed")
)

// StreamClient consumes the live sensor reading stream over a WebSocket.
//
// The server authenticates the handshake via a token query parameter because
// browser WebSocket clients cannot set request headers; this client uses the
// same contract. A policy violation close (code 1008) means the token was
// rejected mid-stream and is handled like an HTTP 401: the stored credential
// is discarded and an invalidation is published.
//
// The client does not reconnect. Callers observe the end of the stream by the
// Readings channel closing and inspect Err for the cause.
type StreamClient struct {
	Gateway *gateway.Gateway
	Store   credential.Repository
	Bus     *gateway.Bus
	Log     logging.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	readings chan domain.SensorReading
	dropped  atomic.Uint64

	ctx    context.Context //nolint:containedctx // governs the read loop started by Dial
	cancel context.CancelFunc
	closed atomic.Bool

	errMu   sync.Mutex
	readErr error
}

// NewStreamClient creates a sensor stream client. Returns an error if any
// dependency is nil.
func NewStreamClient(gw *gateway.Gateway, store credential.Repository, bus *gateway.Bus) (*StreamClient, error) {
	log := logging.GetLogger("svc.sensorsvc.stream_client")

	if gw == nil {
		return nil, ErrNilGateway
	}

	if store == nil {
		return nil, ErrNilCredentialStore
	}

	if bus == nil {
		return nil, ErrNilBus
	}

	return &StreamClient{
		Gateway:  gw,
		Store:    store,
		Bus:      bus,
		Log:      log,
		readings: make(chan domain.SensorReading, readingBufferSize),
	}, nil
}

// Dial connects to the sensor stream using the stored credential and starts
// the read loop. The given context governs both the handshake and the
// lifetime of the stream. Returns domain.ErrNotAuthenticated when no
// credential is stored.
func (c *StreamClient) Dial(ctx context.Context) (err error) {
	log := c.Log

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "dial sensor stream failed", "error", err)
		} else {
			log.DebugContext(ctx, "sensor stream connected", "path", streamPath)
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return ErrClientClosed
	}

	if c.conn != nil {
		return ErrAlreadyConnected
	}

	cred, ok, err := c.Store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}

	if !ok {
		return domain.ErrNotAuthenticated
	}

	wsURL, err := c.Gateway.WebSocketURL(streamPath)
	if err != nil {
		return fmt.Errorf("resolve stream url: %w", err)
	}

	wsURL += "?" + url.Values{"token": {cred.Token}}.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout} //nolint:exhaustruct

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			c.invalidate(ctx, gateway.ReasonAuthorizationFailed, resp.StatusCode)
		}

		// The URL carries the token; report the path only.
		return fmt.Errorf("dial %s: %w", streamPath, err)
	}

	c.conn = conn
	c.ctx, c.cancel = context.WithCancel(ctx)

	go c.watchContext()
	go c.readLoop()

	return nil
}

// watchContext tears the connection down when the stream context ends.
// ReadMessage does not observe contexts, so cancellation must close the
// connection to unblock the read loop.
func (c *StreamClient) watchContext() {
	<-c.ctx.Done()

	if c.closed.Load() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Readings returns the channel of decoded sensor readings. The channel is
// closed when the stream ends; Err reports why.
func (c *StreamClient) Readings() <-chan domain.SensorReading {
	return c.readings
}

// Err returns the failure that ended the stream, or nil after an orderly
// shutdown.
func (c *StreamClient) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	return c.readErr
}

// Dropped returns the number of readings discarded because the consumer fell
// behind.
func (c *StreamClient) Dropped() uint64 {
	return c.dropped.Load()
}

// Close performs an orderly shutdown: it announces the closure to the server,
// tears down the connection and stops the read loop. Safe to call multiple
// times and before Dial.
func (c *StreamClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		close(c.readings)

		return nil
	}

	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	err := c.conn.Close()
	c.cancel()

	if err != nil {
		return fmt.Errorf("close connection: %w", err)
	}

	return nil
}

// readLoop decodes reading frames until the connection ends. Malformed frames
// are dropped; a full delivery channel drops the newest reading.
func (c *StreamClient) readLoop() {
	defer close(c.readings)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)

			return
		}

		var reading domain.SensorReading
		if err := json.Unmarshal(data, &reading); err != nil {
			c.Log.WarnContext(c.ctx, "drop malformed frame", "error", err)

			continue
		}

		select {
		case c.readings <- reading:
		default:
			c.dropped.Add(1)
		}
	}
}

// handleReadError classifies the error that ended the read loop. Orderly
// closes and local shutdowns are not failures; a policy violation close is
// the in-stream analog of an HTTP 401 and invalidates the session.
func (c *StreamClient) handleReadError(err error) {
	if c.closed.Load() || c.ctx.Err() != nil ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}

	c.errMu.Lock()
	c.readErr = err
	c.errMu.Unlock()

	if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		c.invalidate(c.ctx, gateway.ReasonStreamPolicyViolation, websocket.ClosePolicyViolation)

		return
	}

	c.Log.WarnContext(c.ctx, "sensor stream ended", "error", err)
}

// invalidate discards the stored credential and announces the rejected
// session, mirroring the HTTP session guard.
func (c *StreamClient) invalidate(ctx context.Context, reason string, status int) {
	if err := c.Store.Clear(ctx); err != nil {
		c.Log.ErrorContext(ctx, "clear credential failed", "error", err)
	}

	c.Bus.Publish(ctx, gateway.Invalidation{
		Reason: reason,
		Status: status,
		Path:   streamPath,
		At:     time.Now(),
	})

	c.Log.WarnContext(ctx, "session invalidated", "reason", reason)
}

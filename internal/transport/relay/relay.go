// Package relay connects a device to a topic on the websocket relay. Frames
// are sealed with the shared sync key before they leave the device.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"noteenvelope-sync/internal/transport"
	relayws "noteenvelope-sync/internal/websocket"
	"noteenvelope-sync/pkg/jwt"
	"noteenvelope-sync/pkg/seal"

	"github.com/gorilla/websocket"
)

type Config struct {
	URL        string
	DeviceID   string
	Box        *seal.Box
	Secret     string
	TokenTTL   time.Duration
	MinBackoff time.Duration
	MaxBackoff time.Duration
	WriteWait  time.Duration
	Buffer     int
	Logger     *slog.Logger
}

// Client is a transport.Transport over one relay connection that redials
// until its Run context is cancelled.
type Client struct {
	cfg     Config
	inbound chan []byte
	logger  *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

var _ transport.Transport = (*Client)(nil)

func New(cfg Config) *Client {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		inbound: make(chan []byte, cfg.Buffer),
		logger:  logger.With("component", "relay_client", "topic", cfg.Box.Topic()),
	}
}

func (c *Client) Topic() string {
	return c.cfg.Box.Topic()
}

// Run keeps a connection open until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.cfg.MinBackoff
	for {
		conn, err := c.dial(ctx)
		if err == nil {
			c.logger.Info("connected to relay")
			backoff = c.cfg.MinBackoff
			c.serve(ctx, conn)
			c.logger.Info("disconnected from relay")
		} else if ctx.Err() == nil {
			c.logger.Warn("relay dial failed", "error", err, "retry_in", backoff)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.cfg.MaxBackoff)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	token, err := jwt.GenerateToken(c.cfg.DeviceID, c.Topic(), c.cfg.TokenTTL, c.cfg.Secret)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay url: %w", err)
	}
	q := u.Query()
	q.Set("topic", c.Topic())
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("relay rejected connection (%s): %w", resp.Status, err)
		}
		return nil, err
	}
	return conn, nil
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	done := make(chan struct{})
	defer func() {
		close(done)
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("relay read failed", "error", err)
			}
			return
		}

		plaintext, err := c.open(message)
		if err != nil {
			c.logger.Warn("dropping relay frame", "error", err)
			continue
		}
		select {
		case c.inbound <- plaintext:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) open(message []byte) ([]byte, error) {
	frame, err := relayws.ParseFrame(message)
	if err != nil {
		return nil, err
	}
	return c.cfg.Box.Open(frame.Sealed, []byte(frame.Sender))
}

func (c *Client) Publish(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return transport.ErrUnavailable
	}

	sealed, err := c.cfg.Box.Seal(data, []byte(c.cfg.DeviceID))
	if err != nil {
		return fmt.Errorf("failed to seal frame: %w", err)
	}
	message, err := relayws.NewFrame(c.cfg.DeviceID, sealed).Marshal()
	if err != nil {
		return err
	}

	deadline := time.Now().Add(c.cfg.WriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return transport.ErrUnavailable
		}
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

func (c *Client) Inbound() <-chan []byte {
	return c.inbound
}

func (c *Client) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

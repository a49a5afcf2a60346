package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Handler receives the raw payload of a message.
type Handler func(subject string, data []byte)

// Options configure the NATS connection.
type Options struct {
	URL           string
	Token         string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "trustfit"
	}
	if o.MaxReconnects == 0 {
		o.MaxReconnects = 60
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	return o
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	opts = opts.withDefaults()
	c := &Client{logger: logger}

	natsOpts := []nats.Option{
		nats.Name(opts.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.DisconnectErrHandler(c.onDisconnect),
		nats.ReconnectHandler(c.onReconnect),
		nats.ErrorHandler(c.onAsyncError),
	}
	if opts.Token != "" {
		natsOpts = append(natsOpts, nats.Token(opts.Token))
	}

	nc, err := nats.Connect(opts.URL, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	if err := ctx.Err(); err != nil {
		nc.Close()
		return nil, err
	}
	c.conn = nc
	return c, nil
}

func (c *Client) onDisconnect(_ *nats.Conn, err error) {
	if err != nil {
		c.logger.Warn("nats disconnected", "error", err)
	}
}

func (c *Client) onReconnect(nc *nats.Conn) {
	c.logger.Info("nats reconnected", "url", nc.ConnectedUrl())
}

func (c *Client) onAsyncError(_ *nats.Conn, sub *nats.Subscription, err error) {
	subject := ""
	if sub != nil {
		subject = sub.Subject
	}
	c.logger.Error("nats async error", "subject", subject, "error", err)
}

// Connected reports whether the connection is currently usable.
func (c *Client) Connected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Publish JSON-encodes data onto subject.
func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", subject, err)
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe delivers messages on subject to handler. NATS invokes the
// handler of one subscription sequentially, which keeps per-session
// observations in arrival order.
func (c *Client) Subscribe(subject string, handler Handler) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		c.dispatch(handler, msg)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// dispatch runs handler for one message. A panicking handler loses that
// message only; the subscription keeps delivering.
func (c *Client) dispatch(handler Handler, msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panicked", "subject", msg.Subject, "panic", r)
		}
	}()
	handler(msg.Subject, msg.Data)
}

// Close drains subscriptions so in-flight observations finish before the
// connection goes away.
func (c *Client) Close() {
	for _, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			c.logger.Warn("nats drain failed", "subject", sub.Subject, "error", err)
		}
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}

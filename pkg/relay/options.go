package relay

import "github.com/wakuswarm/wakunode/pkg/waku"

type config struct {
	maxMessageSize int
}

func defaultConfig() *config {
	return &config{maxMessageSize: waku.MaxPayloadSize + 64<<10}
}

// Option configures a Relay at construction time.
type Option func(*config)

// WithMaxMessageSize overrides the transport's maximum accepted message
// size. The default is waku.MaxPayloadSize plus protobuf/RPC overhead.
func WithMaxMessageSize(n int) Option {
	return func(c *config) {
		c.maxMessageSize = n
	}
}

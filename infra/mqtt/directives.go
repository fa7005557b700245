package mqtt

import (
	"github.com/kilianp07/retailmarket/infra/logger"
)

// DirectiveHandler applies a module directive received on the module channel.
type DirectiveHandler interface {
	HandleDirective(raw []byte) error
}

// DirectiveListener loads and unloads participant modules at runtime.
type DirectiveListener struct {
	client  *Client
	topic   string
	handler DirectiveHandler
	log     logger.Logger
}

// NewDirectiveListener creates a listener for topic.
func NewDirectiveListener(client *Client, topic string, h DirectiveHandler) *DirectiveListener {
	return &DirectiveListener{client: client, topic: topic, handler: h, log: logger.New("mqtt_modules")}
}

// Start subscribes to the module channel.
func (l *DirectiveListener) Start() error {
	return l.client.Subscribe(l.topic, KindModule, func(_ string, payload []byte) {
		if err := l.handler.HandleDirective(payload); err != nil {
			l.log.Warnf("module directive rejected: %v", err)
		}
	})
}

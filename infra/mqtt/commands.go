package mqtt

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kilianp07/retailmarket/core/command"
	"github.com/kilianp07/retailmarket/infra/logger"
)

// CommandAcceptor enqueues raw commands in arrival order.
type CommandAcceptor interface {
	Accept(ctx context.Context, raw []byte) (*command.Receipt, error)
}

// CommandListener feeds the command channel into the router and publishes
// an Ack for every message on the reply topic.
type CommandListener struct {
	client     *Client
	topic      string
	replyTopic string
	router     CommandAcceptor
	log        logger.Logger

	ctx context.Context
	wg  sync.WaitGroup
}

// NewCommandListener creates a listener. An empty replyTopic defaults to
// topic + "/ack".
func NewCommandListener(client *Client, topic, replyTopic string, router CommandAcceptor) *CommandListener {
	if replyTopic == "" {
		replyTopic = topic + "/ack"
	}
	return &CommandListener{
		client:     client,
		topic:      topic,
		replyTopic: replyTopic,
		router:     router,
		log:        logger.New("mqtt_commands"),
	}
}

// Start subscribes to the command channel. Messages are accepted in the
// order the broker delivers them; results are awaited in the background
// until ctx is done.
func (l *CommandListener) Start(ctx context.Context) error {
	l.ctx = ctx
	return l.client.Subscribe(l.topic, KindCommand, l.handle)
}

func (l *CommandListener) handle(_ string, payload []byte) {
	rc, err := l.router.Accept(l.ctx, payload)
	if err != nil {
		l.reply(rc.Ack())
		return
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ack, _ := rc.Wait(l.ctx)
		l.reply(ack)
	}()
}

func (l *CommandListener) reply(ack command.Ack) {
	b, err := json.Marshal(ack)
	if err != nil {
		l.log.Errorf("encode ack: %v", err)
		return
	}
	if err := l.client.Publish(l.replyTopic, KindAck, false, b); err != nil {
		l.log.Errorf("publish ack %s: %v", ack.CommandID, err)
	}
}

// Wait blocks until every pending reply was published.
func (l *CommandListener) Wait() { l.wg.Wait() }

// SendCommand publishes an encoded command on topic. It is used by the
// revoke CLI.
func SendCommand(client *Client, topic string, raw []byte) error {
	return client.Publish(topic, KindCommand, false, raw)
}

package config

import "errors"

// TransportConfig names the channels the competition uses on the broker.
type TransportConfig struct {
	// CommandChannel receives inbound commands.
	CommandChannel string `json:"command_channel"`
	// ReplyChannel receives command acknowledgements. Defaults to
	// CommandChannel + "/ack".
	ReplyChannel string `json:"reply_channel"`
	// EventChannel carries TimeslotChanged and lifecycle events.
	EventChannel string `json:"event_channel"`
	// ModuleChannel receives module register/unregister directives.
	ModuleChannel string `json:"module_channel"`
}

// Validate requires the three named channels.
func (c TransportConfig) Validate() error {
	if c.CommandChannel == "" || c.EventChannel == "" || c.ModuleChannel == "" {
		return errors.New("command_channel, event_channel and module_channel are required")
	}
	return nil
}

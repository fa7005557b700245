// Package command decodes inbound commands and applies them to the ledger in
// receipt order through a single consumer.
package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kilianp07/retailmarket/core/model"
)

// ErrMalformedCommand is returned for payloads that do not match the command
// envelope.
var ErrMalformedCommand = errors.New("malformed command")

const envelopeSchemaURL = "https://retailmarket.local/schemas/command.schema.json"

const envelopeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "properties": {
    "id": {"type": "string", "maxLength": 128},
    "type": {"enum": ["RevokeTariffCommand", "TariffReply"]}
  },
  "oneOf": [
    {
      "properties": {
        "type": {"const": "RevokeTariffCommand"},
        "authToken": {"type": "string"},
        "tariffId": {"type": "integer", "minimum": 1}
      },
      "required": ["authToken", "tariffId"]
    },
    {
      "properties": {
        "type": {"const": "TariffReply"},
        "tariffId": {"type": "integer", "minimum": 1},
        "accepted": {"type": "boolean"}
      },
      "required": ["tariffId", "accepted"]
    }
  ]
}`

var envelope = mustCompileEnvelope()

func mustCompileEnvelope() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(envelopeSchemaURL, strings.NewReader(envelopeSchema)); err != nil {
		panic(fmt.Sprintf("command schema load failed: %v", err))
	}
	s, err := c.Compile(envelopeSchemaURL)
	if err != nil {
		panic(fmt.Sprintf("command schema compile failed: %v", err))
	}
	return s
}

// Envelope is the wire form shared by every command.
type Envelope struct {
	ID        string            `json:"id,omitempty"`
	Type      model.CommandType `json:"type"`
	AuthToken string            `json:"authToken,omitempty"`
	TariffID  int64             `json:"tariffId"`
	Accepted  *bool             `json:"accepted,omitempty"`
}

// Decode validates raw against the envelope schema and returns the typed
// command with the optional client-supplied id.
func Decode(raw []byte) (string, model.Command, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if err := envelope.Validate(doc); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	switch env.Type {
	case model.CommandRevokeTariff:
		return env.ID, model.RevokeTariffCommand{AuthToken: env.AuthToken, TariffID: env.TariffID}, nil
	case model.CommandTariffReply:
		return env.ID, model.TariffReply{TariffID: env.TariffID, Accepted: *env.Accepted}, nil
	default:
		return "", nil, fmt.Errorf("%w: unknown type %q", ErrMalformedCommand, env.Type)
	}
}

// Encode returns the wire form of cmd.
func Encode(id string, cmd model.Command) ([]byte, error) {
	env := Envelope{ID: id, Type: cmd.Type(), TariffID: cmd.Tariff()}
	switch c := cmd.(type) {
	case model.RevokeTariffCommand:
		env.AuthToken = c.AuthToken
	case model.TariffReply:
		accepted := c.Accepted
		env.Accepted = &accepted
	default:
		return nil, fmt.Errorf("%w: cannot encode %T", ErrMalformedCommand, cmd)
	}
	return json.Marshal(env)
}

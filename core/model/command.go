package model

// CommandType names a command variant on the wire.
type CommandType string

const (
	CommandRevokeTariff CommandType = "RevokeTariffCommand"
	CommandTariffReply  CommandType = "TariffReply"
)

// Command is implemented by every inbound command variant.
type Command interface {
	Type() CommandType
	Tariff() int64
}

// RevokeTariffCommand asks for a tariff to be revoked by its owner.
type RevokeTariffCommand struct {
	AuthToken string
	TariffID  int64
}

func (RevokeTariffCommand) Type() CommandType { return CommandRevokeTariff }
func (c RevokeTariffCommand) Tariff() int64   { return c.TariffID }

// TariffReply carries a market reply on a tariff. A reply with Accepted set
// to false proposes the tariff for revocation.
type TariffReply struct {
	TariffID int64
	Accepted bool
}

func (TariffReply) Type() CommandType { return CommandTariffReply }
func (r TariffReply) Tariff() int64   { return r.TariffID }

// ActionKind enumerates the tariff actions subject to rule enforcement.
type ActionKind int

const (
	ActionRevoke ActionKind = iota + 1
	ActionAccept
)

// String returns a human-readable representation of the action kind.
func (k ActionKind) String() string {
	switch k {
	case ActionRevoke:
		return "revoke"
	case ActionAccept:
		return "accept"
	default:
		return "unknown"
	}
}

// TariffAction is the proposal presented to tariff rule enforcers.
type TariffAction struct {
	Kind     ActionKind
	TariffID int64
	Broker   string
	Source   CommandType
}

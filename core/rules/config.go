package rules

import "fmt"

// Policy decides the outcome of an evaluation when no enforcer is registered.
type Policy string

const (
	PolicyAccept Policy = "accept"
	PolicyReject Policy = "reject"
)

// Config defines rule enforcement settings.
type Config struct {
	// EmptyChain is the decision taken when no enforcer is registered.
	EmptyChain Policy `json:"empty_chain"`
}

// SetDefaults applies the accept-by-default policy.
func (c *Config) SetDefaults() {
	if c.EmptyChain == "" {
		c.EmptyChain = PolicyAccept
	}
}

// Validate checks the configured policy.
func (c Config) Validate() error {
	switch c.EmptyChain {
	case PolicyAccept, PolicyReject:
		return nil
	default:
		return fmt.Errorf("rules: unknown empty_chain policy %q", c.EmptyChain)
	}
}

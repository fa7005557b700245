// Package participants provides the built-in participant modules: a logging
// customer, a logging distribution utility and simple tariff rule
// enforcers. They are instantiated from configuration by app/plugins and are
// useful for smoke runs and tests.
package participants

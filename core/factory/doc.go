// Package factory provides a small generic registry used to instantiate
// pluggable components from configuration: participant modules, audit
// stores, metrics sinks and event publishers. Components are described by a
// type string and a map of raw settings. Factories decode the settings into
// typed structs with Decode and return the concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[audit.Store]()
//	reg.Register("jsonl", func(conf map[string]any) (audit.Store, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return audit.NewJSONLStore(c.Path)
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{"path": "audit.jsonl"}})
package factory

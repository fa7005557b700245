package events

import "encoding/json"

// Marshal encodes e with its type name in a "type" field. TimeslotChanged
// keeps its own flat wire form.
func Marshal(e Event) ([]byte, error) {
	if m, ok := e.(json.Marshaler); ok {
		return m.MarshalJSON()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]any, 1)
	}
	fields["type"] = e.EventType()
	return json.Marshal(fields)
}

package codec

import "encoding/json"

// JSON is the standard-library JSON codec. It is the only codec this module
// ships; see DESIGN.md for why a faster drop-in isn't wired here.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSON) Name() string                       { return "json" }

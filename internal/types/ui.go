package types

// UIFrame is the websocket payload pushed to viewer clients. Thermal is the
// colorized 80x60 grid as packed RGB; Jpeg is the visible image verbatim.
// Both byte slices marshal to base64 under encoding/json.
type UIFrame struct {
	Type      string    `json:"type"`
	Seq       uint64    `json:"seq"`
	Timestamp float64   `json:"timestamp"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Thermal   []byte    `json:"thermal"`
	Jpeg      []byte    `json:"jpeg,omitempty"`
	Stats     TempStats `json:"stats"`
}

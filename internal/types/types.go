package types

// Frame is one reassembled camera packet: the de-interleaved thermal grid
// plus the visible JPEG and status region sliced from the same buffer.
// All slices are independent copies; the reassembly buffer is reused.
type Frame struct {
	Seq         uint64    `json:"seq" cbor:"seq"`
	Timestamp   float64   `json:"timestamp" cbor:"timestamp"`
	FrameSize   uint32    `json:"frame_size" cbor:"frame_size"`
	ThermalSize uint32    `json:"thermal_size" cbor:"thermal_size"`
	JpegSize    uint32    `json:"jpeg_size" cbor:"jpeg_size"`
	StatusSize  uint32    `json:"status_size" cbor:"status_size"`
	Thermal     []uint16  `json:"-" cbor:"thermal"`
	Jpeg        []byte    `json:"-" cbor:"jpeg"`
	Status      []byte    `json:"-" cbor:"status"`
	SOIValid    bool      `json:"soi_valid" cbor:"soi_valid"`
	Stats       TempStats `json:"stats" cbor:"stats"`
}

// TempStats summarizes the thermal grid of one frame in degrees Celsius.
type TempStats struct {
	MinC   float64 `json:"min_c" cbor:"min_c"`
	MaxC   float64 `json:"max_c" cbor:"max_c"`
	MeanC  float64 `json:"mean_c" cbor:"mean_c"`
	HotX   int     `json:"hot_x" cbor:"hot_x"`
	HotY   int     `json:"hot_y" cbor:"hot_y"`
	ColdX  int     `json:"cold_x" cbor:"cold_x"`
	ColdY  int     `json:"cold_y" cbor:"cold_y"`
	RawMin uint16  `json:"raw_min" cbor:"raw_min"`
	RawMax uint16  `json:"raw_max" cbor:"raw_max"`
}

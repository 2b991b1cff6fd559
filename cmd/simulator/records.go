package main

// pulseRecord is one JSON line of simulator output. Angles are degrees.
type pulseRecord struct {
	Pulse      int     `json:"pulse"`
	Time       float64 `json:"time_sec"`
	Beam       string  `json:"beam"`
	AzimuthDeg float64 `json:"azimuth_deg"`
	GateDelay  float64 `json:"gate_delay_sec"`
	TxDoppler  float64 `json:"tx_doppler_hz"`

	Spot   *spotRecord   `json:"spot,omitempty"`
	Slices []sliceRecord `json:"slices,omitempty"`

	Error   string `json:"error,omitempty"`
	Failure string `json:"failure,omitempty"`
}

type spotRecord struct {
	LatitudeDeg   float64      `json:"lat_deg"`
	LongitudeDeg  float64      `json:"lon_deg"`
	PeakGain      float64      `json:"peak_gain"`
	RoundTripTime float64      `json:"round_trip_sec"`
	Outline       [][2]float64 `json:"outline"`
}

type sliceRecord struct {
	Index        int          `json:"index"`
	Guard        bool         `json:"guard,omitempty"`
	LatitudeDeg  float64      `json:"lat_deg"`
	LongitudeDeg float64      `json:"lon_deg"`
	AzimuthDeg   float64      `json:"azimuth_deg"`
	IncidenceDeg float64      `json:"incidence_deg"`
	Bandwidth    float64      `json:"bandwidth_hz"`
	PeakGain     float64      `json:"peak_gain"`
	BestEffort   bool         `json:"best_effort,omitempty"`
	Degenerate   bool         `json:"degenerate,omitempty"`
	Outline      [][2]float64 `json:"outline,omitempty"`
	Error        string       `json:"error,omitempty"`
}

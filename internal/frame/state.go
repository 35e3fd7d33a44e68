package frame

// State is a value snapshot of the operator-visible dials, safe to hand to
// other goroutines.
type State struct {
	Frame         uint64        `json:"frame"`
	TrackingLag   int           `json:"tracking_lag"`
	RenderLag     int           `json:"render_lag"`
	IOD           float64       `json:"iod_m"`
	DeviceIOD     float64       `json:"device_iod_m"`
	FreezeMode    FreezeMode    `json:"freeze_mode"`
	EyeMode       EyeRenderMode `json:"eye_mode"`
	SceneMode     SceneMode     `json:"scene_mode"`
	SuperRotation bool          `json:"super_rotation"`
	CubeScale     float64       `json:"cube_scale"`
	Countdown     int           `json:"countdown"`
	LastFresh     bool          `json:"last_fresh"`
	HistoryWarm   bool          `json:"history_warm"`
}

// Dials returns s with the fields that move every frame zeroed, so two
// snapshots compare equal when no operator dial changed.
func (s State) Dials() State {
	s.Frame = 0
	s.Countdown = 0
	s.LastFresh = false
	s.HistoryWarm = false
	return s
}

func (o *Orchestrator) State() State {
	return State{
		Frame:         o.frame,
		TrackingLag:   o.latency.TrackingLag(),
		RenderLag:     o.latency.RenderLag(),
		IOD:           o.latency.IOD(),
		DeviceIOD:     o.latency.DeviceIOD(),
		FreezeMode:    o.modes.Freeze,
		EyeMode:       o.modes.Eye,
		SceneMode:     o.scene.Mode,
		SuperRotation: o.modes.SuperRotation,
		CubeScale:     o.scene.CubeScale,
		Countdown:     o.cadence.Countdown(),
		LastFresh:     o.last.Fresh,
		HistoryWarm:   o.history.Warm(),
	}
}

package replica

// State is the warm-up lifecycle.
type State string

// State constants.
const (
	Uninitialized   State = "uninitialized"
	Warming         State = "warming"
	Ready           State = "ready"
	ReadyWithErrors State = "ready_with_errors"
)

// IsTerminal reports whether warm-up has finished.
func (s State) IsTerminal() bool { return s == Ready || s == ReadyWithErrors }

// LayerStatus is the warm-up outcome for one layer.
type LayerStatus struct {
	Layer    string `json:"layer"`
	Resolved string `json:"resolved,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	Records  int    `json:"records"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// Snapshot is a point-in-time view of the replica.
type Snapshot struct {
	State     State         `json:"state"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Percent   float64       `json:"percent"`
	Layers    []LayerStatus `json:"layers,omitempty"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Layers != nil {
		out.Layers = make([]LayerStatus, len(s.Layers))
		copy(out.Layers, s.Layers)
	}
	return out
}

// ProgressEvent is emitted while warming.
type ProgressEvent struct {
	LayerIndex int     `json:"layer_index"`
	LayerCount int     `json:"layer_count"`
	Message    string  `json:"message"`
	Percent    float64 `json:"percent"`
	// Done marks the final event of a warm-up run.
	Done bool `json:"done,omitempty"`
}

// ProgressSink receives progress events. Implementations must not block.
type ProgressSink func(ProgressEvent)

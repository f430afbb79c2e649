// internal/telemetry/frame.go
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Frame is one line of telemetry. Field names are part of the wire
// format read by the ground tooling.
type Frame struct {
	Seq     uint32  `json:"seq"`
	Uptime  uint32  `json:"uptime"` // seconds
	Mode    string  `json:"mode"`
	Sensors Sensors `json:"sensors"`
	Sun     Sun     `json:"sun"`
	Servos  Servos  `json:"servos"`
	Errors  Errors  `json:"errors"`
}

type Sensors struct {
	TopLeft     uint16 `json:"tl"`
	TopRight    uint16 `json:"tr"`
	BottomLeft  uint16 `json:"bl"`
	BottomRight uint16 `json:"br"`
	Valid       bool   `json:"valid"`
}

type Sun struct {
	Detected       bool    `json:"detected"`
	AzimuthError   float64 `json:"az_error"`
	ElevationError float64 `json:"el_error"`
}

type Servos struct {
	Azimuth   uint16 `json:"az"`
	Elevation uint16 `json:"el"`
}

type Errors struct {
	Total  uint32 `json:"total"`
	Sensor uint16 `json:"sensor"`
	Servo  uint16 `json:"servo"`
}

// Reporter writes newline-delimited JSON frames and keeps the heartbeat.
type Reporter struct {
	mu  sync.Mutex
	out io.Writer
	seq uint32
	led bool
}

func NewReporter(out io.Writer) (*Reporter, error) {
	if out == nil {
		return nil, errors.New("telemetry: writer required")
	}
	return &Reporter{out: out}, nil
}

// Emit stamps f with the next sequence number and writes it.
// The sequence advances even if the write fails.
func (r *Reporter) Emit(f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f.Seq = r.seq
	r.seq++

	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("telemetry: encode frame %d: %w", f.Seq, err)
	}
	b = append(b, '\n')
	if _, err := r.out.Write(b); err != nil {
		return fmt.Errorf("telemetry: write frame %d: %w", f.Seq, err)
	}
	return nil
}

// Heartbeat toggles the heartbeat and returns the new state.
func (r *Reporter) Heartbeat() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.led = !r.led
	return r.led
}

// Seq returns the sequence number the next frame will carry.
func (r *Reporter) Seq() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

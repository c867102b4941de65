package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/ryancwicks/CameraInterface/camera"
)

// CameraController is the subset of the capture engine the web UI drives.
type CameraController interface {
	StartCapture() error
	StopCapture() error
	SetGain(percent int) error
	SetExposure(seconds float64) error
	SetRate(hz float64) error
}

// Settings holds camera parameters sent by the UI. Zero values mean
// "leave unchanged".
type Settings struct {
	GainPercent int     `json:"gain_percent"`
	ExposureS   float64 `json:"exposure_s"`
	RateHz      float64 `json:"rate_hz"`
}

// ValidateSettings checks that non-zero settings are within valid ranges.
// Zero values are ignored (they mean "leave unchanged").
func ValidateSettings(s Settings) error {
	if s.GainPercent != 0 && (s.GainPercent < 0 || s.GainPercent > 100) {
		return fmt.Errorf("gain_percent must be between 0 and 100, got %d", s.GainPercent)
	}
	if s.ExposureS != 0 {
		if math.IsNaN(s.ExposureS) || math.IsInf(s.ExposureS, 0) || s.ExposureS <= 0 || s.ExposureS > 10 {
			return fmt.Errorf("exposure_s must be between 0 and 10, got %g", s.ExposureS)
		}
	}
	if s.RateHz != 0 {
		if math.IsNaN(s.RateHz) || math.IsInf(s.RateHz, 0) || s.RateHz <= 0 || s.RateHz > 1000 {
			return fmt.Errorf("rate_hz must be between 0 and 1000, got %g", s.RateHz)
		}
	}
	return nil
}

// Handlers holds dependencies for HTTP handlers.
//
// The capture engine does not serialize concurrent foreground callers, so the
// handlers do: every controller call goes through ctrlMu.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Frames      *FrameBroadcaster
	Defaults    Settings

	ctrl     CameraController
	ctrlMu   sync.Mutex
	staticFS fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If ctrl is nil, the control endpoints return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, frames *FrameBroadcaster, ctrl CameraController, defaults Settings, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Frames:      frames,
		Defaults:    defaults,
		ctrl:        ctrl,
		staticFS:    staticFS,
	}
}

// writeControlError maps engine errors to HTTP statuses: Busy is a conflict
// the client can resolve (stop first), everything else is the driver's fault.
func writeControlError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, camera.ErrRunning):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, camera.ErrNotInitialized):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

// HandleConfig returns the settings form defaults as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Defaults)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleStart handles POST /capture/start.
func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	if h.ctrl == nil {
		http.Error(w, "camera not configured", http.StatusServiceUnavailable)
		return
	}

	h.ctrlMu.Lock()
	err := h.ctrl.StartCapture()
	h.ctrlMu.Unlock()
	if err != nil {
		writeControlError(w, err)
		return
	}

	h.Broadcaster.BroadcastMsg("Capture started")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "running"})
}

// HandleStop handles POST /capture/stop. It blocks until the capture loop has
// fully exited, like the engine it fronts.
func (h *Handlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	if h.ctrl == nil {
		http.Error(w, "camera not configured", http.StatusServiceUnavailable)
		return
	}

	h.ctrlMu.Lock()
	err := h.ctrl.StopCapture()
	h.ctrlMu.Unlock()
	if err != nil {
		writeControlError(w, err)
		return
	}

	h.Broadcaster.BroadcastMsg("Capture stopped")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "idle"})
}

// HandleSettings handles POST /settings. Only non-zero fields are applied.
// While the camera is running this returns 409: stop the capture first.
func (h *Handlers) HandleSettings(w http.ResponseWriter, r *http.Request) {
	if h.ctrl == nil {
		http.Error(w, "camera not configured", http.StatusServiceUnavailable)
		return
	}

	var s Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := ValidateSettings(s); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.ctrlMu.Lock()
	defer h.ctrlMu.Unlock()

	if s.GainPercent != 0 {
		if err := h.ctrl.SetGain(s.GainPercent); err != nil {
			writeControlError(w, err)
			return
		}
		h.Broadcaster.BroadcastMsg(fmt.Sprintf("Gain set to %d%%", s.GainPercent))
	}
	if s.ExposureS != 0 {
		if err := h.ctrl.SetExposure(s.ExposureS); err != nil {
			writeControlError(w, err)
			return
		}
		h.Broadcaster.BroadcastMsg(fmt.Sprintf("Exposure set to %gs", s.ExposureS))
	}
	if s.RateHz != 0 {
		if err := h.ctrl.SetRate(s.RateHz); err != nil {
			writeControlError(w, err)
			return
		}
		h.Broadcaster.BroadcastMsg(fmt.Sprintf("Rate set to %gHz", s.RateHz))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "applied"})
}

// HandleStream handles GET /stream as an MJPEG multipart stream.
func (h *Handlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")

	ch, unsub := h.Frames.Subscribe()
	defer unsub()

	for {
		select {
		case frame, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame))
			if _, err := w.Write(frame); err != nil {
				return
			}
			w.Write([]byte("\r\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

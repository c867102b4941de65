package web

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/ryancwicks/CameraInterface/camera"
)

// ---------- ValidateSettings ----------

func TestValidateSettings_Valid(t *testing.T) {
	cases := []struct {
		name string
		s    Settings
	}{
		{"all_zero", Settings{}},
		{"gain_only", Settings{GainPercent: 50}},
		{"exposure_only", Settings{ExposureS: 0.02}},
		{"rate_only", Settings{RateHz: 30}},
		{"all_set", Settings{GainPercent: 100, ExposureS: 10, RateHz: 1000}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateSettings(tc.s); err != nil {
				t.Errorf("expected valid, got: %v", err)
			}
		})
	}
}

func TestValidateSettings_Invalid(t *testing.T) {
	cases := []struct {
		name string
		s    Settings
	}{
		{"gain_too_high", Settings{GainPercent: 101}},
		{"gain_negative", Settings{GainPercent: -1}},
		{"exposure_too_long", Settings{ExposureS: 11}},
		{"exposure_negative", Settings{ExposureS: -0.5}},
		{"exposure_NaN", Settings{ExposureS: math.NaN()}},
		{"exposure_Inf", Settings{ExposureS: math.Inf(1)}},
		{"rate_too_high", Settings{RateHz: 1001}},
		{"rate_negative", Settings{RateHz: -30}},
		{"rate_NaN", Settings{RateHz: math.NaN()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateSettings(tc.s); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// ---------- Handlers ----------

// fakeController records calls and returns scripted errors.
type fakeController struct {
	startErr error
	stopErr  error
	setErr   error

	starts   int
	stops    int
	gain     int
	exposure float64
	rate     float64
}

func (f *fakeController) StartCapture() error {
	f.starts++
	return f.startErr
}

func (f *fakeController) StopCapture() error {
	f.stops++
	return f.stopErr
}

func (f *fakeController) SetGain(percent int) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.gain = percent
	return nil
}

func (f *fakeController) SetExposure(seconds float64) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.exposure = seconds
	return nil
}

func (f *fakeController) SetRate(hz float64) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.rate = hz
	return nil
}

func testHandlers(ctrl CameraController) *Handlers {
	static := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html>preview</html>")},
	}
	return NewHandlers(NewStatusBroadcaster(), NewFrameBroadcaster(), ctrl, Settings{GainPercent: 50, ExposureS: 0.01, RateHz: 10}, static)
}

func TestHandleStart_Success(t *testing.T) {
	ctrl := &fakeController{}
	h := testHandlers(ctrl)

	rec := httptest.NewRecorder()
	h.HandleStart(rec, httptest.NewRequest(http.MethodPost, "/capture/start", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if ctrl.starts != 1 {
		t.Errorf("StartCapture called %d times, want 1", ctrl.starts)
	}
}

func TestHandleStart_NotInitialized(t *testing.T) {
	ctrl := &fakeController{startErr: camera.ErrNotInitialized}
	h := testHandlers(ctrl)

	rec := httptest.NewRecorder()
	h.HandleStart(rec, httptest.NewRequest(http.MethodPost, "/capture/start", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleStop_Success(t *testing.T) {
	ctrl := &fakeController{}
	h := testHandlers(ctrl)

	rec := httptest.NewRecorder()
	h.HandleStop(rec, httptest.NewRequest(http.MethodPost, "/capture/stop", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ctrl.stops != 1 {
		t.Errorf("StopCapture called %d times, want 1", ctrl.stops)
	}
}

func TestHandleSettings_AppliesNonZeroFields(t *testing.T) {
	ctrl := &fakeController{}
	h := testHandlers(ctrl)

	body, _ := json.Marshal(Settings{GainPercent: 75, RateHz: 15})
	rec := httptest.NewRecorder()
	h.HandleSettings(rec, httptest.NewRequest(http.MethodPost, "/settings", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if ctrl.gain != 75 {
		t.Errorf("gain = %d, want 75", ctrl.gain)
	}
	if ctrl.rate != 15 {
		t.Errorf("rate = %v, want 15", ctrl.rate)
	}
	if ctrl.exposure != 0 {
		t.Errorf("exposure = %v, want untouched (0)", ctrl.exposure)
	}
}

func TestHandleSettings_BusyMapsToConflict(t *testing.T) {
	ctrl := &fakeController{setErr: camera.ErrRunning}
	h := testHandlers(ctrl)

	body, _ := json.Marshal(Settings{GainPercent: 75})
	rec := httptest.NewRecorder()
	h.HandleSettings(rec, httptest.NewRequest(http.MethodPost, "/settings", bytes.NewReader(body)))

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "running") {
		t.Errorf("body %q should carry the busy message", rec.Body.String())
	}
}

func TestHandleSettings_InvalidJSON(t *testing.T) {
	h := testHandlers(&fakeController{})

	rec := httptest.NewRecorder()
	h.HandleSettings(rec, httptest.NewRequest(http.MethodPost, "/settings", strings.NewReader("{nope")))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSettings_OutOfRange(t *testing.T) {
	h := testHandlers(&fakeController{})

	body, _ := json.Marshal(Settings{GainPercent: 300})
	rec := httptest.NewRecorder()
	h.HandleSettings(rec, httptest.NewRequest(http.MethodPost, "/settings", bytes.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestControlEndpoints_NoController(t *testing.T) {
	h := testHandlers(nil)

	endpoints := []func(http.ResponseWriter, *http.Request){
		h.HandleStart, h.HandleStop, h.HandleSettings,
	}
	for i, fn := range endpoints {
		rec := httptest.NewRecorder()
		fn(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}")))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("endpoint %d: status = %d, want 503", i, rec.Code)
		}
	}
}

func TestHandleConfig_ReturnsDefaults(t *testing.T) {
	h := testHandlers(&fakeController{})

	rec := httptest.NewRecorder()
	h.HandleConfig(rec, httptest.NewRequest(http.MethodGet, "/config", nil))

	var got Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("config is not JSON: %v", err)
	}
	if got.GainPercent != 50 || got.ExposureS != 0.01 || got.RateHz != 10 {
		t.Errorf("config = %+v, want defaults 50/0.01/10", got)
	}
}

func TestServeIndex(t *testing.T) {
	h := testHandlers(&fakeController{})

	rec := httptest.NewRecorder()
	h.ServeIndex(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "preview") {
		t.Errorf("index body %q does not contain expected content", rec.Body.String())
	}
}

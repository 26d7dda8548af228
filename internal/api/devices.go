package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/lightspeed-asi/internal/driver"
)

// setPropertyRequest is the body of PUT /devices/{id}/properties/{name}.
// Value is the raw text form parsed by the property's kind; JSON numbers
// and booleans are accepted too.
type setPropertyRequest struct {
	Value json.RawMessage `json:"value"`
}

// exposeRequest is the body of POST /devices/{id}/expose.
type exposeRequest struct {
	Length float64 `json:"length"`
}

// handleListDevices returns every device with its properties.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.devices.Devices()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns one device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.devices.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDeviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, driver.InfoOf(d))
}

// handleSetProperty writes one property through to the hardware.
func (s *Server) handleSetProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")

	var req setPropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	raw, err := driver.ValueText(req.Value)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.devices.SetProperty(r.Context(), id, name, raw); err != nil {
		s.writeDeviceError(w, r, err)
		return
	}

	d, err := s.devices.Get(id)
	if err != nil {
		s.writeDeviceError(w, r, err)
		return
	}
	p, err := d.Property(name)
	if err != nil {
		s.writeDeviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleExpose starts an exposure. The capture finishes in the background;
// its result arrives on the capture.finished event.
func (s *Server) handleExpose(w http.ResponseWriter, r *http.Request) {
	var req exposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	exp, err := s.devices.Expose(r.Context(), chi.URLParam(r, "id"), req.Length)
	if err != nil {
		s.writeDeviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, exp)
}

// handleCalibrate starts filter wheel calibration.
func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.devices.Calibrate(r.Context(), id); err != nil {
		s.writeDeviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"device_id": id,
		"status":    "calibrating",
	})
}

// handleListCaptures returns the capture history of a device, newest first.
func (s *Server) handleListCaptures(w http.ResponseWriter, r *http.Request) {
	if s.captures == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "capture history not configured")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.devices.Get(id); err != nil {
		s.writeDeviceError(w, r, err)
		return
	}

	limit := s.historyLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.captures.List(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("listing captures failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to list captures")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"captures": records,
		"count":    len(records),
	})
}

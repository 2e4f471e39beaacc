package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"netinventory/internal/codec"
	"netinventory/internal/domain"
	"netinventory/internal/logging"
	"netinventory/internal/service"
)

const maxBodyBytes = 4 << 20

// InventoryHandler handles inventory API requests
type InventoryHandler struct {
	svc *service.InventoryService
	log logrus.FieldLogger
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(svc *service.InventoryService, log logrus.FieldLogger) *InventoryHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &InventoryHandler{svc: svc, log: logging.Component(log, "handler")}
}

// Register adds every inventory route to mux
func (h *InventoryHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/devices", h.ListDevices)
	mux.HandleFunc("POST /api/devices", h.CreateDevice)
	mux.HandleFunc("GET /api/devices/by-ipv4/{ipv4}", h.FindByIPv4)
	mux.HandleFunc("GET /api/devices/{name}", h.GetDevice)
	mux.HandleFunc("DELETE /api/devices/{name}", h.DeleteDevice)

	mux.HandleFunc("POST /api/devices/{name}/connections", h.Connect)
	mux.HandleFunc("DELETE /api/devices/{name}/connections/{peer}", h.Disconnect)

	mux.HandleFunc("POST /api/endpoints/{name}/traffic", h.RecordTraffic)
	mux.HandleFunc("POST /api/endpoints/{name}/suspend", h.Suspend)
	mux.HandleFunc("GET /api/traffic/top", h.TopConsumers)
	mux.HandleFunc("POST /api/policy/apply", h.ApplyPolicy)

	mux.HandleFunc("GET /api/topology/dangling", h.Dangling)
	mux.HandleFunc("GET /api/stats", h.Stats)

	mux.HandleFunc("POST /api/inventory/save", h.Save)
	mux.HandleFunc("POST /api/inventory/reload", h.Reload)
	mux.HandleFunc("GET /api/export/{format}", h.Export)
	mux.HandleFunc("POST /api/import/{format}", h.Import)
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ListDevices returns devices, optionally filtered by type and status
func (h *InventoryHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices := h.svc.ListDevices(service.ListFilter{
		Type:   r.URL.Query().Get("type"),
		Status: r.URL.Query().Get("status"),
	})
	h.writeJSON(w, devices, http.StatusOK)
}

// GetDevice returns a single device
func (h *InventoryHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.GetDevice(r.PathValue("name"))
	if err != nil {
		h.writeServiceError(w, "Failed to get device", err)
		return
	}
	h.writeJSON(w, d, http.StatusOK)
}

// FindByIPv4 returns the device holding an IPv4 address
func (h *InventoryHandler) FindByIPv4(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.FindByIPv4(r.PathValue("ipv4"))
	if err != nil {
		h.writeServiceError(w, "Failed to find device", err)
		return
	}
	h.writeJSON(w, d, http.StatusOK)
}

// CreateDevice creates a new device
func (h *InventoryHandler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var req service.CreateDeviceRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	d, err := h.svc.CreateDevice(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "Failed to create device", err)
		return
	}
	h.writeJSON(w, d, http.StatusCreated)
}

// DeleteDevice deletes a device
func (h *InventoryHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteDevice(r.Context(), r.PathValue("name")); err != nil {
		h.writeServiceError(w, "Failed to delete device", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Connect adds a peer to a device's connection list
func (h *InventoryHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req service.ConnectRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	name := r.PathValue("name")
	if err := h.svc.Connect(r.Context(), name, req.Peer); err != nil {
		h.writeServiceError(w, "Failed to connect device", err)
		return
	}
	h.writeDevice(w, name, http.StatusOK)
}

// Disconnect removes a peer from a device's connection list
func (h *InventoryHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.svc.Disconnect(r.Context(), name, r.PathValue("peer")); err != nil {
		h.writeServiceError(w, "Failed to disconnect device", err)
		return
	}
	h.writeDevice(w, name, http.StatusOK)
}

// RecordTraffic adds traffic to an endpoint
func (h *InventoryHandler) RecordTraffic(w http.ResponseWriter, r *http.Request) {
	var req service.TrafficRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	ep, err := h.svc.RecordTraffic(r.Context(), r.PathValue("name"), req.UpMB, req.DownMB)
	if err != nil {
		h.writeServiceError(w, "Failed to record traffic", err)
		return
	}
	h.writeJSON(w, ep, http.StatusOK)
}

// Suspend suspends an endpoint for a number of minutes
func (h *InventoryHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	var req service.SuspendRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	ep, err := h.svc.Suspend(r.Context(), r.PathValue("name"), req.Minutes)
	if err != nil {
		h.writeServiceError(w, "Failed to suspend endpoint", err)
		return
	}
	h.writeJSON(w, ep, http.StatusOK)
}

// TopConsumers returns the endpoints with the most traffic. ?n defaults to 5.
func (h *InventoryHandler) TopConsumers(w http.ResponseWriter, r *http.Request) {
	n := 5
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, "Invalid n", err.Error(), http.StatusBadRequest)
			return
		}
		n = v
	}

	h.writeJSON(w, h.svc.TopConsumers(n), http.StatusOK)
}

// PolicyResponse lists the endpoints a policy run suspended
type PolicyResponse struct {
	LimitMB        float64        `json:"limit_mb"`
	SuspendMinutes int            `json:"suspend_minutes"`
	Suspended      []codec.Record `json:"suspended"`
}

// ApplyPolicy runs the traffic cap. An empty body uses the configured policy.
func (h *InventoryHandler) ApplyPolicy(w http.ResponseWriter, r *http.Request) {
	var req service.PolicyRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	run := req.Run(h.svc.Policy())
	affected, err := h.svc.ApplyPolicy(r.Context(), run)
	if err != nil {
		h.writeServiceError(w, "Failed to apply policy", err)
		return
	}

	h.writeJSON(w, PolicyResponse{
		LimitMB:        run.LimitMB,
		SuspendMinutes: run.SuspendMinutes,
		Suspended:      affected,
	}, http.StatusOK)
}

// Dangling returns connection entries that name missing devices
func (h *InventoryHandler) Dangling(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.svc.Dangling(), http.StatusOK)
}

// Stats returns device counts
func (h *InventoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.svc.Stats(), http.StatusOK)
}

// Save persists the inventory
func (h *InventoryHandler) Save(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Save(r.Context()); err != nil {
		h.writeServiceError(w, "Failed to save inventory", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reload re-reads the inventory from storage
func (h *InventoryHandler) Reload(w http.ResponseWriter, r *http.Request) {
	changed, err := h.svc.Reload(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to reload inventory", err)
		return
	}
	h.writeJSON(w, map[string]bool{"changed": changed}, http.StatusOK)
}

// Export writes the inventory in the requested format
func (h *InventoryHandler) Export(w http.ResponseWriter, r *http.Request) {
	exp, err := codec.LookupExporter(r.PathValue("format"))
	if err != nil {
		h.writeError(w, "Unknown export format", err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", exp.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=inventory.%s", extension(exp.Format())))
	if err := h.svc.Export(r.Context(), exp, w); err != nil {
		// Headers are already written
		h.log.WithError(err).Error("failed to export inventory")
	}
}

func extension(format string) string {
	switch format {
	case "yaml", "ansible":
		return "yml"
	}
	return format
}

// Import loads devices from the request body. ?strategy is replace (default)
// or merge.
func (h *InventoryHandler) Import(w http.ResponseWriter, r *http.Request) {
	imp, err := codec.LookupImporter(r.PathValue("format"))
	if err != nil {
		h.writeError(w, "Unknown import format", err.Error(), http.StatusNotFound)
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	result, err := h.svc.Import(r.Context(), imp, body, r.URL.Query().Get("strategy"))
	if err != nil {
		h.writeServiceError(w, "Failed to import inventory", err)
		return
	}
	h.writeJSON(w, result, http.StatusOK)
}

// Helper methods

func (h *InventoryHandler) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !(allowEmpty && errors.Is(err, io.EOF)) {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return false
	}
	if err := service.ValidateRequest(dst); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *InventoryHandler) writeDevice(w http.ResponseWriter, name string, statusCode int) {
	d, err := h.svc.GetDevice(name)
	if err != nil {
		h.writeServiceError(w, "Failed to get device", err)
		return
	}
	h.writeJSON(w, d, statusCode)
}

func (h *InventoryHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.WithError(err).Warn("failed to encode JSON")
	}
}

func (h *InventoryHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	h.writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}

func (h *InventoryHandler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		h.log.WithError(err).Error(msg)
	}
	h.writeError(w, msg, err.Error(), code)
}

// StatusFor maps service and domain errors to HTTP status codes
func StatusFor(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateName),
		errors.Is(err, domain.ErrDuplicateMAC),
		errors.Is(err, domain.ErrDuplicateIPv4),
		errors.Is(err, domain.ErrDuplicateConnection),
		errors.Is(err, domain.ErrCapacityExceeded),
		errors.Is(err, domain.ErrSelfConnection):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNegativeTraffic),
		errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrInvalidStrategy),
		errors.Is(err, codec.ErrUnknownType):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

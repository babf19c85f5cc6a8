package layout

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/propstudio/propstudio/backend-go/internal/adapter"
	"github.com/propstudio/propstudio/backend-go/internal/auth"
	"github.com/propstudio/propstudio/backend-go/internal/document"
	"github.com/propstudio/propstudio/backend-go/internal/elements"
	"github.com/propstudio/propstudio/backend-go/internal/preview"
	"github.com/propstudio/propstudio/backend-go/internal/propmodel"
)

// maxDocumentBytes bounds uploaded layout documents.
const maxDocumentBytes = 8 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the layout endpoints on r, which is expected to sit behind
// the auth middleware.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/layouts", h.List).Methods("GET")
	r.HandleFunc("/layouts", h.Create).Methods("POST")
	r.HandleFunc("/layouts/{layoutId}", h.Get).Methods("GET")
	r.HandleFunc("/layouts/{layoutId}", h.Delete).Methods("DELETE")
	r.HandleFunc("/layouts/{layoutId}/document", h.GetDocument).Methods("GET")
	r.HandleFunc("/layouts/{layoutId}/document", h.PutDocument).Methods("PUT")
	r.HandleFunc("/layouts/{layoutId}/shapes", h.AddShape).Methods("POST")
	r.HandleFunc("/layouts/{layoutId}/shapes/{shapeId}", h.DeleteShape).Methods("DELETE")
	r.HandleFunc("/layouts/{layoutId}/props/{propId}", h.SetProp).Methods("PUT")
	r.HandleFunc("/layouts/{layoutId}/props/{propId}/lights", h.Lights).Methods("GET")
	r.HandleFunc("/layouts/{layoutId}/frame", h.Frame).Methods("GET")
	r.HandleFunc("/layouts/{layoutId}/frame.msgpack", h.FrameMsgpack).Methods("GET")
}

type createRequest struct {
	Name   string `json:"name"`
	Sample bool   `json:"sample"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	layout, err := h.service.Create(r.Context(), req.Name, userID, req.Sample)
	if err != nil {
		slog.Error("create layout failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, layout)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	layoutID := mux.Vars(r)["layoutId"]

	layout, err := h.service.Get(r.Context(), layoutID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, layout)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	layouts, err := h.service.List(r.Context(), userID)
	if err != nil {
		slog.Error("list layouts failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, layouts)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	layoutID := mux.Vars(r)["layoutId"]

	if err := h.service.Delete(r.Context(), layoutID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	layoutID := mux.Vars(r)["layoutId"]

	doc, err := h.service.Document(r.Context(), layoutID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	layoutID := mux.Vars(r)["layoutId"]

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	version, err := h.service.SaveDocument(r.Context(), layoutID, userID, raw)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"version": version})
}

func (h *Handler) AddShape(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	layoutID := mux.Vars(r)["layoutId"]

	var req AddShapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.ElementID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "elementId is required"})
		return
	}

	result, err := h.service.AddShape(r.Context(), layoutID, userID, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) DeleteShape(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	vars := mux.Vars(r)

	if err := h.service.DeleteShape(r.Context(), vars["layoutId"], userID, vars["shapeId"]); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetProp takes the prop parameters as a YAML or JSON document.
func (h *Handler) SetProp(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	vars := mux.Vars(r)

	params, err := propmodel.DecodeParams(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	prop, err := h.service.SetProp(r.Context(), vars["layoutId"], userID, vars["propId"], params)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, prop)
}

func (h *Handler) Lights(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	vars := mux.Vars(r)

	lights, err := h.service.Lights(r.Context(), vars["layoutId"], userID, vars["propId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, lights)
}

func (h *Handler) Frame(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	layoutID := mux.Vars(r)["layoutId"]

	frame, err := h.service.Frame(r.Context(), layoutID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, frame)
}

// FrameMsgpack serves the same frame as Frame in MessagePack, for clients
// redrawing large layouts.
func (h *Handler) FrameMsgpack(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	layoutID := mux.Vars(r)["layoutId"]

	frame, err := h.service.Frame(r.Context(), layoutID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	data, err := preview.FrameToMsgpack(frame)
	if err != nil {
		slog.Error("encode frame failed", "error", err, "layout", layoutID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	w.Header().Set("Content-Type", "application/msgpack")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ErrorStatus maps a service error caused by the request to its HTTP status.
func ErrorStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, preview.ErrShapeNotFound),
		errors.Is(err, document.ErrPropNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, true
	case errors.Is(err, adapter.ErrTopologyMismatch):
		return http.StatusConflict, true
	case errors.Is(err, ErrInvalid),
		errors.Is(err, propmodel.ErrInvalidConfiguration),
		errors.Is(err, preview.ErrUnknownShapeKind),
		errors.Is(err, elements.ErrNotFound):
		return http.StatusBadRequest, true
	}
	return 0, false
}

func handleServiceError(w http.ResponseWriter, err error) {
	status, ok := ErrorStatus(err)
	if !ok {
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, status, map[string]string{"error": "not found"})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, status, map[string]string{"error": "forbidden"})
	default:
		writeJSON(w, status, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

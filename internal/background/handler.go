// Package background stores the photos layouts are drawn over. Uploads are
// re-encoded as PNG under a fresh id, so stored files never change.
package background

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/propstudio/propstudio/backend-go/internal/auth"
	"github.com/propstudio/propstudio/backend-go/internal/document"
	"github.com/propstudio/propstudio/backend-go/internal/typeid"
)

const maxUploadSize = 10 << 20 // 10MB

// URLPrefix is where stored backgrounds are served.
const URLPrefix = "/backgrounds/"

// Layouts records an uploaded background on a layout.
type Layouts interface {
	SetBackground(ctx context.Context, layoutID, userID string, bg document.Background) error
}

type Handler struct {
	dir     string
	layouts Layouts
	// statusFor maps errors from layouts caused by the request to a status.
	statusFor func(error) (int, bool)
}

// NewHandler stores files in dir. statusFor maps errors from layouts to an
// HTTP status; it may be nil.
func NewHandler(dir string, layouts Layouts, statusFor func(error) (int, bool)) *Handler {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("create background dir", "error", err, "dir", dir)
	}
	if statusFor == nil {
		statusFor = func(error) (int, bool) { return 0, false }
	}
	return &Handler{dir: dir, layouts: layouts, statusFor: statusFor}
}

// Upload handles POST /layouts/{layoutId}/background (multipart form with a
// "file" field).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	layoutID := mux.Vars(r)["layoutId"]

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large (max 10MB)")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/png") && !strings.HasPrefix(contentType, "image/jpeg") {
		writeError(w, http.StatusBadRequest, "only PNG and JPEG images are supported")
		return
	}

	img, _, err := image.Decode(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image: "+err.Error())
		return
	}

	bg, err := h.store(img)
	if err != nil {
		slog.Error("store background", "error", err, "layout", layoutID)
		writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}

	if err := h.layouts.SetBackground(r.Context(), layoutID, userID, bg); err != nil {
		h.remove(bg.ID)
		if status, ok := h.statusFor(err); ok {
			writeError(w, status, err.Error())
			return
		}
		slog.Error("set background", "error", err, "layout", layoutID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(bg)
}

func (h *Handler) store(img image.Image) (document.Background, error) {
	id := typeid.NewBackgroundID()
	filename := id + ".png"
	path := filepath.Join(h.dir, filename)

	out, err := os.Create(path)
	if err != nil {
		return document.Background{}, fmt.Errorf("create file: %w", err)
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		os.Remove(path)
		return document.Background{}, fmt.Errorf("encode png: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return document.Background{}, fmt.Errorf("close file: %w", err)
	}

	bounds := img.Bounds()
	return document.Background{
		ID:     id,
		URL:    URLPrefix + filename,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

func (h *Handler) remove(id string) {
	if err := os.Remove(filepath.Join(h.dir, id+".png")); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("remove background", "error", err, "id", id)
	}
}

// Serve returns an http.Handler for stored files, mounted at URLPrefix.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix(URLPrefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Background ids are unique, so files are immutable
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

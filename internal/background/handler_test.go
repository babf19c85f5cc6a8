package background

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propstudio/propstudio/backend-go/internal/document"
)

var errNoLayout = errors.New("no layout")

type fakeLayouts struct {
	set map[string]document.Background
}

func (f *fakeLayouts) SetBackground(_ context.Context, layoutID, _ string, bg document.Background) error {
	if layoutID != "layout_1" {
		return errNoLayout
	}
	f.set[layoutID] = bg
	return nil
}

func statusFor(err error) (int, bool) {
	if errors.Is(err, errNoLayout) {
		return http.StatusNotFound, true
	}
	return 0, false
}

func multipartBody(t *testing.T, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="yard.png"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func upload(t *testing.T, h *Handler, layoutID, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, contentType, data)
	r := mux.NewRouter()
	r.HandleFunc("/layouts/{layoutId}/background", h.Upload).Methods("POST")
	req := httptest.NewRequest("POST", "/layouts/"+layoutID+"/background", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestUploadAndServe(t *testing.T) {
	dir := t.TempDir()
	layouts := &fakeLayouts{set: map[string]document.Background{}}
	h := NewHandler(dir, layouts, statusFor)

	rec := upload(t, h, "layout_1", "image/png", testPNG(t))
	require.Equal(t, http.StatusCreated, rec.Code)

	var bg document.Background
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bg))
	assert.Equal(t, 3, bg.Width)
	assert.Equal(t, 2, bg.Height)
	assert.True(t, strings.HasPrefix(bg.URL, URLPrefix))
	assert.Equal(t, bg, layouts.set["layout_1"])

	req := httptest.NewRequest("GET", bg.URL, nil)
	srv := httptest.NewRecorder()
	h.Serve().ServeHTTP(srv, req)
	require.Equal(t, http.StatusOK, srv.Code)
	assert.Contains(t, srv.Header().Get("Cache-Control"), "immutable")
	_, err := png.Decode(srv.Body)
	assert.NoError(t, err)
}

func TestUploadRejects(t *testing.T) {
	dir := t.TempDir()
	h := NewHandler(dir, &fakeLayouts{set: map[string]document.Background{}}, statusFor)

	rec := upload(t, h, "layout_1", "image/gif", []byte("GIF89a"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload(t, h, "layout_1", "image/png", []byte("not a png"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = upload(t, h, "layout_2", "image/png", testPNG(t))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// the file stored before the layout update failed is gone again
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

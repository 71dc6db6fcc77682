package httpapi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/fpang/ai-image-editor/internal/chat"
	"github.com/fpang/ai-image-editor/internal/export"
	"github.com/fpang/ai-image-editor/internal/filehandler"
	"github.com/fpang/ai-image-editor/internal/imageref"
	"github.com/fpang/ai-image-editor/internal/operation"
	"github.com/fpang/ai-image-editor/internal/session"
	"github.com/klauspost/compress/zstd"
)

type fakeEditor struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
	result  func(ref imageref.Ref, op operation.Operation) chat.Result
}

func (f *fakeEditor) Edit(ctx context.Context, ref imageref.Ref, op operation.Operation) chat.Result {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.result(ref, op)
}

func (f *fakeEditor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testPNG(t *testing.T, c color.Color, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

// succeeding returns an editor whose every edit yields a blue PNG.
func succeeding(t *testing.T) *fakeEditor {
	blue := testPNG(t, color.RGBA{0, 0, 255, 255}, 32, 32)
	return &fakeEditor{result: func(imageref.Ref, operation.Operation) chat.Result {
		return chat.Result{Success: true, Payload: imageref.FromBytes(blue, "image/png"), Source: chat.SourceInline}
	}}
}

func failing() *fakeEditor {
	return &fakeEditor{result: func(imageref.Ref, operation.Operation) chat.Result {
		return chat.Result{Success: false, Error: "Remote service error - try again later"}
	}}
}

func newTestServer(t *testing.T, editor chat.Editor, opts Options) (http.Handler, *session.Manager) {
	t.Helper()
	m := session.NewManager(editor, session.ManagerOptions{})
	t.Cleanup(m.Shutdown)
	return New(editor, m, opts).Handler(), m
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func multipartFile(t *testing.T, path, name string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestProcess_MissingFields(t *testing.T) {
	h, _ := newTestServer(t, succeeding(t), Options{})

	for _, body := range []map[string]string{
		{"operation": "enhance"},
		{"image": "aGVsbG8="},
		{},
	} {
		rec := doJSON(t, h, http.MethodPost, "/image-edit", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %v: status = %d, want 400", body, rec.Code)
		}
		if got := decode[map[string]string](t, rec)["error"]; got == "" {
			t.Errorf("body %v: missing error message", body)
		}
	}
}

func TestProcess_Success(t *testing.T) {
	editor := succeeding(t)
	h, _ := newTestServer(t, editor, Options{})
	src := testPNG(t, color.White, 8, 8)

	rec := doJSON(t, h, http.MethodPost, "/image-edit", map[string]interface{}{
		"image":      "data:image/png;base64," + base64.StdEncoding.EncodeToString(src),
		"operation":  "style-transfer",
		"parameters": map[string]string{"style": "watercolor"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[processResponse](t, rec)
	if !resp.Success || resp.Operation != "style-transfer" {
		t.Errorf("unexpected response %+v", resp)
	}
	if !strings.HasPrefix(resp.ImageURL, "data:image/png;base64,") {
		t.Errorf("imageUrl = %.40q, want PNG data URI", resp.ImageURL)
	}
	if editor.callCount() != 1 {
		t.Errorf("editor calls = %d, want 1", editor.callCount())
	}
}

func TestProcess_RemoteFailure(t *testing.T) {
	h, _ := newTestServer(t, failing(), Options{})
	rec := doJSON(t, h, http.MethodPost, "/image-edit", map[string]string{
		"image":     base64.StdEncoding.EncodeToString(testPNG(t, color.White, 4, 4)),
		"operation": "enhance",
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decode[processResponse](t, rec)
	if resp.Success || resp.Error == "" || resp.Details == "" || resp.Operation != "enhance" {
		t.Errorf("unexpected failure body %+v", resp)
	}
}

func TestProcess_InvalidIntensity(t *testing.T) {
	h, _ := newTestServer(t, succeeding(t), Options{})
	rec := doJSON(t, h, http.MethodPost, "/image-edit", map[string]interface{}{
		"image":      base64.StdEncoding.EncodeToString(testPNG(t, color.White, 4, 4)),
		"operation":  "enhance",
		"parameters": map[string]int{"intensity": 150},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestProcess_PanicBecomesJSON500(t *testing.T) {
	editor := &fakeEditor{result: func(imageref.Ref, operation.Operation) chat.Result {
		panic("boom")
	}}
	h, _ := newTestServer(t, editor, Options{})
	rec := doJSON(t, h, http.MethodPost, "/image-edit", map[string]string{
		"image":     base64.StdEncoding.EncodeToString(testPNG(t, color.White, 4, 4)),
		"operation": "enhance",
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["error"] == "" || body["details"] != "boom" {
		t.Errorf("body = %v", body)
	}
}

func TestDescribe(t *testing.T) {
	h, _ := newTestServer(t, succeeding(t), Options{})
	rec := doJSON(t, h, http.MethodGet, "/image-edit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	caps := decode[operation.Capabilities](t, rec)
	if len(caps.Operations) != len(operation.Names()) {
		t.Errorf("operations = %d, want %d", len(caps.Operations), len(operation.Names()))
	}
}

func TestSessionFlow(t *testing.T) {
	editor := succeeding(t)
	h, _ := newTestServer(t, editor, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartFile(t, "/api/sessions", "photo.png", testPNG(t, color.White, 64, 48)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	snap := decode[session.Snapshot](t, rec)
	if snap.State != session.StateLoaded || snap.FileName != "photo.png" {
		t.Fatalf("snapshot = %+v", snap)
	}
	base := "/api/sessions/" + snap.ID

	rec = doJSON(t, h, http.MethodPost, base+"/operations", map[string]string{"operation": "background-removal"})
	if rec.Code != http.StatusOK {
		t.Fatalf("operation status = %d, body %s", rec.Code, rec.Body.String())
	}
	op := decode[operationResponse](t, rec)
	if !op.Outcome.Success || op.Snapshot.HistoryIndex != 0 || len(op.Snapshot.History) != 1 {
		t.Fatalf("operation response = %+v", op)
	}

	rec = doJSON(t, h, http.MethodPost, base+"/undo", nil)
	nav := decode[navigationResponse](t, rec)
	if !nav.Changed || nav.Snapshot.HistoryIndex != -1 || !nav.Snapshot.CanRedo {
		t.Errorf("undo = %+v", nav)
	}

	rec = doJSON(t, h, http.MethodPost, base+"/undo", nil)
	if nav := decode[navigationResponse](t, rec); nav.Changed {
		t.Error("second undo should not change anything")
	}

	rec = doJSON(t, h, http.MethodPost, base+"/history/0", nil)
	if got := decode[session.Snapshot](t, rec); got.HistoryIndex != 0 {
		t.Errorf("jump index = %d, want 0", got.HistoryIndex)
	}
	rec = doJSON(t, h, http.MethodPost, base+"/history/5", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out of range jump status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, base+"/image?display=1&maxWidth=32", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("display status = %d type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	if err != nil || cfg.Width != 32 {
		t.Errorf("display width = %d (err %v), want 32", cfg.Width, err)
	}

	rec = doJSON(t, h, http.MethodGet, base+"/export?format=jpg&quality=80&name=final", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Fatalf("export status = %d type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "final.jpg") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rec = doJSON(t, h, http.MethodGet, base+"/export/estimate?format=webp&quality=0", nil)
	est := decode[estimateResponse](t, rec)
	if est.Quality != export.DefaultQuality || est.EstimatedBytes <= 0 {
		t.Errorf("estimate = %+v", est)
	}

	rec = doJSON(t, h, http.MethodGet, base+"/export/bundle", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("bundle status = %d, body %s", rec.Code, rec.Body.String())
	}
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("bundle is not a zip: %v", err)
	}
	zr.RegisterDecompressor(export.ZipMethodZstd, zstd.ZipDecompressor())
	if len(zr.File) != 2 {
		t.Errorf("bundle entries = %d, want 2", len(zr.File))
	}

	rec = doJSON(t, h, http.MethodPost, base+"/reset", nil)
	if got := decode[session.Snapshot](t, rec); got.HistoryIndex != -1 || len(got.History) != 0 {
		t.Errorf("reset = %+v", got)
	}

	rec = doJSON(t, h, http.MethodDelete, base, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, base, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
}

func TestCreateSession_RejectsNonImage(t *testing.T) {
	h, m := newTestServer(t, succeeding(t), Options{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartFile(t, "/api/sessions", "notes.txt", []byte("just some text")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decode[map[string]string](t, rec)["error"]; !strings.Contains(got, "valid image") {
		t.Errorf("error = %q", got)
	}
	if m.Count() != 0 {
		t.Errorf("sessions = %d, want 0", m.Count())
	}
}

func TestCreateSession_RejectedUploadKeepsLiveSessions(t *testing.T) {
	editor := succeeding(t)
	m := session.NewManager(editor, session.ManagerOptions{MaxSessions: 1})
	t.Cleanup(m.Shutdown)
	h := New(editor, m, Options{}).Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	live := decode[session.Snapshot](t, rec)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, multipartFile(t, "/api/sessions", "notes.txt", []byte("just some text")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("rejected create status = %d, want 400", rec.Code)
	}

	if rec := doJSON(t, h, http.MethodGet, "/api/sessions/"+live.ID, nil); rec.Code != http.StatusOK {
		t.Errorf("existing session status = %d after a rejected upload, want 200", rec.Code)
	}
	if m.Count() != 1 {
		t.Errorf("sessions = %d, want 1", m.Count())
	}
}

func TestImage_DisplayBoundsClampedToConfig(t *testing.T) {
	h, _ := newTestServer(t, succeeding(t), Options{Display: filehandler.DisplayOptions{MaxWidth: 100, MaxHeight: 100}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartFile(t, "/api/sessions", "wide.png", testPNG(t, color.White, 400, 200)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	base := "/api/sessions/" + decode[session.Snapshot](t, rec).ID

	tests := []struct {
		query        string
		wantW, wantH int
	}{
		{"maxWidth=1048576&maxHeight=1048576", 100, 50},
		{"maxWidth=1048576&maxHeight=1048576&zoom=400", 400, 200},
		{"maxWidth=50", 50, 25},
	}
	for _, tt := range tests {
		rec := doJSON(t, h, http.MethodGet, base+"/image?display=1&"+tt.query, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, body %s", tt.query, rec.Code, rec.Body.String())
		}
		cfg, err := png.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
		if err != nil || cfg.Width != tt.wantW || cfg.Height != tt.wantH {
			t.Errorf("%s: display = %dx%d (err %v), want %dx%d", tt.query, cfg.Width, cfg.Height, err, tt.wantW, tt.wantH)
		}
	}
}

func TestStatelessServer(t *testing.T) {
	h := New(succeeding(t), nil, Options{}).Handler()

	if rec := doJSON(t, h, http.MethodGet, "/image-edit", nil); rec.Code != http.StatusOK {
		t.Errorf("describe status = %d, want 200", rec.Code)
	}
	rec := doJSON(t, h, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if _, ok := decode[map[string]interface{}](t, rec)["sessions"]; ok {
		t.Error("stateless health should not report a session count")
	}
	for _, path := range []string{"/api/sessions", "/api/sessions/abc/operations"} {
		if rec := doJSON(t, h, http.MethodPost, path, nil); rec.Code != http.StatusNotFound {
			t.Errorf("POST %s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestCreateSession_Empty(t *testing.T) {
	h, _ := newTestServer(t, succeeding(t), Options{})
	rec := doJSON(t, h, http.MethodPost, "/api/sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	snap := decode[session.Snapshot](t, rec)
	if snap.State != session.StateEmpty {
		t.Errorf("state = %s", snap.State)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/sessions/"+snap.ID+"/operations", map[string]string{"operation": "enhance"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("operation without image status = %d, want 400", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+snap.ID+"/image", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("image without upload status = %d, want 404", rec.Code)
	}
}

func TestApplyOperation_RemoteFailure(t *testing.T) {
	editor := failing()
	h, _ := newTestServer(t, editor, Options{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartFile(t, "/api/sessions", "photo.png", testPNG(t, color.White, 8, 8)))
	snap := decode[session.Snapshot](t, rec)

	rec = doJSON(t, h, http.MethodPost, "/api/sessions/"+snap.ID+"/operations", map[string]string{"operation": "enhance"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var body struct {
		Error    string           `json:"error"`
		Snapshot session.Snapshot `json:"snapshot"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error == "" || len(body.Snapshot.History) != 0 || body.Snapshot.HistoryIndex != -1 {
		t.Errorf("failure body = %+v", body)
	}
	if editor.callCount() != 1 {
		t.Errorf("editor calls = %d, want 1", editor.callCount())
	}
}

func TestApplyOperation_Busy(t *testing.T) {
	editor := succeeding(t)
	editor.started = make(chan struct{}, 1)
	editor.release = make(chan struct{})
	h, _ := newTestServer(t, editor, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartFile(t, "/api/sessions", "photo.png", testPNG(t, color.White, 8, 8)))
	base := "/api/sessions/" + decode[session.Snapshot](t, rec).ID

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- doJSON(t, h, http.MethodPost, base+"/operations", map[string]string{"operation": "enhance"})
	}()
	<-editor.started

	rec = doJSON(t, h, http.MethodPost, base+"/operations", map[string]string{"operation": "enhance"})
	if rec.Code != http.StatusConflict {
		t.Errorf("concurrent operation status = %d, want 409", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPost, base+"/reset", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("reset while busy status = %d, want 409", rec.Code)
	}

	close(editor.release)
	if first := <-done; first.Code != http.StatusOK {
		t.Errorf("first operation status = %d", first.Code)
	}
	if editor.callCount() != 1 {
		t.Errorf("editor calls = %d, want 1", editor.callCount())
	}
}

func TestCORS(t *testing.T) {
	h, _ := newTestServer(t, succeeding(t), Options{AllowedOrigins: []string{"https://edit.example.com"}})

	tests := []struct {
		origin string
		allow  bool
	}{
		{"http://localhost:5173", true},
		{"http://127.0.0.1:3000", true},
		{"https://edit.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/image-edit", nil)
		req.Header.Set("Origin", tt.origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("%s: preflight status = %d, want 204", tt.origin, rec.Code)
		}
		got := rec.Header().Get("Access-Control-Allow-Origin") == tt.origin
		if got != tt.allow {
			t.Errorf("%s: allowed = %v, want %v", tt.origin, got, tt.allow)
		}
	}
}

func TestOriginVerify(t *testing.T) {
	h, _ := newTestServer(t, succeeding(t), Options{OriginVerifySecret: "s3cret"})

	rec := doJSON(t, h, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("without header status = %d, want 403", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("x-origin-verify", "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with header status = %d, want 200", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	h, _ := newTestServer(t, succeeding(t), Options{})
	rec := doJSON(t, h, http.MethodGet, "/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/api/sessions/does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", rec.Code)
	}
}

func TestCollapsePath(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"/api/health", "/api/health"},
		{"/api/sessions/3f2b8c1e-9d4a-4b7e-8c21-0a1b2c3d4e5f/undo", "/api/sessions/*/undo"},
		{"/image-edit/", "/image-edit"},
	}
	for _, tt := range tests {
		if got := collapsePath(tt.path); got != tt.want {
			t.Errorf("collapsePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

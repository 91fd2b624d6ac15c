package panel

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandlerServesEmbeddedAssets(t *testing.T) {
	handler := Handler("")

	tests := []struct {
		path string
		want string
	}{
		{"/", "<!DOCTYPE html>"},
		{"/app.js", "/api/v1"},
		{"/style.css", "body"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, handler, tt.path)
			if w.Code != http.StatusOK {
				t.Fatalf("GET %s: got status %d, want 200", tt.path, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.want) {
				t.Errorf("GET %s: body missing %q", tt.path, tt.want)
			}
			if got := w.Header().Get("Cache-Control"); got != "no-cache, must-revalidate" {
				t.Errorf("Cache-Control = %q", got)
			}
		})
	}
}

func TestHandlerFallsBackToIndex(t *testing.T) {
	handler := Handler("")

	for _, path := range []string{"/nonexistent", "/some/deep/route"} {
		w := get(t, handler, path)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: got status %d, want 200", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
			t.Errorf("GET %s: fallback didn't serve index.html", path)
		}
	}
}

func TestHandlerFilesystemMode(t *testing.T) {
	dir := t.TempDir()
	index := `<!DOCTYPE html><html><body>filesystem console</body></html>`
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log('dev')"), 0o644); err != nil {
		t.Fatal(err)
	}

	handler := Handler(dir)

	if w := get(t, handler, "/"); !strings.Contains(w.Body.String(), "filesystem console") {
		t.Errorf("GET /: expected filesystem content, got %q", w.Body.String())
	}
	if w := get(t, handler, "/app.js"); !strings.Contains(w.Body.String(), "dev") {
		t.Errorf("GET /app.js: expected filesystem content, got %q", w.Body.String())
	}
	if w := get(t, handler, "/deep/route"); !strings.Contains(w.Body.String(), "filesystem console") {
		t.Error("filesystem fallback didn't serve index.html")
	}
}

func TestHandlerInvalidDirFallsBackToEmbed(t *testing.T) {
	handler := Handler("/nonexistent/dir/that/does/not/exist")

	w := get(t, handler, "/")
	if w.Code != http.StatusOK {
		t.Errorf("invalid dir GET /: got status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "rigdash") {
		t.Error("invalid dir: didn't fall back to embedded index.html")
	}
}

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/rigdash/internal/device"
	"github.com/nerrad567/rigdash/internal/pintest"
	"github.com/nerrad567/rigdash/internal/rig"
	"github.com/nerrad567/rigdash/internal/rig/rigtest"
	"github.com/nerrad567/rigdash/internal/series"
)

// execute runs the command tree with args and returns combined output.
func execute(ctx context.Context, args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// fakeRig starts a fake rig and points the default config at it.
func fakeRig(t *testing.T) *rigtest.Server {
	t.Helper()
	fake := rigtest.New(t)
	fake.AddSensor(0, "strain")
	fake.SetData(rig.KindSensor, 0, []series.Sample{{T: 0, V: 1.5}, {T: 1, V: 2.5}})

	t.Setenv(configEnv, "")
	t.Setenv("RIGDASH_RIG_BASE_URL", fake.BaseURL())
	return fake
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestServe_InvalidConfig verifies serve fails with an invalid config path.
func TestServe_InvalidConfig(t *testing.T) {
	t.Setenv(configEnv, "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := execute(ctx, "serve"); err == nil {
		t.Fatal("serve should fail with invalid config path")
	}
}

func TestServe_FlagOverridesEnv(t *testing.T) {
	t.Setenv(configEnv, "/nonexistent/path/config.yaml")
	path := writeConfig(t, "api:\n  port: 0\n")

	_, err := execute(context.Background(), "--config", path, "serve")
	if err == nil || !strings.Contains(err.Error(), "api.port") {
		t.Fatalf("error = %v, want api.port validation error from the flag's file", err)
	}
}

// TestServe_RunsUntilCancelled starts the full application against a fake
// rig and an on-disk archive, then shuts it down.
func TestServe_RunsUntilCancelled(t *testing.T) {
	fake := fakeRig(t)
	const port = 19181

	path := writeConfig(t, fmt.Sprintf(`
rig:
  base_url: %q
  timeout: 2000
poller:
  interval: 50
control:
  interval: 50
  retry_interval: 50
errorlog:
  enabled: true
  interval: 50
  retry_interval: 50
database:
  enabled: true
  path: %q
  retention: 1
api:
  host: "127.0.0.1"
  port: %d
logging:
  level: error
  format: text
`, fake.BaseURL(), filepath.Join(t.TempDir(), "rigdash.db"), port))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := execute(ctx, "--config", path, "serve")
		done <- err
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url) //nolint:gosec,noctx // test URL
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became healthy: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	for fake.Requests("control") == 0 || fake.Requests("errorlog") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("background pollers never reached the rig")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned %v, want nil on shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestExport_TSVToStdout(t *testing.T) {
	fakeRig(t)

	out, err := execute(context.Background(), "export", "sensor/0")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	for _, want := range []string{"# sensor/0", "time\tvalue", "1\t2.5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestExport_XLSXToFile(t *testing.T) {
	fakeRig(t)
	path := filepath.Join(t.TempDir(), "run.xlsx")

	if _, err := execute(context.Background(), "export", "-f", "xlsx", "-o", path, "sensor/0"); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Error("xlsx output is not a zip archive")
	}
}

func TestExport_Errors(t *testing.T) {
	fakeRig(t)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"bad ref", []string{"export", "sensor"}, device.ErrInvalidRef},
		{"bad format", []string{"export", "-f", "csv", "sensor/0"}, nil},
		{"no devices", []string{"export"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(context.Background(), tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPins_ReadADC(t *testing.T) {
	fake := fakeRig(t)
	fake.SetADC(3, 1234)

	out, err := execute(context.Background(), "pins", "read", "adc", "3")
	if err != nil {
		t.Fatalf("pins read: %v", err)
	}
	if !strings.Contains(out, "adc/3 = 1234") {
		t.Errorf("output = %q", out)
	}
	if got := fake.Requests("pin"); got != 3 {
		t.Errorf("pin requests = %d, want export, read and unexport", got)
	}
}

func TestPins_SetGPO(t *testing.T) {
	fakeRig(t)

	out, err := execute(context.Background(), "pins", "set", "gpo", "4", "on")
	if err != nil {
		t.Fatalf("pins set: %v", err)
	}
	if !strings.Contains(out, "GPIO4 set to 1") {
		t.Errorf("output = %q", out)
	}
}

func TestPins_KeepLeavesPinExported(t *testing.T) {
	fake := fakeRig(t)

	if _, err := execute(context.Background(), "pins", "read", "gpi", "4", "--keep"); err != nil {
		t.Fatalf("pins read: %v", err)
	}
	if got := fake.Requests("pin"); got != 2 {
		t.Errorf("pin requests = %d, want export and read only", got)
	}
	// A second export finds the pin already exported and carries on.
	if _, err := execute(context.Background(), "pins", "read", "gpi", "4"); err != nil {
		t.Fatalf("second read: %v", err)
	}
}

func TestPins_Errors(t *testing.T) {
	fakeRig(t)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"unknown pin", []string{"pins", "read", "gpi", "999"}, pintest.ErrUnknownPin},
		{"bad number", []string{"pins", "read", "adc", "x"}, pintest.ErrInvalidInput},
		{"read an output", []string{"pins", "read", "gpo", "4"}, pintest.ErrWrongType},
		{"drive an input", []string{"pins", "set", "adc", "0", "on"}, pintest.ErrWrongType},
		{"bad level", []string{"pins", "set", "gpo", "4", "maybe"}, pintest.ErrInvalidInput},
		{"bad duty", []string{"pins", "set", "pwm", "1", "on", "--duty", "2"}, pintest.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(context.Background(), tt.args...)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPins_List(t *testing.T) {
	out, err := execute(context.Background(), "pins", "list")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"gpio [4 5", "pwm  [0 1", "adc  [0 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

package rig_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/rigdash/internal/infrastructure/config"
	"github.com/nerrad567/rigdash/internal/rig"
	"github.com/nerrad567/rigdash/internal/rig/rigtest"
	"github.com/nerrad567/rigdash/internal/series"
)

func newClient(t *testing.T, fake *rigtest.Server) *rig.Client {
	t.Helper()
	c, err := rig.NewWithHTTPClient(fake.BaseURL(), &http.Client{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewWithHTTPClient() error = %v", err)
	}
	return c
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	if _, err := rig.New(config.RigConfig{BaseURL: "/api/", Timeout: 100}); err == nil {
		t.Error("New() with relative URL: want error")
	}
}

func TestIdentify(t *testing.T) {
	fake := rigtest.New(t)
	fake.AddSensor(0, "strain0")
	fake.AddSensor(1, "pressure_high")
	fake.AddActuator(0, "solenoid")
	fake.SetRunningTime(42.5)

	id, err := newClient(t, fake).Identify(context.Background())
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if id.Sensors["1"] != "pressure_high" {
		t.Errorf("Sensors = %v", id.Sensors)
	}
	if id.Actuators["0"] != "solenoid" {
		t.Errorf("Actuators = %v", id.Actuators)
	}
	if id.RunningTime != 42.5 {
		t.Errorf("RunningTime = %v, want 42.5", id.RunningTime)
	}
	if !id.LoggedIn || id.FriendlyName != "tester" {
		t.Errorf("login fields = %v/%q", id.LoggedIn, id.FriendlyName)
	}
}

func TestData_Range(t *testing.T) {
	fake := rigtest.New(t)
	fake.AddSensor(2, "strain2")
	fake.SetData(rig.KindSensor, 2, []series.Sample{{T: 1, V: 10}, {T: 2, V: 20}, {T: 3, V: 30}, {T: 4, V: 40}})

	c := newClient(t, fake)
	start, end := 2.0, 3.0
	data, err := c.Data(context.Background(), rig.KindSensor, 2, rig.Range{Start: &start, End: &end})
	if err != nil {
		t.Fatalf("Data() error = %v", err)
	}
	if data.Name != "strain2" || data.ID != 2 {
		t.Errorf("Data() id/name = %d/%q", data.ID, data.Name)
	}
	if data.RunningTime != 4 {
		t.Errorf("RunningTime = %v, want 4", data.RunningTime)
	}
	if len(data.Samples) != 2 || data.Samples[0].T != 2 || data.Samples[1].V != 30 {
		t.Errorf("Samples = %v", data.Samples)
	}

	// Relative start: the last second of the experiment.
	data, err = c.Data(context.Background(), rig.KindSensor, 2, rig.Since(-1))
	if err != nil {
		t.Fatalf("Data(Since(-1)) error = %v", err)
	}
	if len(data.Samples) != 2 {
		t.Errorf("relative range returned %v", data.Samples)
	}
}

func TestData_ErrorClasses(t *testing.T) {
	tests := []struct {
		name   string
		mode   int
		target error
	}{
		{"http failure", rigtest.FailHTTP, rig.ErrTransport},
		{"negative status", rigtest.FailStatus, rig.ErrAPI},
		{"bad json", rigtest.FailMalformed, rig.ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := rigtest.New(t)
			fake.AddSensor(0, "s")
			fake.FailModule("sensors", tt.mode)

			_, err := newClient(t, fake).Data(context.Background(), rig.KindSensor, 0, rig.Range{})
			if !errors.Is(err, tt.target) {
				t.Errorf("error = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestData_UnreachableIsTransport(t *testing.T) {
	fake := rigtest.New(t)
	c := newClient(t, fake)
	fake.Close()

	_, err := c.Data(context.Background(), rig.KindSensor, 0, rig.Range{})
	if !errors.Is(err, rig.ErrTransport) {
		t.Errorf("error = %v, want ErrTransport", err)
	}
}

func TestAPIError(t *testing.T) {
	fake := rigtest.New(t)
	_, err := newClient(t, fake).Data(context.Background(), rig.KindActuator, 7, rig.Range{})

	var apiErr *rig.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Status != rig.StatusError {
		t.Errorf("Status = %d, want %d", apiErr.Status, rig.StatusError)
	}
	if !strings.Contains(apiErr.Error(), "Invalid actuator id") {
		t.Errorf("Error() = %q", apiErr.Error())
	}
}

func TestControl_AcquireSetRelease(t *testing.T) {
	fake := rigtest.New(t)
	fake.SetState(rig.StateStart, "burst test", "alice")
	c := newClient(t, fake)
	ctx := context.Background()

	st, err := c.AcquireControl(ctx, "", false)
	if err != nil {
		t.Fatalf("AcquireControl() error = %v", err)
	}
	if st.Key == "" || st.Key != fake.Key() {
		t.Fatalf("key = %q, rig holds %q", st.Key, fake.Key())
	}
	if st.StateID != rig.StateStart || st.UserName != "alice" {
		t.Errorf("status = %+v", st)
	}

	// A second, non-forced acquire is refused.
	_, err = c.AcquireControl(ctx, "", false)
	if !rig.HasStatus(err, rig.StatusUnauthorized) {
		t.Errorf("second acquire error = %v, want unauthorized", err)
	}

	if _, err := c.SetActuator(ctx, st.Key, 0, 1.5); err != nil {
		t.Errorf("SetActuator() error = %v", err)
	}
	if _, err := c.SetActuator(ctx, "wrong", 0, 1.5); !rig.HasStatus(err, rig.StatusUnauthorized) {
		t.Errorf("SetActuator(wrong key) error = %v, want unauthorized", err)
	}
	if _, err := c.SetActuator(ctx, "", 0, 1.5); !errors.Is(err, rig.ErrNoKey) {
		t.Errorf("SetActuator(no key) error = %v, want ErrNoKey", err)
	}

	if err := c.ReleaseControl(ctx, st.Key); err != nil {
		t.Errorf("ReleaseControl() error = %v", err)
	}
	if fake.Key() != "" {
		t.Error("rig still holds a key after release")
	}
}

func TestControl_ForceAcquire(t *testing.T) {
	fake := rigtest.New(t)
	c := newClient(t, fake)
	ctx := context.Background()

	first, err := c.AcquireControl(ctx, "", false)
	if err != nil {
		t.Fatalf("AcquireControl() error = %v", err)
	}
	second, err := c.AcquireControl(ctx, "", true)
	if err != nil {
		t.Fatalf("forced AcquireControl() error = %v", err)
	}
	if first.Key == second.Key {
		t.Error("forced acquire did not issue a new key")
	}
}

func TestControl_EmergencyStop(t *testing.T) {
	fake := rigtest.New(t)
	fake.SetState(rig.StateStart, "x", "y")
	c := newClient(t, fake)

	if _, err := c.EmergencyStop(context.Background()); err != nil {
		t.Fatalf("EmergencyStop() error = %v", err)
	}
	st, err := c.ControlStatus(context.Background())
	if err != nil {
		t.Fatalf("ControlStatus() error = %v", err)
	}
	if st.StateID != rig.StateStop {
		t.Errorf("StateID = %d, want stop", st.StateID)
	}
}

func TestPin(t *testing.T) {
	fake := rigtest.New(t)
	c := newClient(t, fake)
	ctx := context.Background()

	desc, err := c.Pin(ctx, rig.PinRequest{Type: rig.PinGPI, Num: 5, Export: 1})
	if err != nil {
		t.Fatalf("export error = %v", err)
	}
	if desc != "Pin (un)export OK!" {
		t.Errorf("export description = %q", desc)
	}

	on := true
	text, err := c.Pin(ctx, rig.PinRequest{Type: rig.PinGPO, Num: 5, Set: &on})
	if err != nil {
		t.Fatalf("gpo set error = %v", err)
	}
	if text != "GPIO5 set to 1" {
		t.Errorf("gpo reply = %q", text)
	}

	text, err = c.Pin(ctx, rig.PinRequest{Type: rig.PinGPI, Num: 5})
	if err != nil {
		t.Fatalf("gpi read error = %v", err)
	}
	if text != "GPIO5 reads 1" {
		t.Errorf("gpi reply = %q", text)
	}

	_, err = c.Pin(ctx, rig.PinRequest{Type: rig.PinGPI, Num: 5, Export: 1})
	if !rig.HasStatus(err, rig.StatusAlreadyExists) {
		t.Errorf("re-export error = %v, want already exists", err)
	}
}

func TestErrorLog(t *testing.T) {
	fake := rigtest.New(t)
	fake.SetErrorLog("ERROR: pressure sensor timeout\n")

	text, err := newClient(t, fake).ErrorLog(context.Background())
	if err != nil {
		t.Fatalf("ErrorLog() error = %v", err)
	}
	if !strings.Contains(text, "pressure sensor timeout") {
		t.Errorf("ErrorLog() = %q", text)
	}
}

func TestDataURL(t *testing.T) {
	c, err := rig.NewWithHTTPClient("http://rig.local/api", nil)
	if err != nil {
		t.Fatal(err)
	}
	got := c.DataURL(rig.KindActuator, 3, "tsv")
	want := "http://rig.local/api/actuators?format=tsv&id=3&start_time=0"
	if got != want {
		t.Errorf("DataURL() = %q, want %q", got, want)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Link.Device != "/dev/ttyACM0" || cfg.Link.BaudRate != 115200 {
		t.Fatalf("link defaults wrong: %+v", cfg.Link)
	}
	if cfg.Link.SettleDelay != 2*time.Second || cfg.Link.ReadTimeout != time.Second {
		t.Fatalf("link timing defaults wrong: %+v", cfg.Link)
	}
	if cfg.Generator.Cabins != 10 || cfg.Generator.Pace != 500*time.Millisecond {
		t.Fatalf("generator defaults wrong: %+v", cfg.Generator)
	}
	if cfg.Scenario.TimeUnit != time.Second || cfg.Scenario.ScriptsDir != "scenarios" {
		t.Fatalf("scenario defaults wrong: %+v", cfg.Scenario)
	}
	if cfg.Server.Port != "" || cfg.MQTT.Enabled {
		t.Fatal("server and mqtt should be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := writeFile(t, "coachgen.yaml", `
link:
  device: " /dev/ttyUSB0 "
  baud_rate: 57600
  settle_delay: 500ms
generator:
  cabins: 12
  seed: 99
scenario:
  time_unit: 100ms
mqtt:
  enabled: true
  topic_prefix: "train/coach1/"
log:
  level: DEBUG
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Link.Device != "/dev/ttyUSB0" {
		t.Errorf("device not trimmed: %q", cfg.Link.Device)
	}
	if cfg.Link.BaudRate != 57600 || cfg.Link.SettleDelay != 500*time.Millisecond {
		t.Errorf("link not loaded: %+v", cfg.Link)
	}
	if cfg.Link.ReadTimeout != time.Second {
		t.Errorf("unset key lost its default: %v", cfg.Link.ReadTimeout)
	}
	if cfg.Generator.Cabins != 12 || cfg.Generator.Seed != 99 {
		t.Errorf("generator not loaded: %+v", cfg.Generator)
	}
	if cfg.Scenario.TimeUnit != 100*time.Millisecond {
		t.Errorf("time unit = %v", cfg.Scenario.TimeUnit)
	}
	if cfg.MQTT.TopicPrefix != "train/coach1" {
		t.Errorf("topic prefix not sanitized: %q", cfg.MQTT.TopicPrefix)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level not normalized: %q", cfg.Log.Level)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("COACHGEN_LINK_DEVICE", "/dev/ttyS3")
	t.Setenv("COACHGEN_GENERATOR_CABINS", "4")

	path := writeFile(t, "coachgen.yaml", "link:\n  device: /dev/ttyACM1\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Link.Device != "/dev/ttyS3" {
		t.Errorf("env should win over file: %q", cfg.Link.Device)
	}
	if cfg.Generator.Cabins != 4 {
		t.Errorf("cabins = %d", cfg.Generator.Cabins)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "nope.yaml") {
		t.Fatalf("expected read error naming the file, got %v", err)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"zero cabins", "generator:\n  cabins: 0\n", "generator.cabins"},
		{"zero baud", "link:\n  baud_rate: 0\n", "link.baud_rate"},
		{"negative rate", "link:\n  rate_limit: -1\n", "link.rate_limit"},
		{"rate without burst", "link:\n  rate_limit: 5\n  rate_burst: 0\n", "link.rate_burst"},
		{"mqtt without broker", "mqtt:\n  enabled: true\n  broker: \"\"\n", "mqtt.broker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "coachgen.yaml", tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("got %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

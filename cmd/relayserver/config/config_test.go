package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfigMissingFileFallsBackToDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	LoadConfig("no-such-config-file.yaml")

	if got := viper.GetString("listenaddress"); got != ":8080" {
		t.Fatalf("listenaddress = %q, want %q", got, ":8080")
	}
	if got := viper.GetDuration("probeinterval"); got != 30*time.Second {
		t.Fatalf("probeinterval = %v, want 30s", got)
	}
}

func TestLoadConfigMissingFileKeepsEnvironmentOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("LISTENADDRESS", ":9999")

	LoadConfig("no-such-config-file.yaml")

	if got := viper.GetString("listenaddress"); got != ":9999" {
		t.Fatalf("listenaddress = %q, want the environment-supplied %q", got, ":9999")
	}
}

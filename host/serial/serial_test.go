//go:build !tinygo

package serial

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyUSB0")
	if cfg.Baud != 115200 || cfg.Device != "/dev/ttyUSB0" {
		t.Errorf("got %+v", cfg)
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := Open(&Config{Baud: 115200}); err == nil {
		t.Error("expected error for empty device")
	}

	missing := filepath.Join(t.TempDir(), "ttyNONE")
	_, err := Open(DefaultConfig(missing))
	if err == nil {
		t.Fatal("expected error for missing device")
	}
	if !strings.Contains(err.Error(), missing) {
		t.Errorf("error %q does not name the device", err)
	}
}

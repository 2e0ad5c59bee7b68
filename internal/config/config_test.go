package config

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want *Config
	}{
		{
			name: "all values set",
			env: map[string]string{
				"ISLET_DB":  "/tmp/islet.db",
				"LOG_LEVEL": "debug",
			},
			want: &Config{
				DatabasePath: "/tmp/islet.db",
				LogLevel:     "debug",
			},
		},
		{
			name: "log level defaults to warn",
			env:  map[string]string{"ISLET_DB": "/tmp/islet.db", "LOG_LEVEL": ""},
			want: &Config{
				DatabasePath: "/tmp/islet.db",
				LogLevel:     "warn",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			got, err := Load()
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadDefaultPath(t *testing.T) {
	t.Setenv("ISLET_DB", "")

	got, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if filepath.Base(got.DatabasePath) != "islet.db" {
		t.Errorf("default database path = %q, want an islet.db under the user config dir", got.DatabasePath)
	}
}

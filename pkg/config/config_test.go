package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "memman")
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("name: ${SAMPLE_NAME}\nport: 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "memman" || s.Port != 9 {
		t.Errorf("got %+v", s)
	}
}

func TestLoad_Validates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("name: x\nport: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var s sample
	if err := Load(path, &s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadOrDefault_Missing(t *testing.T) {
	s := sample{Name: "default", Port: 1}
	found, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"), &s)
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if found || s.Name != "default" {
		t.Errorf("found=%v s=%+v, want defaults kept", found, s)
	}
}

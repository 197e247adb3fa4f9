package pkg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rebuild.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	return path
}

func TestDefaultRebuildConfig(t *testing.T) {
	config := DefaultRebuildConfig()
	if config.Alignment != DefaultAlignment {
		t.Errorf("Alignment = %d, want %d", config.Alignment, uint64(DefaultAlignment))
	}
	if config.RebuildSystemData == nil || !*config.RebuildSystemData {
		t.Error("RebuildSystemData should default to true")
	}
}

func TestLoadRebuildConfig(t *testing.T) {
	path := writeConfigFile(t, "alignment: 4096\nrebuild_systemdata: false\n")

	config, err := LoadRebuildConfig(path)
	if err != nil {
		t.Fatalf("LoadRebuildConfig() failed: %v", err)
	}
	if config.Alignment != 4096 {
		t.Errorf("Alignment = %d, want 4096", config.Alignment)
	}
	if config.RebuildSystemData == nil || *config.RebuildSystemData {
		t.Error("RebuildSystemData should be false")
	}
}

func TestLoadRebuildConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfigFile(t, "alignment: 8192\n")

	config, err := LoadRebuildConfig(path)
	if err != nil {
		t.Fatalf("LoadRebuildConfig() failed: %v", err)
	}
	if config.Alignment != 8192 {
		t.Errorf("Alignment = %d, want 8192", config.Alignment)
	}
	if config.RebuildSystemData == nil || !*config.RebuildSystemData {
		t.Error("an unset rebuild_systemdata should keep the default true")
	}
}

func TestLoadRebuildConfig_AlignmentTooSmall(t *testing.T) {
	path := writeConfigFile(t, "alignment: 2\n")

	_, err := LoadRebuildConfig(path)
	if err == nil {
		t.Fatal("LoadRebuildConfig() should reject an alignment below the floor")
	}
	if !strings.Contains(err.Error(), "alignment") {
		t.Errorf("error %q should mention the alignment", err)
	}
}

func TestLoadRebuildConfig_Missing(t *testing.T) {
	if _, err := LoadRebuildConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("LoadRebuildConfig() should fail on a missing file")
	}
}

func TestLoadRebuildConfig_Malformed(t *testing.T) {
	path := writeConfigFile(t, "alignment: [not a number\n")

	if _, err := LoadRebuildConfig(path); err == nil {
		t.Fatal("LoadRebuildConfig() should fail on malformed YAML")
	}
}

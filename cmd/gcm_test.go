package cmd

import (
	"testing"

	"github.com/hansbonini/gcmtools/pkg/common"
)

func TestGcmVerboseFlag(t *testing.T) {
	if gcmCmd.PersistentFlags().Lookup("verbose") == nil {
		t.Fatal("gcm should register a persistent verbose flag")
	}
	if gcmCmd.PersistentPreRunE == nil {
		t.Fatal("gcm should apply the verbose flag in a persistent pre-run")
	}
	// Every subcommand gets -v through the parent
	for _, sub := range gcmCmd.Commands() {
		if sub.InheritedFlags().Lookup("verbose") == nil {
			t.Errorf("%s: verbose flag not inherited", sub.Name())
		}
	}
}

func TestVerbosePreRunSetsMode(t *testing.T) {
	if err := gcmLsCmd.ParseFlags([]string{"--verbose"}); err != nil {
		t.Fatalf("ParseFlags() failed: %v", err)
	}
	if err := gcmCmd.PersistentPreRunE(gcmLsCmd, nil); err != nil {
		t.Fatalf("PersistentPreRunE() failed: %v", err)
	}
	if !common.VerboseMode {
		t.Error("verbose mode should be enabled after --verbose")
	}

	if err := gcmLsCmd.ParseFlags([]string{"--verbose=false"}); err != nil {
		t.Fatalf("ParseFlags() failed: %v", err)
	}
	if err := gcmCmd.PersistentPreRunE(gcmLsCmd, nil); err != nil {
		t.Fatalf("PersistentPreRunE() failed: %v", err)
	}
	if common.VerboseMode {
		t.Error("verbose mode should be disabled again")
	}
}

func TestInfoOffsetFlag(t *testing.T) {
	flag := gcmInfoCmd.Flags().Lookup("offset")
	if flag == nil {
		t.Fatal("info should register an offset flag")
	}
	if flag.Shorthand != "o" {
		t.Errorf("offset shorthand = %q, want o", flag.Shorthand)
	}
	if flag.DefValue != "0" {
		t.Errorf("offset default = %q, want 0", flag.DefValue)
	}
}

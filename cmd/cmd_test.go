package cmd_test

import (
	"testing"

	"github.com/zeuslawyer/remix-simulator/cmd"
)

func TestDefault(t *testing.T) {
	t.Parallel()
	baseCmd := cmd.NewCommand("testing", "default")
	// Avoid port conflict
	baseCmd.SetArgs([]string{"--config", "", "--http.port", "18545", "--log_level", "error"})
	err := baseCmd.Execute()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHTTPMode(t *testing.T) {
	t.Parallel()
	baseCmd := cmd.NewCommand("testing", "http")
	baseCmd.SetArgs([]string{"--config", "", "--http.port", "18546", "--http.mode", "http", "--http.compression", "--log_level", "error"})
	err := baseCmd.Execute()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestInvalidMode(t *testing.T) {
	t.Parallel()
	baseCmd := cmd.NewCommand("testing", "invalid")
	baseCmd.SetArgs([]string{"--config", "", "--http.port", "18547", "--http.mode", "grpc"})
	err := baseCmd.Execute()
	if err == nil {
		t.Error("expected error, got nil")
	}
}

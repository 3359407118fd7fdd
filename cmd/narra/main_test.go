// ABOUTME: Tests for the CLI error-to-exit-code mapping
// ABOUTME: User errors exit 1, system errors 2, blocked writes 3
package main

import (
	"errors"
	"testing"

	"github.com/florinutz/narra/internal/narraerr"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation is a user error", narraerr.Validation("bad flag"), 1},
		{"not found is a user error", narraerr.NotFound("character", "character:ghost"), 1},
		{"conflict is a user error", narraerr.New(narraerr.KindConflict, "protected"), 1},
		{"consistency violation", narraerr.New(narraerr.KindConsistency, "contradicts a strict fact"), 3},
		{"database failure", narraerr.Database(errors.New("disk full"), "failed to save"), 2},
		{"plain error is a system error", errors.New("boom"), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

// Package hook is the stdin/stdout boundary to the agent runtime. Each
// invocation decodes one event, consults the loop, and writes one decision.
package hook

import (
	"fmt"
	"strings"

	"github.com/terrylica/ralph-universal/internal/guard"
)

const (
	EventPreToolUse = "PreToolUse"
	EventStop       = "Stop"
)

// ToolInput is the subset of a tool call's arguments the guard inspects.
type ToolInput struct {
	Command  string `json:"command"`
	FilePath string `json:"file_path"`
	Path     string `json:"path"`
}

// Input is a hook event. Agent runtimes send the nested tool_input form;
// scripts and tests may send command and target_paths directly.
type Input struct {
	SessionID      string    `json:"session_id"`
	Cwd            string    `json:"cwd"`
	HookEventName  string    `json:"hook_event_name"`
	ToolName       string    `json:"tool_name"`
	ToolInput      ToolInput `json:"tool_input"`
	StopHookActive bool      `json:"stop_hook_active"`
	Command        string    `json:"command"`
	TargetPaths    []string  `json:"target_paths"`
}

// Normalize trims fields and folds the nested form into Command.
func (in *Input) Normalize() {
	if in == nil {
		return
	}
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.Cwd = strings.TrimSpace(in.Cwd)
	in.HookEventName = strings.TrimSpace(in.HookEventName)
	in.ToolName = strings.TrimSpace(in.ToolName)
	in.Command = strings.TrimSpace(in.Command)
	if in.Command == "" {
		in.Command = strings.TrimSpace(in.ToolInput.Command)
	}
	paths := in.TargetPaths[:0:0]
	for _, p := range in.TargetPaths {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	in.TargetPaths = paths
}

// Validate rejects an event addressed to a different hook.
func (in Input) Validate(event string) error {
	if in.HookEventName != "" && !strings.EqualFold(in.HookEventName, event) {
		return fmt.Errorf("hook: %s event delivered to %s handler", in.HookEventName, event)
	}
	return nil
}

// Targets lists every path the invocation may touch: explicit paths, the
// tool's file argument, and words extracted from the command.
func (in Input) Targets() []string {
	targets := append([]string(nil), in.TargetPaths...)
	for _, p := range []string{in.ToolInput.FilePath, in.ToolInput.Path} {
		if p = strings.TrimSpace(p); p != "" {
			targets = append(targets, p)
		}
	}
	return append(targets, guard.ExtractTargets(in.Command)...)
}

package hook

// SpecificOutput carries the PreToolUse permission fields understood by the
// agent runtime.
type SpecificOutput struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision"`
	PermissionDecisionReason string `json:"permissionDecisionReason,omitempty"`
}

// Output is the JSON written to stdout. The process exits 0 whatever it says.
type Output struct {
	Decision           string          `json:"decision,omitempty"`
	Reason             string          `json:"reason,omitempty"`
	Continue           *bool           `json:"continue,omitempty"`
	StopReason         string          `json:"stopReason,omitempty"`
	SystemMessage      string          `json:"systemMessage,omitempty"`
	HookSpecificOutput *SpecificOutput `json:"hookSpecificOutput,omitempty"`
}

// Allow lets a tool call through.
func Allow() Output {
	return Output{Decision: "allow"}
}

// Deny rejects a tool call and tells the agent why.
func Deny(reason string) Output {
	return Output{
		Decision: "deny",
		Reason:   reason,
		HookSpecificOutput: &SpecificOutput{
			HookEventName:            EventPreToolUse,
			PermissionDecision:       "deny",
			PermissionDecisionReason: reason,
		},
	}
}

// Block keeps the agent working; reason becomes its next instruction.
func Block(reason string) Output {
	return Output{Decision: "block", Reason: reason}
}

// Halt ends the agent session outright.
func Halt(reason string) Output {
	no := false
	return Output{Continue: &no, StopReason: reason}
}

// Release lets the agent stop normally, with an optional note.
func Release(message string) Output {
	return Output{SystemMessage: message}
}

// Halted reports whether o ends the session.
func (o Output) Halted() bool {
	return o.Continue != nil && !*o.Continue
}

package config

import (
	"os"
	"strconv"
	"strings"
)

// RuntimeOptions are the feature switches merged from CLI flags and
// ORBIT_* environment variables, with CLI > env > default precedence.
type RuntimeOptions struct {
	Trace                 bool
	Stream                bool
	ThinkingMode          string // auto | on | off
	ReasoningEffort       string // none | low | medium | high
	ReasoningPreviewChars int
	SaveSession           bool
	SessionDir            string
	ThinkingCapability    string // auto | toggle | always | never
	ThinkingParamStyle    string // auto | enable_thinking | reasoning_effort | both
}

// RuntimeFlags holds raw CLI flag values; nil-style zero values mean the
// flag was not set and the environment or default should apply. Booleans
// use three-state strings ("", "true", "false") for that reason.
type RuntimeFlags struct {
	Trace                 string
	Stream                string
	ThinkingMode          string
	ReasoningEffort       string
	ReasoningPreviewChars int
	SaveSession           string
	SessionDir            string
	ThinkingCapability    string
	ThinkingParamStyle    string
}

var (
	boolTrue  = map[string]bool{"1": true, "true": true, "yes": true, "y": true, "on": true}
	boolFalse = map[string]bool{"0": true, "false": true, "no": true, "n": true, "off": true}

	allowedModes        = map[string]bool{"auto": true, "on": true, "off": true}
	allowedEfforts      = map[string]bool{"none": true, "low": true, "medium": true, "high": true}
	allowedCapabilities = map[string]bool{"auto": true, "toggle": true, "always": true, "never": true}
	allowedParamStyles  = map[string]bool{"auto": true, "enable_thinking": true, "reasoning_effort": true, "both": true}
)

// ResolveRuntimeOptions builds runtime options from CLI flags and environment.
func ResolveRuntimeOptions(flags RuntimeFlags) RuntimeOptions {
	opts := RuntimeOptions{
		Trace:                 resolveBool(flags.Trace, "ORBIT_TRACE", false),
		Stream:                resolveBool(flags.Stream, "ORBIT_STREAM", false),
		ThinkingMode:          resolveEnum(flags.ThinkingMode, "ORBIT_THINKING_MODE", "auto", allowedModes),
		ReasoningEffort:       resolveEnum(flags.ReasoningEffort, "ORBIT_REASONING_EFFORT", "none", allowedEfforts),
		ReasoningPreviewChars: resolveInt(flags.ReasoningPreviewChars, "ORBIT_REASONING_PREVIEW_CHARS", 200),
		SaveSession:           resolveBool(flags.SaveSession, "ORBIT_SAVE_SESSION", false),
		SessionDir:            resolveString(flags.SessionDir, "ORBIT_SESSION_DIR", "sessions"),
		ThinkingCapability:    resolveEnum(flags.ThinkingCapability, "ORBIT_THINKING_CAPABILITY", "auto", allowedCapabilities),
		ThinkingParamStyle:    resolveEnum(flags.ThinkingParamStyle, "ORBIT_THINKING_PARAM_STYLE", "auto", allowedParamStyles),
	}
	if opts.ReasoningPreviewChars < 0 {
		opts.ReasoningPreviewChars = 0
	}
	return opts
}

// AsMap returns a JSON-serializable form for session metadata records.
func (o RuntimeOptions) AsMap() map[string]interface{} {
	return map[string]interface{}{
		"trace":                   o.Trace,
		"stream":                  o.Stream,
		"thinking_mode":           o.ThinkingMode,
		"reasoning_effort":        o.ReasoningEffort,
		"reasoning_preview_chars": o.ReasoningPreviewChars,
		"save_session":            o.SaveSession,
		"session_dir":             o.SessionDir,
		"thinking_capability":     o.ThinkingCapability,
		"thinking_param_style":    o.ThinkingParamStyle,
	}
}

func resolveBool(cliValue, envName string, def bool) bool {
	if v := strings.ToLower(strings.TrimSpace(cliValue)); v != "" {
		if boolTrue[v] {
			return true
		}
		if boolFalse[v] {
			return false
		}
	}
	if raw, ok := os.LookupEnv(envName); ok {
		v := strings.ToLower(strings.TrimSpace(raw))
		if boolTrue[v] {
			return true
		}
		if boolFalse[v] {
			return false
		}
	}
	return def
}

func resolveEnum(cliValue, envName, def string, allowed map[string]bool) string {
	if v := strings.ToLower(strings.TrimSpace(cliValue)); allowed[v] {
		return v
	}
	if raw, ok := os.LookupEnv(envName); ok {
		if v := strings.ToLower(strings.TrimSpace(raw)); allowed[v] {
			return v
		}
	}
	return def
}

func resolveInt(cliValue int, envName string, def int) int {
	if cliValue > 0 {
		return cliValue
	}
	if raw, ok := os.LookupEnv(envName); ok {
		if v, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			return v
		}
	}
	return def
}

func resolveString(cliValue, envName, def string) string {
	if strings.TrimSpace(cliValue) != "" {
		return cliValue
	}
	if raw, ok := os.LookupEnv(envName); ok && strings.TrimSpace(raw) != "" {
		return strings.TrimSpace(raw)
	}
	return def
}

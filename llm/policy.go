package llm

import (
	"context"
	"strings"

	"github.com/t0mczak/orbit/session"
)

// Capability classifies how a backend accepts thinking controls.
type Capability string

// ParamStyle names the request parameter shape a backend understands.
type ParamStyle string

const (
	CapabilityToggle Capability = "toggle" // both on and off accepted
	CapabilityAlways Capability = "always" // only the on form accepted
	CapabilityNever  Capability = "never"  // thinking parameters rejected

	StyleEnableThinking  ParamStyle = "enable_thinking"
	StyleReasoningEffort ParamStyle = "reasoning_effort"
	StyleBoth            ParamStyle = "both"
	StyleNone            ParamStyle = "none"
)

// ThinkingPolicy is the resolved capability classification for a session.
// Resolved once per session and immutable afterwards; re-resolution only
// happens on an explicit setting change.
type ThinkingPolicy struct {
	Capability Capability
	ParamStyle ParamStyle
}

// ResolvePolicy resolves the effective thinking support, either from
// explicit settings or by probing the backend. Probes are two near-no-op
// requests per candidate parameter style, toggling the parameter on/off.
func ResolvePolicy(ctx context.Context, client Client, model, capabilitySetting, paramStyleSetting string) ThinkingPolicy {
	capability := normalizeSetting(capabilitySetting, "auto")
	style := normalizeSetting(paramStyleSetting, "auto")

	if capability != "auto" {
		resolved := ParamStyle(style)
		if style == "auto" {
			resolved = StyleEnableThinking
		}
		return ThinkingPolicy{Capability: Capability(capability), ParamStyle: resolved}
	}

	if client == nil || model == "" {
		return ThinkingPolicy{Capability: CapabilityNever, ParamStyle: StyleNone}
	}

	stylesToTry := []ParamStyle{StyleEnableThinking, StyleReasoningEffort, StyleBoth}
	if style != "auto" {
		stylesToTry = []ParamStyle{ParamStyle(style)}
	}

	for _, candidate := range stylesToTry {
		supportsOn := probe(ctx, client, model, paramsForEnabledState(candidate, true, "low"))
		supportsOff := probe(ctx, client, model, paramsForEnabledState(candidate, false, "low"))

		switch {
		case supportsOn && supportsOff:
			return ThinkingPolicy{Capability: CapabilityToggle, ParamStyle: candidate}
		case supportsOn:
			return ThinkingPolicy{Capability: CapabilityAlways, ParamStyle: candidate}
		case supportsOff:
			return ThinkingPolicy{Capability: CapabilityNever, ParamStyle: candidate}
		}
	}

	return ThinkingPolicy{Capability: CapabilityNever, ParamStyle: StyleNone}
}

// BuildThinkingParams maps the user-level mode (auto/on/off) onto concrete
// request parameters for the resolved policy. An empty map means the
// request carries no thinking parameters at all.
func BuildThinkingParams(policy ThinkingPolicy, thinkingMode, reasoningEffort string) map[string]interface{} {
	mode := normalizeSetting(thinkingMode, "auto")
	effort := normalizeSetting(reasoningEffort, "none")

	if policy.Capability == CapabilityNever || policy.ParamStyle == StyleNone {
		return map[string]interface{}{}
	}

	enabled, apply := resolveEnabledState(policy, mode)
	if !apply {
		return map[string]interface{}{}
	}
	return paramsForEnabledState(policy.ParamStyle, enabled, effort)
}

// resolveEnabledState decides whether the request should force thinking on
// or off; apply=false means the parameter is omitted entirely.
func resolveEnabledState(policy ThinkingPolicy, mode string) (enabled, apply bool) {
	switch mode {
	case "on":
		if policy.Capability == CapabilityToggle || policy.Capability == CapabilityAlways {
			return true, true
		}
	case "off":
		if policy.Capability == CapabilityToggle {
			return false, true
		}
	default:
		// auto: only pin an explicit state for always-on backends
		if policy.Capability == CapabilityAlways {
			return true, true
		}
	}
	return false, false
}

func paramsForEnabledState(style ParamStyle, enabled bool, reasoningEffort string) map[string]interface{} {
	effort := reasoningEffort
	if effort == "" {
		effort = "low"
	}
	if !enabled {
		effort = "none"
	}

	switch style {
	case StyleEnableThinking:
		return map[string]interface{}{"enable_thinking": enabled}
	case StyleReasoningEffort:
		return map[string]interface{}{"reasoning_effort": effort}
	case StyleBoth:
		return map[string]interface{}{"enable_thinking": enabled, "reasoning_effort": effort}
	}
	return map[string]interface{}{}
}

func probe(ctx context.Context, client Client, model string, params map[string]interface{}) bool {
	_, err := client.Chat(ctx, Request{
		Model:     model,
		Messages:  []session.Message{session.User("ping")},
		MaxTokens: 1,
		Thinking:  params,
	})
	return err == nil
}

func normalizeSetting(value, def string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return def
	}
	return normalized
}

// Package extract normalizes webhook reply payloads into a display string.
//
// Upstream workflows have shipped several response shapes over time. The
// probe order below encodes compatibility with all of them and is a
// contract: reordering it changes which field wins for payloads that match
// more than one shape.
package extract

import "encoding/json"

// Fallback is returned when no known payload shape matches.
const Fallback = "I received your message, but I'm not sure how to respond to it. Please try again or ask something else."

// workflowStartedSentinel is the acknowledgment n8n sends before a workflow
// produces output; it is never a real reply.
const workflowStartedSentinel = "Workflow was started"

// Reply maps a raw JSON payload to the assistant's display string, trying
// each known payload shape in precedence order.
func Reply(raw []byte) string {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Fallback
	}
	return replyFrom(payload)
}

type probe func(payload any) (string, bool)

// probes in precedence order; first match wins.
var probes = []probe{
	nestedMessageContent,
	firstElementOutput,
	firstElementMessageContent,
	topLevelOutput,
	topLevelReply,
	topLevelMessage,
}

func replyFrom(payload any) string {
	for _, p := range probes {
		if text, ok := p(payload); ok {
			return text
		}
	}
	return Fallback
}

// {"message": {"content": "..."}}
func nestedMessageContent(payload any) (string, bool) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	msg, ok := obj["message"].(map[string]any)
	if !ok {
		return "", false
	}
	text, ok := msg["content"].(string)
	return text, ok
}

// [{"output": "..."}]
func firstElementOutput(payload any) (string, bool) {
	first, ok := firstElement(payload)
	if !ok {
		return "", false
	}
	text, ok := first["output"].(string)
	return text, ok
}

// [{"message": {"content": "..."}}]
func firstElementMessageContent(payload any) (string, bool) {
	first, ok := firstElement(payload)
	if !ok {
		return "", false
	}
	return nestedMessageContent(first)
}

// {"output": "..."}
func topLevelOutput(payload any) (string, bool) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	text, ok := obj["output"].(string)
	return text, ok
}

// {"reply": "..."}
func topLevelReply(payload any) (string, bool) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	text, ok := obj["reply"].(string)
	return text, ok
}

// {"message": "..."} — unless it is the workflow-started acknowledgment.
func topLevelMessage(payload any) (string, bool) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	text, ok := obj["message"].(string)
	if !ok || text == workflowStartedSentinel {
		return "", false
	}
	return text, true
}

func firstElement(payload any) (map[string]any, bool) {
	arr, ok := payload.([]any)
	if !ok || len(arr) == 0 {
		return nil, false
	}
	first, ok := arr[0].(map[string]any)
	return first, ok
}

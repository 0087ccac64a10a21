package server

import "coach-event-generator/internal/core"

// Command is an incoming JSON request from a WebSocket client.
type Command struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// Message is an outgoing JSON message.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	Raw     []byte      `json:"-"` // undecoded client frame
}

// NewMessage creates a Message for broadcasting to clients.
func NewMessage(msgType string, payload interface{}) Message {
	return Message{Type: msgType, Payload: payload}
}

// Outgoing message types.
const (
	MsgLinkStatus     = "link_status"
	MsgStats          = "stats"
	MsgCommandSent    = "command_sent"
	MsgCommandFailed  = "command_failed"
	MsgScenarioStatus = "scenario_status"
	MsgScriptStatus   = "script_status"
	MsgScriptList     = "script_list"
	MsgScriptCode     = "script_code"
	MsgScheduleList   = "schedule_list"
	MsgError          = "error"
)

var eventMessageTypes = map[core.EventType]string{
	core.CommandSentEvent:     MsgCommandSent,
	core.CommandFailedEvent:   MsgCommandFailed,
	core.LinkChangedEvent:     MsgLinkStatus,
	core.ScenarioChangedEvent: MsgScenarioStatus,
	core.ScriptChangedEvent:   MsgScriptStatus,
}

// EventMessage converts a bus event into the message clients receive.
func EventMessage(ev core.Event) (Message, bool) {
	t, ok := eventMessageTypes[ev.Type]
	if !ok {
		return Message{}, false
	}
	return NewMessage(t, ev.Payload), true
}

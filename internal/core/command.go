package core

// CommandType defines the type of command being dispatched to the agent.
type CommandType string

const (
	CmdSend       CommandType = "send"
	CmdSendRandom CommandType = "sendRandom"
	CmdRunDemo    CommandType = "runDemo"
	CmdRunScript  CommandType = "runScript"
	CmdStopScript CommandType = "stopScript"
	CmdReconnect  CommandType = "reconnect"
)

// Origin tags who produced a command.
type Origin string

const (
	OriginConsole  Origin = "console"
	OriginDemo     Origin = "demo"
	OriginScript   Origin = "script"
	OriginSchedule Origin = "schedule"
	OriginMQTT     Origin = "mqtt"
	OriginWeb      Origin = "web"
	OriginCLI      Origin = "cli"
)

// Result is the outcome of a command handled by the agent.
type Result struct {
	Intent Intent
	Line   string
	Err    error
}

// Command is the envelope for requests to the agent's orchestrator loop.
// Reply, when set, must be buffered; the loop never blocks on it.
type Command struct {
	Type   CommandType
	Intent Intent
	Name   string
	Origin Origin
	Reply  chan Result
}

// CommandChannel is the single channel that the agent listens to for commands.
type CommandChannel chan Command

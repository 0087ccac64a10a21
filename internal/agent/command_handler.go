package agent

import (
	"encoding/json"
	"fmt"
	"strconv"

	"coach-event-generator/internal/core"
	"coach-event-generator/internal/logger"
	"coach-event-generator/internal/protocol"
	"coach-event-generator/internal/scheduler"
	"coach-event-generator/internal/server"

	"github.com/robfig/cron/v3"
)

// ScheduleStore is the part of the scheduler the handler edits.
type ScheduleStore interface {
	Add(spec, command string) (cron.EntryID, error)
	Remove(id int)
	GetAll() map[cron.EntryID]scheduler.ScheduleEntry
}

// ScriptStore is the part of the script engine the handler edits.
type ScriptStore interface {
	GetScriptList() ([]string, error)
	GetScriptCode(name string) (string, error)
	SaveScriptCode(name, code string) error
	DeleteScript(name string) error
}

// CommandHandler turns WebSocket frames into orchestrator commands and
// script or schedule edits.
type CommandHandler struct {
	commands  core.CommandChannel
	schedules ScheduleStore
	scripts   ScriptStore
	cabins    int
	log       *logger.Logger
}

func NewCommandHandler(cmds core.CommandChannel, s ScheduleStore, scripts ScriptStore, cabins int, log *logger.Logger) *CommandHandler {
	return &CommandHandler{
		commands:  cmds,
		schedules: s,
		scripts:   scripts,
		cabins:    cabins,
		log:       log,
	}
}

func (h *CommandHandler) Handle(msg server.Message, hub *server.Hub) {
	var cmd server.Command
	if err := json.Unmarshal(msg.Raw, &cmd); err != nil {
		h.log.Warnw("[WS] Undecodable command", "err", err)
		return
	}
	if err := h.dispatch(cmd, hub); err != nil {
		h.log.Warnw("[WS] Command rejected", "type", cmd.Type, "err", err)
		hub.Broadcast(server.NewMessage(server.MsgError, map[string]string{
			"command": cmd.Type,
			"error":   err.Error(),
		}))
	}
}

func (h *CommandHandler) dispatch(cmd server.Command, hub *server.Hub) error {
	switch cmd.Type {
	case "send":
		line, err := stringField(cmd.Payload, "line")
		if err != nil {
			return err
		}
		in, err := protocol.Parse(line)
		if err == nil {
			err = core.Validate(in, h.cabins)
		}
		if err != nil {
			return err
		}
		return h.queue(core.Command{Type: core.CmdSend, Intent: in})

	case "random":
		return h.queue(core.Command{Type: core.CmdSendRandom})

	case "demo":
		return h.queue(core.Command{Type: core.CmdRunDemo})

	case "runScript":
		name, err := stringField(cmd.Payload, "name")
		if err != nil {
			return err
		}
		return h.queue(core.Command{Type: core.CmdRunScript, Name: name})

	case "stopScript":
		return h.queue(core.Command{Type: core.CmdStopScript})

	case "getScriptCode":
		name, err := stringField(cmd.Payload, "name")
		if err != nil {
			return err
		}
		code, err := h.scripts.GetScriptCode(name)
		if err != nil {
			return err
		}
		hub.Broadcast(server.NewMessage(server.MsgScriptCode, map[string]string{"name": name, "code": code}))

	case "saveScriptCode":
		name, err := stringField(cmd.Payload, "name")
		if err != nil {
			return err
		}
		code, err := stringField(cmd.Payload, "code")
		if err != nil {
			return err
		}
		if err := h.scripts.SaveScriptCode(name, code); err != nil {
			return err
		}
		return h.broadcastScripts(hub)

	case "deleteScript":
		name, err := stringField(cmd.Payload, "name")
		if err != nil {
			return err
		}
		if err := h.scripts.DeleteScript(name); err != nil {
			return err
		}
		return h.broadcastScripts(hub)

	case "addSchedule":
		spec, err := stringField(cmd.Payload, "spec")
		if err != nil {
			return err
		}
		command, err := stringField(cmd.Payload, "command")
		if err != nil {
			return err
		}
		if _, err := h.schedules.Add(spec, command); err != nil {
			return err
		}
		hub.Broadcast(server.NewMessage(server.MsgScheduleList, h.schedules.GetAll()))

	case "removeSchedule":
		idStr, err := stringField(cmd.Payload, "id")
		if err != nil {
			return err
		}
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return fmt.Errorf("invalid schedule id %q", idStr)
		}
		h.schedules.Remove(id)
		hub.Broadcast(server.NewMessage(server.MsgScheduleList, h.schedules.GetAll()))

	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
	return nil
}

func (h *CommandHandler) queue(cmd core.Command) error {
	cmd.Origin = core.OriginWeb
	select {
	case h.commands <- cmd:
		return nil
	default:
		return fmt.Errorf("command queue full")
	}
}

func (h *CommandHandler) broadcastScripts(hub *server.Hub) error {
	scripts, err := h.scripts.GetScriptList()
	if err != nil {
		return err
	}
	hub.Broadcast(server.NewMessage(server.MsgScriptList, scripts))
	return nil
}

func stringField(payload map[string]interface{}, key string) (string, error) {
	v, ok := payload[key].(string)
	if !ok {
		return "", fmt.Errorf("payload field %q must be a string", key)
	}
	return v, nil
}

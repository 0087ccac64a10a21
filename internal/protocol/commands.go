// Package protocol renders command intents to the coach controller's line-oriented
// text protocol and parses such lines back.
//
// Every message is a run of space-separated tokens terminated by a single newline.
// The receiver tokenizes on whitespace, so no token may contain a space.
package protocol

import (
	"fmt"
	"strings"

	"coach-event-generator/internal/core"
)

// Command keywords.
const (
	KeywordLight     = "LIGHT"
	KeywordTemp      = "TEMP"
	KeywordEmergency = "EMERGENCY"
	KeywordFire      = "FIRE"
	KeywordPower     = "POWER"
	KeywordChain     = "CHAIN"
	KeywordStatus    = "STATUS"

	argLow  = "LOW"
	argPull = "PULL"
	argOn   = "ON"
	argOff  = "OFF"
)

// Terminator ends every wire message.
const Terminator = "\n"

// WireMessage is the encoded, newline-terminated form of an intent.
type WireMessage string

// Bytes returns the UTF-8 payload to write on the link.
func (m WireMessage) Bytes() []byte {
	return []byte(m)
}

// Line returns the message without its terminator.
func (m WireMessage) Line() string {
	return strings.TrimSuffix(string(m), Terminator)
}

// Encode renders an intent in its canonical wire form.
func Encode(in core.Intent) WireMessage {
	var line string
	switch v := in.(type) {
	case core.Light:
		line = fmt.Sprintf("%s %d %s", KeywordLight, v.Cabin, v.State)
	case core.Temperature:
		line = fmt.Sprintf("%s %d %d", KeywordTemp, v.Cabin, v.Value)
	case core.Emergency:
		line = fmt.Sprintf("%s %d", KeywordEmergency, v.Cabin)
	case core.Fire:
		line = fmt.Sprintf("%s %d", KeywordFire, v.Cabin)
	case core.PowerLow:
		line = KeywordPower + " " + argLow
	case core.ChainPull:
		line = KeywordChain + " " + argPull
	case core.StatusRequest:
		line = KeywordStatus
	default:
		// Intent is sealed; only a nil interface gets here.
		panic(fmt.Sprintf("protocol: cannot encode %T", in))
	}
	return WireMessage(line + Terminator)
}

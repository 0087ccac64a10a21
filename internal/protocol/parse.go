package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"coach-event-generator/internal/core"
)

var (
	ErrEmpty          = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
	ErrMalformed      = errors.New("malformed command")
)

// Parse is the inverse of Encode. Keywords are matched case-sensitively, as the
// controller does; surrounding whitespace and the terminator are ignored.
func Parse(line string) (core.Intent, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrEmpty
	}

	switch fields[0] {
	case KeywordLight:
		if len(fields) != 3 {
			return nil, malformed(line, "want LIGHT <cabin> ON|OFF")
		}
		cabin, err := parseCabin(line, fields[1])
		if err != nil {
			return nil, err
		}
		switch fields[2] {
		case argOn:
			return core.Light{Cabin: cabin, State: core.LightOn}, nil
		case argOff:
			return core.Light{Cabin: cabin, State: core.LightOff}, nil
		}
		return nil, malformed(line, "light state must be ON or OFF")

	case KeywordTemp:
		if len(fields) != 3 {
			return nil, malformed(line, "want TEMP <cabin> <value>")
		}
		cabin, err := parseCabin(line, fields[1])
		if err != nil {
			return nil, err
		}
		v, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, malformed(line, "temperature must be an integer")
		}
		return core.Temperature{Cabin: cabin, Value: v}, nil

	case KeywordEmergency, KeywordFire:
		if len(fields) != 2 {
			return nil, malformed(line, "want "+fields[0]+" <cabin>")
		}
		cabin, err := parseCabin(line, fields[1])
		if err != nil {
			return nil, err
		}
		if fields[0] == KeywordFire {
			return core.Fire{Cabin: cabin}, nil
		}
		return core.Emergency{Cabin: cabin}, nil

	case KeywordPower:
		if len(fields) != 2 || fields[1] != argLow {
			return nil, malformed(line, "want POWER LOW")
		}
		return core.PowerLow{}, nil

	case KeywordChain:
		if len(fields) != 2 || fields[1] != argPull {
			return nil, malformed(line, "want CHAIN PULL")
		}
		return core.ChainPull{}, nil

	case KeywordStatus:
		if len(fields) != 1 {
			return nil, malformed(line, "STATUS takes no arguments")
		}
		return core.StatusRequest{}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
}

func parseCabin(line, tok string) (core.CabinID, error) {
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, malformed(line, "cabin must be an integer")
	}
	return core.CabinID(n), nil
}

func malformed(line, why string) error {
	return fmt.Errorf("%w: %q: %s", ErrMalformed, strings.TrimSpace(line), why)
}

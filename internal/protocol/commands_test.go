package protocol

import (
	"errors"
	"fmt"
	"testing"

	"coach-event-generator/internal/core"
)

func TestEncodeCanonicalForms(t *testing.T) {
	tests := []struct {
		intent core.Intent
		want   WireMessage
	}{
		{core.Light{Cabin: 0, State: core.LightOn}, "LIGHT 0 ON\n"},
		{core.Light{Cabin: 9, State: core.LightOff}, "LIGHT 9 OFF\n"},
		{core.Temperature{Cabin: 3, Value: 21}, "TEMP 3 21\n"},
		{core.Temperature{Cabin: 0, Value: 18}, "TEMP 0 18\n"},
		{core.Emergency{Cabin: 3}, "EMERGENCY 3\n"},
		{core.Fire{Cabin: 7}, "FIRE 7\n"},
		{core.PowerLow{}, "POWER LOW\n"},
		{core.ChainPull{}, "CHAIN PULL\n"},
		{core.StatusRequest{}, "STATUS\n"},
	}

	for _, tt := range tests {
		t.Run(tt.want.Line(), func(t *testing.T) {
			got := Encode(tt.intent)
			if got != tt.want {
				t.Fatalf("Encode(%#v) = %q, want %q", tt.intent, got, tt.want)
			}
			if again := Encode(tt.intent); again != got {
				t.Fatalf("Encode is not deterministic: %q then %q", got, again)
			}
		})
	}
}

func TestEncodeLightEveryCabin(t *testing.T) {
	for c := 0; c < core.DefaultCabinCount; c++ {
		want := WireMessage(fmt.Sprintf("LIGHT %d ON\n", c))
		if got := Encode(core.Light{Cabin: core.CabinID(c), State: core.LightOn}); got != want {
			t.Errorf("cabin %d: got %q, want %q", c, got, want)
		}
	}
}

// allIntents enumerates the intent space for a small coach and a slice of the
// temperature axis, including values outside the operating envelope.
func allIntents(cabins int) []core.Intent {
	out := []core.Intent{core.PowerLow{}, core.ChainPull{}, core.StatusRequest{}}
	for c := 0; c < cabins; c++ {
		id := core.CabinID(c)
		out = append(out,
			core.Light{Cabin: id, State: core.LightOn},
			core.Light{Cabin: id, State: core.LightOff},
			core.Emergency{Cabin: id},
			core.Fire{Cabin: id},
		)
		for v := 10; v <= 35; v++ {
			out = append(out, core.Temperature{Cabin: id, Value: v})
		}
	}
	return out
}

func TestEncodeIsInjective(t *testing.T) {
	seen := make(map[WireMessage]core.Intent)
	for _, in := range allIntents(12) {
		msg := Encode(in)
		if prev, ok := seen[msg]; ok && prev != in {
			t.Fatalf("%#v and %#v both encode to %q", prev, in, msg)
		}
		seen[msg] = in
	}
}

func TestParseInvertsEncode(t *testing.T) {
	for _, in := range allIntents(10) {
		msg := Encode(in)
		got, err := Parse(string(msg))
		if err != nil {
			t.Fatalf("Parse(%q): %v", msg, err)
		}
		if got != in {
			t.Fatalf("Parse(Encode(%#v)) = %#v", in, got)
		}
	}
}

func TestWireMessageLine(t *testing.T) {
	msg := Encode(core.ChainPull{})
	if msg.Line() != "CHAIN PULL" {
		t.Fatalf("got %q", msg.Line())
	}
	if string(msg.Bytes()) != "CHAIN PULL\n" {
		t.Fatalf("got %q", msg.Bytes())
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"", ErrEmpty},
		{"   \n", ErrEmpty},
		{"DANCE 3", ErrUnknownCommand},
		{"light 3 on", ErrUnknownCommand},
		{"LIGHT 3", ErrMalformed},
		{"LIGHT x ON", ErrMalformed},
		{"LIGHT 3 DIM", ErrMalformed},
		{"TEMP 3 warm", ErrMalformed},
		{"TEMP 3", ErrMalformed},
		{"EMERGENCY", ErrMalformed},
		{"FIRE 1 2", ErrMalformed},
		{"POWER HIGH", ErrMalformed},
		{"CHAIN", ErrMalformed},
		{"STATUS NOW", ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if _, err := Parse(tt.line); !errors.Is(err, tt.want) {
				t.Fatalf("Parse(%q) error = %v, want %v", tt.line, err, tt.want)
			}
		})
	}
}

func TestParseToleratesSurroundingWhitespace(t *testing.T) {
	got, err := Parse("  TEMP   2  24 \r\n")
	if err != nil {
		t.Fatal(err)
	}
	if got != (core.Temperature{Cabin: 2, Value: 24}) {
		t.Fatalf("got %#v", got)
	}
}

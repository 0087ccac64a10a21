package core

import (
	"errors"
	"fmt"
)

// Operating envelope for cabin temperatures, in degrees Celsius.
const (
	MinTemperature = 18
	MaxTemperature = 28
)

// DefaultCabinCount is the number of cabins in a standard coach.
const DefaultCabinCount = 10

var (
	ErrCabinOutOfRange       = errors.New("cabin out of range")
	ErrTemperatureOutOfRange = errors.New("temperature out of range")
)

// CabinID addresses one cabin of the coach. Valid values are [0, cabin count).
type CabinID int

// Kind names the shape of an Intent.
type Kind string

const (
	KindLight         Kind = "light"
	KindTemperature   Kind = "temperature"
	KindEmergency     Kind = "emergency"
	KindFire          Kind = "fire"
	KindPowerLow      Kind = "power_low"
	KindChainPull     Kind = "chain_pull"
	KindStatusRequest Kind = "status"
)

// LightState is the requested state of a cabin light.
type LightState bool

const (
	LightOff LightState = false
	LightOn  LightState = true
)

func (s LightState) String() string {
	if s {
		return "ON"
	}
	return "OFF"
}

// Intent is one command for the coach controller. The set of implementations is
// closed: only the types in this file satisfy it.
type Intent interface {
	Kind() Kind
	isIntent()
}

// Light switches a cabin light.
type Light struct {
	Cabin CabinID
	State LightState
}

// Temperature sets a cabin's target temperature.
type Temperature struct {
	Cabin CabinID
	Value int
}

// Emergency raises a passenger emergency in a cabin.
type Emergency struct {
	Cabin CabinID
}

// Fire raises a fire alarm in a cabin.
type Fire struct {
	Cabin CabinID
}

// PowerLow puts the whole coach in low power mode.
type PowerLow struct{}

// ChainPull simulates the emergency chain being pulled.
type ChainPull struct{}

// StatusRequest asks the controller to report its state.
type StatusRequest struct{}

func (Light) Kind() Kind         { return KindLight }
func (Temperature) Kind() Kind   { return KindTemperature }
func (Emergency) Kind() Kind     { return KindEmergency }
func (Fire) Kind() Kind          { return KindFire }
func (PowerLow) Kind() Kind      { return KindPowerLow }
func (ChainPull) Kind() Kind     { return KindChainPull }
func (StatusRequest) Kind() Kind { return KindStatusRequest }

func (Light) isIntent()         {}
func (Temperature) isIntent()   {}
func (Emergency) isIntent()     {}
func (Fire) isIntent()          {}
func (PowerLow) isIntent()      {}
func (ChainPull) isIntent()     {}
func (StatusRequest) isIntent() {}

// CabinOf returns the cabin an intent addresses, if any.
func CabinOf(in Intent) (CabinID, bool) {
	switch v := in.(type) {
	case Light:
		return v.Cabin, true
	case Temperature:
		return v.Cabin, true
	case Emergency:
		return v.Cabin, true
	case Fire:
		return v.Cabin, true
	}
	return 0, false
}

// CheckCabin reports whether c is a valid cabin for a coach with cabinCount cabins.
func CheckCabin(c CabinID, cabinCount int) error {
	if c < 0 || int(c) >= cabinCount {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrCabinOutOfRange, c, cabinCount)
	}
	return nil
}

// CheckTemperature reports whether v lies within the operating envelope.
func CheckTemperature(v int) error {
	if v < MinTemperature || v > MaxTemperature {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrTemperatureOutOfRange, v, MinTemperature, MaxTemperature)
	}
	return nil
}

// Validate applies the input-boundary checks to an intent built from untrusted input.
func Validate(in Intent, cabinCount int) error {
	if c, ok := CabinOf(in); ok {
		if err := CheckCabin(c, cabinCount); err != nil {
			return err
		}
	}
	if t, ok := in.(Temperature); ok {
		return CheckTemperature(t.Value)
	}
	return nil
}

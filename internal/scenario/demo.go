package scenario

import (
	"time"

	"coach-event-generator/internal/core"
)

// DemoName identifies the built-in demonstration sequence.
const DemoName = "demo"

// demoCabins are the cabins touched by the lighting and temperature stages.
const demoCabins = 5

// Demo returns the seven-stage demonstration sequence. unit scales every delay;
// the stock timings assume one second.
func Demo(unit time.Duration) []Group {
	short := unit / 2

	lights := make([]Step, 0, demoCabins)
	temps := make([]Step, 0, demoCabins)
	for i := 0; i < demoCabins; i++ {
		c := core.CabinID(i)
		lights = append(lights, Step{Intent: core.Light{Cabin: c, State: core.LightOn}, Delay: short})
		temps = append(temps, Step{Intent: core.Temperature{Cabin: c, Value: 20 + i}, Delay: short})
	}

	return []Group{
		{Name: "Turning on lights in cabins 0-4", Steps: lights, Pause: 2 * unit},
		{Name: "Adjusting temperatures", Steps: temps, Pause: 2 * unit},
		{Name: "Triggering emergency in cabin 3", Steps: []Step{{Intent: core.Emergency{Cabin: 3}}}, Pause: 3 * unit},
		{Name: "Triggering FIRE in cabin 7", Steps: []Step{{Intent: core.Fire{Cabin: 7}}}, Pause: 3 * unit},
		{Name: "Activating low power mode", Steps: []Step{{Intent: core.PowerLow{}}}, Pause: 2 * unit},
		{Name: "Chain pull emergency", Steps: []Step{{Intent: core.ChainPull{}}}, Pause: 2 * unit},
		{Name: "Requesting system status", Steps: []Step{{Intent: core.StatusRequest{}}}},
	}
}

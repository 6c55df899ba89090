// internal/sensor/builder.go
package sensor

import (
	"time"

	"github.com/tamzrod/provisiond/internal/config"
	smodbus "github.com/tamzrod/provisiond/internal/sensor/modbus"
)

// Build constructs a Poller and wires the Modbus client lifecycle.
// The connection is reused while healthy. After a transport failure the
// poller discards it and dials again on a later tick.
func Build(c config.SensorConfig) (*Poller, error) {
	factory := func() (Client, error) {
		return smodbus.New(smodbus.Config{
			Endpoint: c.Endpoint,
			UnitID:   c.UnitID,
			Timeout:  time.Duration(c.TimeoutMs) * time.Millisecond,
		})
	}

	// Startup does not require the sensor to be reachable.
	return New(
		Config{
			Interval:           time.Duration(c.IntervalMs) * time.Millisecond,
			FC:                 c.FC,
			TemperatureAddress: c.TemperatureAddress,
			HumidityAddress:    c.HumidityAddress,
			Scale:              c.Scale,
		},
		nil,
		factory,
	)
}

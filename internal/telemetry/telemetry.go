// Package telemetry publishes pen period and lifecycle events to MQTT, with
// an in-memory abstraction for testing.
package telemetry

import (
	"encoding/json"
	"time"

	"github.com/sweeney/solderpen/internal/logic"
)

// Topic is the MQTT topic for period completion events.
const Topic = "solderpen/tip/period"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "solderpen/tip/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a period event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event PeriodEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// PeriodEvent is emitted once per completed heating period.
type PeriodEvent struct {
	Timestamp  time.Time
	Reading    logic.Reading
	SetpointMC int64
	Standby    bool
}

// SystemEvent represents a system lifecycle event (startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g. "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // pre-formatted JSON; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload is the MQTT message body for a period event.
type Payload struct {
	Pen PenPayload `json:"pen"`
}

// PenPayload is the flattened, wire-friendly view of a period Reading.
type PenPayload struct {
	Timestamp            string `json:"timestamp"`
	State                string `json:"state"`
	SetpointMC           int64  `json:"setpoint_mc"`
	Standby              bool   `json:"standby"`
	TipTemperatureMC     int64  `json:"tip_temperature_mc"`
	RequestedPowerMW     int64  `json:"requested_power_mw"`
	PenResistanceMO      int64  `json:"pen_resistance_mo"`
	SupplyVoltageMVDrop  int64  `json:"supply_voltage_mv_drop"`
	HeatingElementStatus string `json:"heating_element_status"`
	PenSensorStatus      string `json:"pen_sensor_status"`
}

// FormatPayload creates the JSON payload for a period event.
func FormatPayload(event PeriodEvent) ([]byte, error) {
	r := event.Reading
	payload := Payload{
		Pen: PenPayload{
			Timestamp:            event.Timestamp.UTC().Format(time.RFC3339),
			State:                string(r.State),
			SetpointMC:           event.SetpointMC,
			Standby:              event.Standby,
			TipTemperatureMC:     r.CPUTemperatureMC + r.PenTemperatureMC,
			RequestedPowerMW:     r.RequestedPowerMW,
			PenResistanceMO:      r.PenResistanceMO,
			SupplyVoltageMVDrop:  r.SupplyVoltageMVDrop,
			HeatingElementStatus: string(r.HeatingElementStatus),
			PenSensorStatus:      string(r.PenSensorStatus),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the MQTT message body for a system event without a full
// status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event. If
// event.RawPayload is set (a full status snapshot), it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

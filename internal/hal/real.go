//go:build linux

package hal

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

// RealHeater drives the heater gate as a Linux GPIO character-device
// output line, the same chip-open pattern as a GPIO input reader would
// use, but configured AsOutput instead of AsInput.
type RealHeater struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealHeater opens the heater gate line on the default GPIO chip.
func NewRealHeater(pin int) (*RealHeater, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request heater pin %d: %w", pin, err)
	}

	return &RealHeater{chip: chip, line: line}, nil
}

// On drives the heater gate active.
func (h *RealHeater) On() {
	if h.line != nil {
		h.line.SetValue(1)
	}
}

// Off drives the heater gate inactive.
func (h *RealHeater) Off() {
	if h.line != nil {
		h.line.SetValue(0)
	}
}

// Close releases GPIO resources, leaving the gate off.
func (h *RealHeater) Close() error {
	h.Off()
	var errs []error
	if h.line != nil {
		if err := h.line.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if h.chip != nil {
		if err := h.chip.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// iioChannels names the raw_voltage/raw_temp sysfs leaves this ADC reads.
// There is no third-party IIO client library in the retrieved corpus, so
// RealADC reads these directly — see DESIGN.md for the justification.
type iioChannels struct {
	supplyVoltage string
	cpuVoltage    string
	penCurrent    string
	cpuTemp       string
	penTemp       string
	penSensorOK   string
}

func defaultIIOChannels(devicePath string) iioChannels {
	return iioChannels{
		supplyVoltage: devicePath + "/in_voltage0_supply_raw",
		cpuVoltage:    devicePath + "/in_voltage1_cpu_raw",
		penCurrent:    devicePath + "/in_current2_pen_raw",
		cpuTemp:       devicePath + "/in_temp3_cpu_raw",
		penTemp:       devicePath + "/in_temp4_pen_raw",
		penSensorOK:   devicePath + "/in_voltage5_pen_sense_raw",
	}
}

// RealADC samples supply voltage, pen current, die temperature, and
// thermocouple EMF from an IIO character device's sysfs interface.
type RealADC struct {
	channels iioChannels

	mode string // "heat" or "idle"
	done bool

	supplyMV  int64
	cpuMV     int64
	penMA     int64
	cpuTempMC int64
	penTempMC int64
	sensorOK  bool
}

// NewRealADC returns an ADC reading the given IIO device's sysfs channels.
func NewRealADC(devicePath string) *RealADC {
	return &RealADC{channels: defaultIIOChannels(devicePath)}
}

// MeasureHeatStart begins a burst optimized for live heat-phase signals.
func (a *RealADC) MeasureHeatStart() {
	a.mode = "heat"
	a.done = false
}

// MeasureIdleStart begins a burst including the thermocouple + die-temp
// channels.
func (a *RealADC) MeasureIdleStart() {
	a.mode = "idle"
	a.done = false
}

// IsDone performs the sysfs reads on first call after a *Start and caches
// them; subsequent calls return true immediately until the next *Start.
func (a *RealADC) IsDone() bool {
	if a.done {
		return true
	}
	if err := a.sample(); err != nil {
		return false
	}
	a.done = true
	return true
}

func (a *RealADC) sample() error {
	var err error
	if a.supplyMV, err = readSysfsInt(a.channels.supplyVoltage); err != nil {
		return err
	}
	if a.cpuMV, err = readSysfsInt(a.channels.cpuVoltage); err != nil {
		return err
	}
	if a.penMA, err = readSysfsInt(a.channels.penCurrent); err != nil {
		return err
	}
	if a.mode == "idle" {
		if a.cpuTempMC, err = readSysfsInt(a.channels.cpuTemp); err != nil {
			return err
		}
		if a.penTempMC, err = readSysfsInt(a.channels.penTemp); err != nil {
			return err
		}
		sense, err := readSysfsInt(a.channels.penSensorOK)
		if err != nil {
			return err
		}
		a.sensorOK = sense != 0
	}
	return nil
}

func (a *RealADC) SupplyVoltageMV() int64   { return a.supplyMV }
func (a *RealADC) CPUVoltageMV() int64      { return a.cpuMV }
func (a *RealADC) PenCurrentMA() int64      { return a.penMA }
func (a *RealADC) CPUTemperatureMC() int64  { return a.cpuTempMC }
func (a *RealADC) PenTemperatureMC() int64  { return a.penTempMC }
func (a *RealADC) IsPenSensorOK() bool      { return a.sensorOK }

func readSysfsInt(path string) (int64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

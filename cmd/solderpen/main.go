// Command solderpen runs the soldering pen's firmware control core: a
// hard real-time heat/stabilize/idle period loop driving the heater and
// sampling the ADC, with MQTT telemetry and an HTTP status page layered on
// top.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/solderpen/internal/hal"
	"github.com/sweeney/solderpen/internal/logic"
	"github.com/sweeney/solderpen/internal/status"
	"github.com/sweeney/solderpen/internal/telemetry"
	"github.com/sweeney/solderpen/internal/web"
)

func main() {
	tick := flag.Duration("tick", 5*time.Millisecond, "main loop pump interval (ticks fed into the engine each cycle)")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "heartbeat interval (0 to disable)")
	heaterPin := flag.Int("pin-heater", hal.DefaultHeaterGPIO, "BCM pin number for the heater gate")
	iioDevice := flag.String("iio-device", hal.DefaultIIODevice, "IIO sysfs device path for the ADC")
	printState := flag.Bool("print-state", false, "sample the ADC once, print readings, and exit")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")
	wsBroker := flag.String("ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	outboxCap := flag.Int("outbox-capacity", 256, "number of telemetry messages buffered while MQTT is disconnected")

	flag.Parse()

	ws := resolveWSBroker(*wsBroker, *broker)
	if err := run(*tick, *broker, *heartbeat, *heaterPin, *iioDevice, *printState, *httpAddr, ws, *outboxCap); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(tick time.Duration, broker string, heartbeat time.Duration, heaterPin int, iioDevice string, printState bool, httpAddr, wsBroker string, outboxCap int) error {
	clock := hal.NewRealClock(hal.DefaultCoreFreqHz)

	heater, err := hal.NewRealHeater(heaterPin)
	if err != nil {
		return fmt.Errorf("init heater: %w", err)
	}
	defer heater.Close()

	adc := hal.NewRealADC(iioDevice)

	if printState {
		return printADCState(adc)
	}

	preset := logic.NewPreset()
	pid := logic.NewPID()
	engine := logic.NewEngine(logic.Capabilities{Clock: clock, Heater: heater, ADC: adc}, preset, pid)

	publisher, err := telemetry.NewRealPublisher(broker, outboxCap)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		TickMs:      tick.Milliseconds(),
		HeartbeatMs: heartbeat.Milliseconds(),
		Broker:      broker,
		HTTPPort:    httpAddr,
		WSBroker:    wsBroker,
	})

	snap := tracker.Snapshot()
	startupEvent := telemetry.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if httpAddr != "" {
		srv := web.New(httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", httpAddr)
	}

	log.Printf("started: tick=%v broker=%s heartbeat=%v", tick, broker, heartbeat)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(engine, preset, clock, publisher, publisher, tracker, heartbeat, time.Now, ticker.C, sigCh)
}

// runLoop drives the engine's Start/Process cycle from a real-time ticker,
// converting elapsed wall-clock time into the tick units the engine
// operates in. It is factored out from run so tests can supply fakes for
// every collaborator.
func runLoop(engine *logic.Engine, preset *logic.Preset, clock logic.Clock, publisher telemetry.Publisher, mqttStatus telemetry.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	freq := clock.Frequency()
	last := now()
	var lastHeartbeat time.Time

	engine.Start()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			switch s {
			case syscall.SIGINT:
				signalName = "SIGINT"
			case syscall.SIGTERM:
				signalName = "SIGTERM"
			}
			event := telemetry.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			elapsed := t.Sub(last)
			last = t
			deltaTicks := elapsed.Nanoseconds() * freq / time.Second.Nanoseconds()
			if deltaTicks <= 0 {
				continue
			}

			if !engine.Process(deltaTicks) {
				reading := engine.Snapshot()
				event := telemetry.PeriodEvent{
					Timestamp:  t,
					Reading:    reading,
					SetpointMC: int64(preset.GetTemperature()),
					Standby:    preset.IsStandby(),
				}
				if err := publisher.Publish(event); err != nil {
					log.Printf("publish error: %v", err)
				}

				if tracker != nil {
					tracker.Update(reading, preset, engine.PowerMW(), engine.EnergyMWh())
					if mqttStatus != nil {
						tracker.SetMQTTConnected(mqttStatus.IsConnected())
					}
				}

				if heartbeat > 0 && (lastHeartbeat.IsZero() || t.Sub(lastHeartbeat) >= heartbeat) {
					lastHeartbeat = t
					hbEvent := telemetry.SystemEvent{Timestamp: t, Event: "HEARTBEAT"}
					if tracker != nil {
						snap := tracker.Snapshot()
						hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
					}
					if err := publisher.PublishSystem(hbEvent); err != nil {
						log.Printf("heartbeat publish error: %v", err)
					} else {
						log.Printf("heartbeat: state=%s tip_temp_mc=%d power_mw=%d", reading.State, engine.RealPenTemperatureMC(), engine.PowerMW())
					}
				}

				engine.Start()
			}
		}
	}
}

func printADCState(adc logic.ADC) error {
	adc.MeasureIdleStart()
	for i := 0; i < 1_000_000 && !adc.IsDone(); i++ {
	}
	if !adc.IsDone() {
		return fmt.Errorf("adc sample timed out")
	}
	sensorStatus := "OK"
	if !adc.IsPenSensorOK() {
		sensorStatus = "BROKEN"
	}
	fmt.Printf("cpu_temp_mc=%d pen_temp_mc=%d sensor=%s supply_mv=%d pen_ma=%d\n",
		adc.CPUTemperatureMC(), adc.PenTemperatureMC(), sensorStatus, adc.SupplyVoltageMV(), adc.PenCurrentMA())
	return nil
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off"
// disables the live-update script entirely.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse --broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}

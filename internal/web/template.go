package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/solderpen/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"milliDeg": func(mc int64) string {
		return fmt.Sprintf("%.1f", float64(mc)/1000)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Solder Pen</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.ok { color: green; font-weight: bold; }
.bad { color: #c00; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Solder Pen{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>State</h2>
<table>
<tr><th>Phase</th><td id="state">{{.State}}</td></tr>
<tr><th>Standby</th><td>{{if .Standby}}yes{{else}}no{{end}}</td></tr>
<tr><th>Tip temperature</th><td id="tip-temp">{{milliDeg .TipTemperatureMC}} &deg;C</td></tr>
<tr><th>Power</th><td id="power">{{.PowerMW}} mW</td></tr>
<tr><th>Energy</th><td>{{.EnergyMWh}} mWh</td></tr>
</table>

<h2>Presets</h2>
<table>
{{range $i, $t := .PresetTemperaturesMC}}<tr><th>{{if eq $i $.SelectedPreset}}&rarr; {{end}}Preset {{$i}}</th><td>{{milliDeg $t}} &deg;C</td></tr>
{{end}}
</table>

<h2>Health</h2>
<table>
<tr><th>Heating element</th><td id="element-status" class="{{if eq (printf "%s" .HeatingElementStatus) "OK"}}ok{{else if eq (printf "%s" .HeatingElementStatus) "UNKNOWN"}}unknown{{else}}bad{{end}}">{{.HeatingElementStatus}}</td></tr>
<tr><th>Pen sensor</th><td id="sensor-status" class="{{if eq (printf "%s" .PenSensorStatus) "OK"}}ok{{else if eq (printf "%s" .PenSensorStatus) "UNKNOWN"}}unknown{{else}}bad{{end}}">{{.PenSensorStatus}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "solderpen/tip/period";
  var dot = document.getElementById("live-dot");
  var stateEl = document.getElementById("state");
  var tempEl = document.getElementById("tip-temp");
  var powerEl = document.getElementById("power");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });
  client.on("reconnect", function() { setDot("pending", "reconnecting"); });
  client.on("offline", function() { setDot("err", "offline"); });
  client.on("error", function() { setDot("err", "error"); });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.pen) {
        stateEl.textContent = msg.pen.state;
        tempEl.textContent = (msg.pen.tip_temperature_mc / 1000).toFixed(1) + " °C";
        powerEl.textContent = msg.pen.requested_power_mw + " mW";
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>`

func renderHTML(w io.Writer, snap status.Snapshot) {
	indexTmpl.Execute(w, snap)
}

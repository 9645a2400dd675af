package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/dht-logger/internal/mqtt"
	"github.com/sweeney/dht-logger/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"duration": func(d time.Duration) string {
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
	"f1": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>DHT Logger - {{.Config.Device}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.value { font-weight: bold; }
.stale { color: orange; }
.failed { color: red; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>DHT Logger: {{.Config.Device}}{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Reading</h2>
{{if .HasReading}}<table>
<tr><th>Temperature</th><td class="value"><span id="temp-c">{{f1 .LastReading.Temperature}}</span> &deg;C / <span id="temp-f">{{f1 .LastReading.TemperatureF}}</span> &deg;F</td></tr>
<tr><th>Humidity</th><td class="value"><span id="humidity">{{f1 .LastReading.Humidity}}</span> %</td></tr>
<tr><th>Heat Index</th><td><span id="heat-index">{{f1 .LastReading.HeatIndex}}</span> &deg;C</td></tr>
<tr><th>Taken</th><td id="taken">{{.LastReading.Time.UTC.Format "2006-01-02T15:04:05Z"}} ({{duration .Age}} ago)</td></tr>
<tr><th>Frame</th><td>{{.LastReading.Raw}}</td></tr>
</table>{{else}}<p class="stale">No reading yet.</p>{{end}}
{{if .LastOutcome}}<p>Last read: <span class="{{if .Failed}}failed{{end}}">{{.LastOutcome}}</span></p>{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Read Counts</h2>
<table>
<tr><th>OK</th><td>{{.Counts.OK}}</td></tr>
<tr><th>Cached</th><td>{{.Counts.Cached}}</td></tr>
<tr><th>Timeout</th><td>{{.Counts.Timeout}}</td></tr>
<tr><th>Short frame</th><td>{{.Counts.ShortFrame}}</td></tr>
<tr><th>Checksum</th><td>{{.Counts.Checksum}}</td></tr>
<tr><th>Line error</th><td>{{.Counts.LineError}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{duration .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Sensor</th><td>{{.Config.Model}} on {{.Config.Backend}} pin {{.Config.Pin}}</td></tr>
<tr><th>Interval</th><td>{{.Config.IntervalMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">Metrics</a></p>
{{if .Config.WSBroker}}
<script src="https://unpkg.com/mqtt@5/dist/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.Topic}}";
  var dot = document.getElementById("live-dot");

  function set(id, v) {
    var el = document.getElementById(id);
    if (el) { el.textContent = Number(v).toFixed(1); }
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.reading) {
        set("temp-c", msg.reading.temperature_c);
        set("temp-f", msg.reading.temperature_f);
        set("humidity", msg.reading.humidity);
        set("heat-index", msg.reading.heat_index_c);
        var taken = document.getElementById("taken");
        if (taken) { taken.textContent = msg.reading.timestamp; }
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has methods but the template needs plain fields.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Age    time.Duration
		Failed bool
		Topic  string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Age:      snap.ReadingAge(),
		Failed:   snap.LastOutcome.Failed(),
		Topic:    mqtt.TopicReadings(snap.Config.Device),
	}
	return indexTmpl.Execute(w, data)
}

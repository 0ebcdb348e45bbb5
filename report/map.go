// Package report renders the end-of-run artifacts: the pothole map and the
// optional track chart.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"potholepatrol/gps"
	"potholepatrol/tracking"
)

var debugMsgFunc func(component, message string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(component, message string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}

// MaxZoom is the deepest zoom level of the tile layer.
const MaxZoom = 19

// MapOptions controls the map page. Empty strings and a zero radius take the
// defaults; Zoom is used as given, 0 being the whole world.
type MapOptions struct {
	Title        string
	Zoom         int
	MarkerRadius int
	MarkerColor  string
	Caption      string // free text shown in the corner box, e.g. a run summary
}

// DefaultMapOptions returns the stock report settings.
func DefaultMapOptions() MapOptions {
	return MapOptions{
		Title:        "Pothole Patrol Report",
		Zoom:         15,
		MarkerRadius: 5,
		MarkerColor:  "red",
	}
}

func (o MapOptions) withDefaults() MapOptions {
	d := DefaultMapOptions()
	if o.Title != "" {
		d.Title = o.Title
	}
	d.Zoom = o.Zoom
	if o.MarkerRadius > 0 {
		d.MarkerRadius = o.MarkerRadius
	}
	if o.MarkerColor != "" {
		d.MarkerColor = o.MarkerColor
	}
	d.Caption = o.Caption
	return d
}

type mapMarker struct {
	Lat     template.JS
	Lon     template.JS
	Tooltip string
}

type mapPage struct {
	Title     string
	Caption   string
	CenterLat template.JS
	CenterLon template.JS
	Zoom      template.JS
	MaxZoom   int
	Radius    template.JS
	Color     string
	Markers   []mapMarker
}

// RenderMap writes an HTML map centered on origin with one identical circle
// marker per entry. With no entries nothing is written and false is returned.
func RenderMap(entries []tracking.LocationEntry, origin gps.Position, path string, opts MapOptions) (bool, error) {
	if len(entries) == 0 {
		debugMsg("REPORT", "Location log is empty, no map written")
		return false, nil
	}
	opts = opts.withDefaults()
	if opts.Zoom < 0 || opts.Zoom > MaxZoom {
		return false, errors.Errorf("map zoom must be between 0 and %d, got %d", MaxZoom, opts.Zoom)
	}

	page := mapPage{
		Title:     opts.Title,
		Caption:   opts.Caption,
		CenterLat: coord(origin.Lat),
		CenterLon: coord(origin.Lon),
		Zoom:      template.JS(strconv.Itoa(opts.Zoom)),
		MaxZoom:   MaxZoom,
		Radius:    template.JS(strconv.Itoa(opts.MarkerRadius)),
		Color:     opts.MarkerColor,
		Markers:   make([]mapMarker, 0, len(entries)),
	}
	for _, e := range entries {
		page.Markers = append(page.Markers, mapMarker{
			Lat:     coord(e.Lat),
			Lon:     coord(e.Lon),
			Tooltip: fmt.Sprintf("Frame %d: %.5f, %.5f", e.Frame, e.Lat, e.Lon),
		})
	}

	var buf bytes.Buffer
	if err := mapTemplate.Execute(&buf, page); err != nil {
		return false, errors.Wrap(err, "render map template")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return false, errors.Wrapf(err, "write map %s", path)
	}

	debugMsg("REPORT", fmt.Sprintf("Wrote %s with %d markers", path, len(entries)))
	return true, nil
}

// coord formats a coordinate as a plain JavaScript number literal.
func coord(v float64) template.JS {
	return template.JS(strconv.FormatFloat(v, 'f', -1, 64))
}

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
html, body { height: 100%; margin: 0; padding: 0; }
#map { position: absolute; top: 0; bottom: 0; right: 0; left: 0; }
.summary { background: white; padding: 6px 10px; font: 13px sans-serif; border-radius: 4px; }
</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map("map").setView([{{.CenterLat}}, {{.CenterLon}}], {{.Zoom}});
L.tileLayer("https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png", {
  maxZoom: {{.MaxZoom}},
  attribution: "&copy; OpenStreetMap contributors"
}).addTo(map);
var style = {radius: {{.Radius}}, color: {{.Color}}, fill: true, fillColor: {{.Color}}};
{{- range .Markers}}
L.circleMarker([{{.Lat}}, {{.Lon}}], style).bindTooltip({{.Tooltip}}).addTo(map);
{{- end}}
{{- if .Caption}}
var summary = L.control({position: "topright"});
summary.onAdd = function () {
  var div = L.DomUtil.create("div", "summary");
  div.textContent = {{.Caption}};
  return div;
};
summary.addTo(map);
{{- end}}
</script>
</body>
</html>
`))

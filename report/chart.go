package report

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/pkg/errors"

	"potholepatrol/gps"
	"potholepatrol/tracking"
)

// RenderTrack writes a scatter chart of the simulated route with the logged
// detections on top (longitude on X, latitude on Y). Like the map it is only
// written when the log has entries.
func RenderTrack(entries []tracking.LocationEntry, route []gps.Position, path, subtitle string) (bool, error) {
	if len(entries) == 0 {
		return false, nil
	}

	routeData := make([]opts.ScatterData, 0, len(route))
	for _, p := range route {
		routeData = append(routeData, opts.ScatterData{Value: []interface{}{p.Lon, p.Lat}})
	}
	detectionData := make([]opts.ScatterData, 0, len(entries))
	for _, e := range entries {
		detectionData = append(detectionData, opts.ScatterData{
			Name:  fmt.Sprintf("frame %d (%d%%)", e.Frame, int(e.Confidence*100)),
			Value: []interface{}{e.Lon, e.Lat},
		})
	}

	minLon, maxLon, minLat, maxLat := bounds(entries, route)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Pothole Patrol Track", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Simulated route and detections", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: minLon, Max: maxLon, Name: "Longitude", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: minLat, Max: maxLat, Name: "Latitude", NameLocation: "middle", NameGap: 50}),
	)
	scatter.AddSeries("route", routeData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	scatter.AddSeries("potholes", detectionData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return false, errors.Wrap(err, "render track chart")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return false, errors.Wrapf(err, "write track chart %s", path)
	}

	debugMsg("REPORT", fmt.Sprintf("Wrote %s (%d route points, %d detections)", path, len(route), len(entries)))
	return true, nil
}

// bounds returns padded axis limits covering every point.
func bounds(entries []tracking.LocationEntry, route []gps.Position) (minLon, maxLon, minLat, maxLat float64) {
	minLon, minLat = math.Inf(1), math.Inf(1)
	maxLon, maxLat = math.Inf(-1), math.Inf(-1)
	visit := func(p gps.Position) {
		minLon, maxLon = math.Min(minLon, p.Lon), math.Max(maxLon, p.Lon)
		minLat, maxLat = math.Min(minLat, p.Lat), math.Max(maxLat, p.Lat)
	}
	for _, p := range route {
		visit(p)
	}
	for _, e := range entries {
		visit(e.Position)
	}

	padLon := math.Max((maxLon-minLon)*0.05, 0.0001)
	padLat := math.Max((maxLat-minLat)*0.05, 0.0001)
	return minLon - padLon, maxLon + padLon, minLat - padLat, maxLat + padLat
}

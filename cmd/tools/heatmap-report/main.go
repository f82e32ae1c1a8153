// heatmap-report renders the survey heatmap as a standalone HTML scatter
// chart: one point per visited location, coloured by cumulative sightings.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/airtrace/internal/db"
)

var (
	dbFile  = flag.String("db", "survey.db", "Path to the survey database")
	outFile = flag.String("out", "heatmap.html", "Output HTML file")
)

func main() {
	flag.Parse()

	store, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	counts, err := store.HeatmapData()
	if err != nil {
		log.Fatalf("failed to load heatmap data: %v", err)
	}
	if len(counts) == 0 {
		log.Fatal("no locations recorded yet")
	}

	data := make([]opts.ScatterData, 0, len(counts))
	maxCount := 0
	for _, lc := range counts {
		if lc.Count > maxCount {
			maxCount = lc.Count
		}
		data = append(data, opts.ScatterData{
			Value: []interface{}{lc.Location.Lon, lc.Location.Lat, lc.Count},
		})
	}
	if maxCount == 0 {
		maxCount = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Survey Heatmap", Theme: "dark", Width: "900px", Height: "900px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Survey Heatmap",
			Subtitle: fmt.Sprintf("locations=%d", len(counts)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Longitude", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Latitude", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxCount),
			Dimension:  "2",
			InRange: &opts.VisualMapInRange{Color: []string{
				"#440154", "#3e4989", "#26828e", "#35b779", "#b5de2b", "#fde725",
			}},
		}),
	)
	scatter.AddSeries("sightings", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))

	f, err := os.Create(*outFile)
	if err != nil {
		log.Fatalf("failed to create %s: %v", *outFile, err)
	}
	defer f.Close()

	if err := scatter.Render(f); err != nil {
		log.Fatalf("failed to render chart: %v", err)
	}
	log.Printf("wrote %s (%d locations)", *outFile, len(counts))
}

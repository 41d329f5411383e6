package influx

import (
	"fmt"
	"path/filepath"
	"sort"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/openziti/geoarena/util"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	influxCmd.AddCommand(influxLoadCmd)
}

var influxLoadCmd = &cobra.Command{
	Use:   "load <metricsRoot>",
	Short: "Load pool metrics written by the metrics instrument",
	Args:  cobra.ExactArgs(1),
	Run:   influxLoad,
}

var datasets = []string{
	"allocated_bytes",
	"allocations",
	"allocation_failures",
	"resets",
	"written_bytes",
	"fence_waits",
	"fence_wait_us",
	"stale_handles",
	"size_mismatches",
	"errors",
}

func influxLoad(_ *cobra.Command, args []string) {
	found, err := util.DiscoverMetrics(args[0])
	if err != nil {
		logrus.Fatalf("error discovering metrics in [%s] (%v)", args[0], err)
	}
	var paths []string
	for path := range found {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	authToken := ""
	if influxDbUsername != "" || influxDbPassword != "" {
		authToken = fmt.Sprintf("%s:%s", influxDbUsername, influxDbPassword)
	}
	client := influxdb2.NewClient(influxDbUrl, authToken)
	defer client.Close()
	writeApi := client.WriteAPI("", influxDbDatabase)

	for _, path := range paths {
		pool := filepath.Base(path)
		id := found[path]
		for _, dataset := range datasets {
			samples, err := util.ReadSamples(filepath.Join(path, dataset+".csv"))
			if err != nil {
				logrus.Fatalf("error reading dataset [%s] for [%s] (%v)", dataset, pool, err)
			}
			for _, sample := range samples {
				p := influxdb2.NewPoint(dataset, nil, map[string]interface{}{"v": sample.V}, sample.Ts).
					AddTag("pool", pool).
					AddTag("kind", id.Values["kind"]).
					AddTag("mode", id.Values["mode"])
				writeApi.WritePoint(p)
			}
			logrus.Infof("wrote [%d] points for pool [%s] dataset [%s]", len(samples), pool, dataset)
		}
	}
	writeApi.Flush()
	logrus.Infof("complete")
}

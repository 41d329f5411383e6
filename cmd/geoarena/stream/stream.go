package stream

import (
	"math"
	"net/http"
	"time"

	arena "github.com/openziti/geoarena"
	"github.com/openziti/geoarena/cmd/geoarena/geoarena"
	"github.com/openziti/geoarena/submit"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	streamCmd.Flags().StringVar(&deviceName, "device", "sim", "Device (sim, mmap, host)")
	streamCmd.Flags().IntVar(&latencyMs, "latency", -1, "Simulated device latency in milliseconds")
	streamCmd.Flags().IntVarP(&frames, "frames", "f", 600, "Frames to stream")
	streamCmd.Flags().IntVarP(&objects, "objects", "o", 64, "Objects drawn per frame")
	streamCmd.Flags().IntVar(&vertices, "vertices", 256, "Vertices per object")
	streamCmd.Flags().IntVar(&frameCapacity, "capacity", 4*1024*1024, "Per-frame pool capacity in bytes")
	streamCmd.Flags().DurationVar(&frameInterval, "interval", 0, "Delay between frames")
	streamCmd.Flags().StringVar(&prometheusAddr, "prometheus", "", "Serve prometheus metrics on this address")
	geoarena.RootCmd.AddCommand(streamCmd)
}

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream per-frame geometry through a pool",
	Args:  cobra.NoArgs,
	Run:   stream,
}
var deviceName string
var latencyMs int
var frames int
var objects int
var vertices int
var frameCapacity int
var frameInterval time.Duration
var prometheusAddr string

type vec3 struct{ x, y, z float32 }

func stream(_ *cobra.Command, _ []string) {
	if err := runStream(); err != nil {
		logrus.Fatalf("error streaming (%v)", err)
	}
}

// runStream streams frames through a per-frame pool. The registry is closed before the device, so its final fences
// can still be reached.
//
func runStream() error {
	p, err := geoarena.LoadProfile()
	if err != nil {
		return errors.Wrap(err, "error loading profile")
	}
	if prometheusAddr != "" {
		p.Instrument = "prometheus"
	}

	dev, closer, err := geoarena.DeviceFor(deviceName, latencyMs)
	if err != nil {
		return errors.Wrap(err, "error creating device")
	}
	defer closer()

	reg, i, err := geoarena.NewRegistry(p)
	if err != nil {
		return errors.Wrap(err, "error creating registry")
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logrus.Errorf("error closing registry (%v)", err)
		}
	}()
	if pi, ok := i.(*arena.PrometheusInstrument); ok && prometheusAddr != "" {
		go servePrometheus(pi)
	}

	indexPool, err := arena.NewPool(reg, dev, 64*1024, arena.WriteOnce, arena.IndexData)
	if err != nil {
		return errors.Wrap(err, "error creating index pool")
	}
	indices, err := arena.FromSlice(indexPool, triangleStrip(vertices), arena.FormatUint16)
	if err != nil {
		return errors.Wrap(err, "error uploading indices")
	}
	framePool, err := arena.NewPool(reg, dev, frameCapacity, arena.WriteEveryFrame, arena.VertexData)
	if err != nil {
		return errors.Wrap(err, "error creating frame pool")
	}

	var submitter *submit.Submitter
	if dev != nil {
		submitter = submit.NewSubmitter(dev)
	}

	start := time.Now()
	for frame := 0; frame < frames; frame++ {
		if err := streamFrame(framePool, indices, submitter, frame); err != nil {
			return errors.Wrapf(err, "error streaming frame #%d", frame)
		}
		if frame%60 == 0 {
			for _, stats := range reg.Snapshot() {
				logrus.Infof("frame #%d: pool [%s] %s allocated [%d/%d] peak [%d] generation [%d]", frame, stats.Id, stats.Kind, stats.Allocated, stats.Capacity, stats.Peak, stats.Generation)
			}
		}
		if frameInterval > 0 {
			time.Sleep(frameInterval)
		}
	}
	seconds := time.Since(start).Seconds()
	logrus.Infof("%d frames, %.2f seconds, %.2f frames/sec", frames, seconds, float64(frames)/seconds)
	return nil
}

func streamFrame(pool *arena.Pool, indices *arena.Range, submitter *submit.Submitter, frame int) error {
	if err := pool.Reset(); err != nil {
		return err
	}
	positions := make([]vec3, vertices)
	normals := make([]vec3, vertices)
	for obj := 0; obj < objects; obj++ {
		phase := float64(frame)/60.0 + float64(obj)
		for v := 0; v < vertices; v++ {
			a := 2 * math.Pi * float64(v) / float64(vertices)
			positions[v] = vec3{float32(math.Cos(a + phase)), float32(math.Sin(a + phase)), float32(obj)}
			normals[v] = vec3{0, 0, 1}
		}
		ranges, err := arena.CreateInterleaved(pool,
			arena.Interleaved(positions, arena.FormatVec3),
			arena.Interleaved(normals, arena.FormatVec3),
		)
		if err != nil {
			if errors.Is(err, arena.ErrOutOfCapacity) {
				logrus.Warnf("frame #%d: pool full after [%d] objects", frame, obj)
				return nil
			}
			return err
		}
		if submitter == nil {
			continue
		}
		for _, r := range ranges {
			if err := submitter.BindVertexSource(r); err != nil {
				return err
			}
		}
		if err := submitter.BindIndexSource(indices); err != nil {
			return err
		}
		if err := submitter.Draw(); err != nil {
			return err
		}
	}
	return nil
}

func triangleStrip(n int) []uint16 {
	out := make([]uint16, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, uint16(i))
	}
	return out
}

func servePrometheus(pi *arena.PrometheusInstrument) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(pi.Gatherer(), promhttp.HandlerOpts{}))
	logrus.Infof("serving metrics at [http://%s/metrics]", prometheusAddr)
	if err := http.ListenAndServe(prometheusAddr, mux); err != nil {
		logrus.Errorf("error serving metrics (%v)", err)
	}
}

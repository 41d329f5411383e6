package geoarena

import (
	"time"

	"github.com/openziti/geoarena/cf"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

type PrometheusInstrument struct {
	config   *prometheusInstrumentConfig
	registry *prometheus.Registry

	capacity           *prometheus.GaugeVec
	allocated          *prometheus.GaugeVec
	peak               *prometheus.GaugeVec
	generation         *prometheus.GaugeVec
	allocations        *prometheus.CounterVec
	allocationFailures *prometheus.CounterVec
	writtenBytes       *prometheus.CounterVec
	fenceWait          *prometheus.HistogramVec
	fenceFailures      *prometheus.CounterVec
	handleErrors       *prometheus.CounterVec
	poolsCollected     prometheus.Counter
}

type prometheusInstrumentConfig struct {
	Namespace string `cf:"namespace"`
}

func NewPrometheusInstrument(config map[string]interface{}) (Instrument, error) {
	cfg := &prometheusInstrumentConfig{Namespace: "geoarena"}
	if config != nil {
		if err := cf.Load(config, cfg); err != nil {
			return nil, errors.Wrap(err, "unable to load config")
		}
	}
	r := prometheus.NewRegistry()
	f := promauto.With(r)
	i := &PrometheusInstrument{
		config:   cfg,
		registry: r,
		capacity: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "pool_capacity_bytes",
			Help:      "Fixed capacity of the pool",
		}, []string{"pool", "kind", "mode"}),
		allocated: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "pool_allocated_bytes",
			Help:      "Bytes allocated from the pool, including alignment padding",
		}, []string{"pool"}),
		peak: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "pool_peak_allocated_bytes",
			Help:      "Highest allocated byte count observed for the pool",
		}, []string{"pool"}),
		generation: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "pool_generation",
			Help:      "Current pool generation",
		}, []string{"pool"}),
		allocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "pool_allocations_total",
			Help:      "Successful allocations",
		}, []string{"pool"}),
		allocationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "pool_allocation_failures_total",
			Help:      "Allocations rejected for lack of capacity",
		}, []string{"pool"}),
		writtenBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "pool_written_bytes_total",
			Help:      "Bytes uploaded through ranges",
		}, []string{"pool"}),
		fenceWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "pool_fence_wait_seconds",
			Help:      "Time spent blocked on pool fences",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"pool"}),
		fenceFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "pool_fence_failures_total",
			Help:      "Fence waits that failed",
		}, []string{"pool"}),
		handleErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "range_errors_total",
			Help:      "Rejected range operations",
		}, []string{"pool", "op", "reason"}),
		poolsCollected: f.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "pools_collected_total",
			Help:      "Unreachable pools reclaimed by the registry",
		}),
	}
	logrus.Info(cf.Dump("prometheus instrument", cfg))
	return i, nil
}

// Gatherer exposes the instrument's private registry, for serving with promhttp.
//
func (self *PrometheusInstrument) Gatherer() prometheus.Gatherer {
	return self.registry
}

func (self *PrometheusInstrument) NewInstance(id string) InstrumentInstance {
	return &prometheusInstrumentInstance{id: id, i: self}
}

func (self *PrometheusInstrument) Shutdown() {}

type prometheusInstrumentInstance struct {
	id   string
	i    *PrometheusInstrument
	kind Kind
	mode BackingMode
	peak int
}

/*
 * lifecycle
 */
func (self *prometheusInstrumentInstance) Created(capacity int, mode BackingMode, kind Kind) {
	self.kind = kind
	self.mode = mode
	self.i.capacity.WithLabelValues(self.id, kind.String(), mode.String()).Set(float64(capacity))
	self.i.allocated.WithLabelValues(self.id).Set(0)
	self.i.generation.WithLabelValues(self.id).Set(0)
}

func (self *prometheusInstrumentInstance) Destroyed() {
	self.forget()
}

func (self *prometheusInstrumentInstance) Collected() {
	self.i.poolsCollected.Inc()
	self.forget()
}

func (self *prometheusInstrumentInstance) forget() {
	self.i.capacity.DeleteLabelValues(self.id, self.kind.String(), self.mode.String())
	self.i.allocated.DeleteLabelValues(self.id)
	self.i.peak.DeleteLabelValues(self.id)
	self.i.generation.DeleteLabelValues(self.id)
}

/*
 * allocation
 */
func (self *prometheusInstrumentInstance) Allocated(_, _, allocated int) {
	self.i.allocated.WithLabelValues(self.id).Set(float64(allocated))
	if allocated > self.peak {
		self.peak = allocated
		self.i.peak.WithLabelValues(self.id).Set(float64(allocated))
	}
	self.i.allocations.WithLabelValues(self.id).Inc()
}

func (self *prometheusInstrumentInstance) AllocationFailed(int) {
	self.i.allocationFailures.WithLabelValues(self.id).Inc()
}

func (self *prometheusInstrumentInstance) Reset(generation uint64) {
	self.i.allocated.WithLabelValues(self.id).Set(0)
	self.i.generation.WithLabelValues(self.id).Set(float64(generation))
}

func (self *prometheusInstrumentInstance) Written(bytes int) {
	self.i.writtenBytes.WithLabelValues(self.id).Add(float64(bytes))
}

/*
 * synchronization
 */
func (self *prometheusInstrumentInstance) FenceCreated() {}

func (self *prometheusInstrumentInstance) FenceWaited(d time.Duration) {
	self.i.fenceWait.WithLabelValues(self.id).Observe(d.Seconds())
}

func (self *prometheusInstrumentInstance) FenceFailed(error) {
	self.i.fenceFailures.WithLabelValues(self.id).Inc()
}

/*
 * handles
 */
func (self *prometheusInstrumentInstance) StaleHandle(op string) {
	self.i.handleErrors.WithLabelValues(self.id, op, "stale").Inc()
}

func (self *prometheusInstrumentInstance) SizeMismatch(op string, _, _ int) {
	self.i.handleErrors.WithLabelValues(self.id, op, "size").Inc()
}

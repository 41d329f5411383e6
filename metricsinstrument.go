package geoarena

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openziti/geoarena/cf"
	"github.com/openziti/geoarena/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const metricsId = "geoarena.pool.1"

type MetricsInstrument struct {
	lock      sync.Mutex
	Config    *MetricsInstrumentConfig
	instances []*metricsInstrumentInstance
}

type MetricsInstrumentConfig struct {
	Path            string `cf:"path"`
	SnapshotMs      int    `cf:"snapshot_ms"`
	Enabled         bool   `cf:"enabled"`
	Ctrl            bool   `cf:"ctrl"`
	WriteOnShutdown bool   `cf:"write_on_shutdown"`
}

func NewMetricsInstrument(config map[string]interface{}) (Instrument, error) {
	i := &MetricsInstrument{
		Config: &MetricsInstrumentConfig{
			Path:       os.TempDir(),
			SnapshotMs: 1000,
			Enabled:    true,
		},
	}
	if config != nil {
		if err := cf.Load(config, i.Config); err != nil {
			return nil, errors.Wrap(err, "unable to load config")
		}
	}
	if i.Config.SnapshotMs <= 0 {
		return nil, errors.Errorf("invalid snapshot_ms [%d]", i.Config.SnapshotMs)
	}
	if i.Config.Ctrl {
		if err := i.addCtrlListener(); err != nil {
			return nil, err
		}
	}
	logrus.Info(cf.Dump("metrics instrument", i.Config))
	return i, nil
}

func (self *MetricsInstrument) addCtrlListener() error {
	cl, err := util.GetCtrlListener(self.Config.Path, "geoarena")
	if err != nil {
		return errors.Wrap(err, "unable to get metrics ctrl listener")
	}
	cl.AddCallback("start", func(string, net.Conn) error {
		self.setEnabled(true)
		return nil
	})
	cl.AddCallback("stop", func(string, net.Conn) error {
		self.setEnabled(false)
		return nil
	})
	cl.AddCallback("write", func(string, net.Conn) error {
		err := self.WriteAllSamples()
		if err != nil {
			logrus.Errorf("error writing samples (%v)", err)
		}
		return err
	})
	cl.AddCallback("clean", func(string, net.Conn) error {
		self.clean()
		return nil
	})
	cl.Start()
	return nil
}

func (self *MetricsInstrument) NewInstance(id string) InstrumentInstance {
	self.lock.Lock()
	defer self.lock.Unlock()

	ii := &metricsInstrumentInstance{
		id:     id,
		config: self.Config,
		close:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	ii.enabled.Store(self.Config.Enabled)
	go ii.snapshotter(self.Config.SnapshotMs)
	self.instances = append(self.instances, ii)
	return ii
}

func (self *MetricsInstrument) Shutdown() {
	self.lock.Lock()
	instances := append([]*metricsInstrumentInstance(nil), self.instances...)
	self.lock.Unlock()

	for _, ii := range instances {
		ii.stop()
	}
	if self.Config.WriteOnShutdown {
		if err := self.WriteAllSamples(); err != nil {
			logrus.Errorf("error writing samples on shutdown (%v)", err)
		}
	}
}

func (self *MetricsInstrument) setEnabled(enabled bool) {
	self.lock.Lock()
	defer self.lock.Unlock()

	self.Config.Enabled = enabled
	for _, ii := range self.instances {
		ii.enabled.Store(enabled)
	}
}

// WriteAllSamples writes one directory of sample files per pool beneath the configured path.
//
func (self *MetricsInstrument) WriteAllSamples() error {
	self.lock.Lock()
	defer self.lock.Unlock()

	if err := os.MkdirAll(self.Config.Path, os.ModePerm); err != nil {
		return err
	}
	for _, ii := range self.instances {
		outPath, err := os.MkdirTemp(self.Config.Path, fmt.Sprintf("%s_", ii.id))
		if err != nil {
			return err
		}
		logrus.Infof("writing metrics to: %s", outPath)

		ii.lock.Lock()
		values := map[string]string{
			"capacity": strconv.Itoa(ii.capacity),
			"mode":     ii.mode.String(),
			"kind":     ii.kind.String(),
		}
		series := map[string][]*util.Sample{
			"allocated_bytes":     ii.allocatedBytes,
			"allocations":         ii.allocations,
			"allocation_failures": ii.allocationFailures,
			"resets":              ii.resets,
			"written_bytes":       ii.writtenBytes,
			"fence_waits":         ii.fenceWaits,
			"fence_wait_us":       ii.fenceWaitUs,
			"stale_handles":       ii.staleHandles,
			"size_mismatches":     ii.sizeMismatches,
			"errors":              ii.errors,
		}
		ii.lock.Unlock()

		if err := util.WriteMetricsId(metricsId, outPath, values); err != nil {
			return err
		}
		for name, samples := range series {
			if err := util.WriteSamples(name, outPath, samples); err != nil {
				return err
			}
		}
	}
	return nil
}

func (self *MetricsInstrument) clean() {
	self.lock.Lock()
	defer self.lock.Unlock()

	var open []*metricsInstrumentInstance
	for _, ii := range self.instances {
		if ii.closed.Load() {
			logrus.Infof("removed metricsInstrumentInstance #%p", ii)
			continue
		}
		open = append(open, ii)
	}
	self.instances = open
}

type metricsInstrumentInstance struct {
	id       string
	config   *MetricsInstrumentConfig
	enabled  atomic.Bool
	close    chan struct{}
	done     chan struct{}
	closed   atomic.Bool
	lock     sync.Mutex
	capacity int
	mode     BackingMode
	kind     Kind

	allocatedBytes          []*util.Sample
	allocatedBytesVal       int64
	allocations             []*util.Sample
	allocationsAccum        int64
	allocationFailures      []*util.Sample
	allocationFailuresAccum int64
	resets                  []*util.Sample
	resetsAccum             int64
	writtenBytes            []*util.Sample
	writtenBytesAccum       int64

	fenceWaits       []*util.Sample
	fenceWaitsAccum  int64
	fenceWaitUs      []*util.Sample
	fenceWaitUsAccum int64

	staleHandles        []*util.Sample
	staleHandlesAccum   int64
	sizeMismatches      []*util.Sample
	sizeMismatchesAccum int64
	errors              []*util.Sample
	errorsAccum         int64
}

/*
 * lifecycle
 */
func (self *metricsInstrumentInstance) Created(capacity int, mode BackingMode, kind Kind) {
	self.lock.Lock()
	defer self.lock.Unlock()
	self.capacity = capacity
	self.mode = mode
	self.kind = kind
}

func (self *metricsInstrumentInstance) Destroyed() { self.stop() }
func (self *metricsInstrumentInstance) Collected() { self.stop() }

/*
 * allocation
 */
func (self *metricsInstrumentInstance) Allocated(_, _, allocated int) {
	if self.enabled.Load() {
		atomic.StoreInt64(&self.allocatedBytesVal, int64(allocated))
		atomic.AddInt64(&self.allocationsAccum, 1)
	}
}

func (self *metricsInstrumentInstance) AllocationFailed(int) {
	if self.enabled.Load() {
		atomic.AddInt64(&self.allocationFailuresAccum, 1)
	}
}

func (self *metricsInstrumentInstance) Reset(uint64) {
	if self.enabled.Load() {
		atomic.StoreInt64(&self.allocatedBytesVal, 0)
		atomic.AddInt64(&self.resetsAccum, 1)
	}
}

func (self *metricsInstrumentInstance) Written(bytes int) {
	if self.enabled.Load() {
		atomic.AddInt64(&self.writtenBytesAccum, int64(bytes))
	}
}

/*
 * synchronization
 */
func (self *metricsInstrumentInstance) FenceCreated() {}

func (self *metricsInstrumentInstance) FenceWaited(d time.Duration) {
	if self.enabled.Load() {
		atomic.AddInt64(&self.fenceWaitsAccum, 1)
		atomic.AddInt64(&self.fenceWaitUsAccum, d.Microseconds())
	}
}

func (self *metricsInstrumentInstance) FenceFailed(err error) {
	logrus.Errorf("fence failed (%v)", err)
	atomic.AddInt64(&self.errorsAccum, 1)
}

/*
 * handles
 */
func (self *metricsInstrumentInstance) StaleHandle(string) {
	atomic.AddInt64(&self.staleHandlesAccum, 1)
}

func (self *metricsInstrumentInstance) SizeMismatch(string, int, int) {
	atomic.AddInt64(&self.sizeMismatchesAccum, 1)
}

func (self *metricsInstrumentInstance) stop() {
	if self.closed.CompareAndSwap(false, true) {
		close(self.close)
		<-self.done
	}
}

func (self *metricsInstrumentInstance) snapshotter(ms int) {
	logrus.Debugf("started")
	defer logrus.Debugf("exited")
	defer close(self.done)

	ticker := time.NewTicker(time.Duration(ms) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if self.enabled.Load() {
				self.snapshot()
			}
		case <-self.close:
			self.snapshot()
			return
		}
	}
}

func (self *metricsInstrumentInstance) snapshot() {
	self.lock.Lock()
	defer self.lock.Unlock()

	now := time.Now()
	self.allocatedBytes = append(self.allocatedBytes, &util.Sample{Ts: now, V: atomic.LoadInt64(&self.allocatedBytesVal)})
	self.allocations = append(self.allocations, &util.Sample{Ts: now, V: atomic.SwapInt64(&self.allocationsAccum, 0)})
	self.allocationFailures = append(self.allocationFailures, &util.Sample{Ts: now, V: atomic.SwapInt64(&self.allocationFailuresAccum, 0)})
	self.resets = append(self.resets, &util.Sample{Ts: now, V: atomic.SwapInt64(&self.resetsAccum, 0)})
	self.writtenBytes = append(self.writtenBytes, &util.Sample{Ts: now, V: atomic.SwapInt64(&self.writtenBytesAccum, 0)})
	self.fenceWaits = append(self.fenceWaits, &util.Sample{Ts: now, V: atomic.SwapInt64(&self.fenceWaitsAccum, 0)})
	self.fenceWaitUs = append(self.fenceWaitUs, &util.Sample{Ts: now, V: atomic.SwapInt64(&self.fenceWaitUsAccum, 0)})
	self.staleHandles = append(self.staleHandles, &util.Sample{Ts: now, V: atomic.SwapInt64(&self.staleHandlesAccum, 0)})
	self.sizeMismatches = append(self.sizeMismatches, &util.Sample{Ts: now, V: atomic.SwapInt64(&self.sizeMismatchesAccum, 0)})
	self.errors = append(self.errors, &util.Sample{Ts: now, V: atomic.SwapInt64(&self.errorsAccum, 0)})
}

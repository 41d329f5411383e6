package geoarena

import (
	"time"

	"github.com/openziti/geoarena/cf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type traceInstrument struct {
	config *traceInstrumentConfig
}

type traceInstrumentConfig struct {
	Lifecycle  bool `cf:"lifecycle"`
	Allocation bool `cf:"allocation"`
	Sync       bool `cf:"sync"`
	Handles    bool `cf:"handles"`
}

type traceInstrumentInstance struct {
	id     string
	config *traceInstrumentConfig
}

func NewTraceInstrument(config map[string]interface{}) (Instrument, error) {
	i := &traceInstrument{
		config: &traceInstrumentConfig{Lifecycle: true, Sync: true, Handles: true},
	}
	if config != nil {
		if err := cf.Load(config, i.config); err != nil {
			return nil, errors.Wrap(err, "unable to load config")
		}
	}
	logrus.Info(cf.Dump("trace instrument", i.config))
	return i, nil
}

func (self *traceInstrument) NewInstance(id string) InstrumentInstance {
	return &traceInstrumentInstance{id: id, config: self.config}
}

func (self *traceInstrument) Shutdown() {}

/*
 * lifecycle
 */
func (self *traceInstrumentInstance) Created(capacity int, mode BackingMode, kind Kind) {
	if self.config.Lifecycle {
		logrus.Infof("[%s] created %s %s pool of [%d] bytes", self.id, mode, kind, capacity)
	}
}

func (self *traceInstrumentInstance) Destroyed() {
	if self.config.Lifecycle {
		logrus.Infof("[%s] destroyed", self.id)
	}
}

func (self *traceInstrumentInstance) Collected() {
	if self.config.Lifecycle {
		logrus.Infof("[%s] collected", self.id)
	}
}

/*
 * allocation
 */
func (self *traceInstrumentInstance) Allocated(offset, size, allocated int) {
	if self.config.Allocation {
		logrus.Infof("[%s] ^ [%d] bytes @ [%d], allocated [%d]", self.id, size, offset, allocated)
	}
}

func (self *traceInstrumentInstance) AllocationFailed(size int) {
	if self.config.Allocation {
		logrus.Infof("[%s] ! allocation of [%d] bytes failed", self.id, size)
	}
}

func (self *traceInstrumentInstance) Reset(generation uint64) {
	if self.config.Allocation {
		logrus.Infof("[%s] reset, generation [%d]", self.id, generation)
	}
}

func (self *traceInstrumentInstance) Written(bytes int) {
	if self.config.Allocation {
		logrus.Infof("[%s] <- [%d] bytes", self.id, bytes)
	}
}

/*
 * synchronization
 */
func (self *traceInstrumentInstance) FenceCreated() {
	if self.config.Sync {
		logrus.Infof("[%s] fence created", self.id)
	}
}

func (self *traceInstrumentInstance) FenceWaited(d time.Duration) {
	if self.config.Sync {
		logrus.Infof("[%s] fence reached after [%s]", self.id, d)
	}
}

func (self *traceInstrumentInstance) FenceFailed(err error) {
	if self.config.Sync {
		logrus.Errorf("[%s] fence failed (%v)", self.id, err)
	}
}

/*
 * handles
 */
func (self *traceInstrumentInstance) StaleHandle(op string) {
	if self.config.Handles {
		logrus.Warnf("[%s] stale handle on %s", self.id, op)
	}
}

func (self *traceInstrumentInstance) SizeMismatch(op string, requested, reserved int) {
	if self.config.Handles {
		logrus.Warnf("[%s] %s of [%d] bytes exceeds reservation [%d]", self.id, op, requested, reserved)
	}
}

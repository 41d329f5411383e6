package geoarena

import (
	"sync"
	"time"
	"weak"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/sirupsen/logrus"
)

// Registry is the process-wide record of live pools. It holds pools weakly, so tracking never keeps a pool alive.
// Once a pool is destroyed, or unreachable with no device work still reading it, Collect releases its storage. Construct one at startup and Close it at
// shutdown.
//
type Registry struct {
	lock       sync.Mutex
	profile    *Profile
	instrument Instrument
	entries    *treemap.Map
	closed     bool
}

type registryEntry struct {
	pool    weak.Pointer[Pool]
	storage backing
	flight  *inflight
	ii      InstrumentInstance
	stats   PoolStats
}

func NewRegistry(profile *Profile, i Instrument) *Registry {
	if profile == nil {
		profile = NewBaselineProfile()
	}
	if i == nil {
		i = NewNilInstrument()
	}
	return &Registry{
		profile:    profile,
		instrument: i,
		entries:    treemap.NewWithStringComparator(),
	}
}

func (self *Registry) Profile() *Profile      { return self.profile }
func (self *Registry) Instrument() Instrument { return self.instrument }

func (self *Registry) track(p *Pool) {
	self.lock.Lock()
	defer self.lock.Unlock()

	self.entries.Put(p.id, &registryEntry{
		pool:    weak.Make(p),
		storage: p.storage,
		flight:  p.flight,
		ii:      p.ii,
		stats:   p.Stats(),
	})
}

// Collect releases the storage of every tracked pool that is destroyed, or no longer reachable and not read by
// in-flight device work, returning how many were reclaimed. An unreachable pool still referenced by submitted work
// is fenced and kept for a later pass.
//
func (self *Registry) Collect() int {
	self.lock.Lock()
	defer self.lock.Unlock()

	var reclaimed []string
	it := self.entries.Iterator()
	for it.Next() {
		entry := it.Value().(*registryEntry)
		p := entry.pool.Value()
		if p != nil {
			entry.stats = p.Stats()
			if !p.destroyed {
				continue
			}
		} else {
			if !entry.retired(0, false) {
				continue
			}
			if err := entry.storage.release(); err != nil {
				logrus.Errorf("error releasing storage for unreachable pool [%s] (%v)", entry.stats.Id, err)
			}
			entry.ii.Collected()
			logrus.Debugf("collected unreachable pool [%s]", entry.stats.Id)
		}
		reclaimed = append(reclaimed, it.Key().(string))
	}
	for _, id := range reclaimed {
		self.entries.Remove(id)
	}
	return len(reclaimed)
}

// Live returns the number of tracked pools, including unreachable pools not yet collected.
//
func (self *Registry) Live() int {
	self.lock.Lock()
	defer self.lock.Unlock()
	return self.entries.Size()
}

// Snapshot returns the last known stats of every tracked pool, ordered by pool id.
//
func (self *Registry) Snapshot() []PoolStats {
	self.lock.Lock()
	defer self.lock.Unlock()

	out := make([]PoolStats, 0, self.entries.Size())
	it := self.entries.Iterator()
	for it.Next() {
		entry := it.Value().(*registryEntry)
		if p := entry.pool.Value(); p != nil {
			entry.stats = p.Stats()
		}
		out = append(out, entry.stats)
	}
	return out
}

// Close destroys every tracked pool and shuts down the instrument.
//
func (self *Registry) Close() error {
	self.lock.Lock()
	defer self.lock.Unlock()

	if self.closed {
		return nil
	}
	self.closed = true

	var firstErr error
	it := self.entries.Iterator()
	for it.Next() {
		entry := it.Value().(*registryEntry)
		var err error
		if p := entry.pool.Value(); p != nil {
			err = p.Destroy()
		} else {
			err = entry.storage.release()
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	logrus.Infof("closed registry with [%d] pools", self.entries.Size())
	self.entries.Clear()
	self.instrument.Shutdown()
	return firstErr
}

// retired reports whether device work can no longer read the storage of an unreachable pool. Outstanding
// references are fenced on first sight. A blocking check waits up to timeout (0 waits unbounded). A device that
// fails the sync point will never read the storage again, so failure counts as retired.
//
func (self *registryEntry) retired(timeout time.Duration, block bool) bool {
	dev := self.storage.syncDevice()
	if dev == nil {
		return true
	}
	if self.flight.referenced {
		sp, err := dev.CreateSyncPoint()
		if err != nil {
			logrus.Warnf("unable to fence unreachable pool [%s] (%v)", self.stats.Id, err)
			return true
		}
		self.flight.sp = sp
		self.flight.armed = true
		self.flight.referenced = false
	}
	if !self.flight.armed {
		return true
	}

	var reached bool
	var err error
	if block {
		err = dev.WaitSyncPoint(self.flight.sp, timeout)
		reached = err == nil
	} else {
		reached, err = dev.PollSyncPoint(self.flight.sp)
	}
	if err != nil {
		logrus.Warnf("sync point #%d of unreachable pool [%s] failed (%v)", self.flight.sp, self.stats.Id, err)
		return true
	}
	if reached {
		self.flight.armed = false
	}
	return reached
}

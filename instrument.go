package geoarena

import (
	"time"

	"github.com/pkg/errors"
)

type Instrument interface {
	NewInstance(id string) InstrumentInstance
	Shutdown()
}

// InstrumentInstance observes a single pool.
//
type InstrumentInstance interface {
	// lifecycle
	Created(capacity int, mode BackingMode, kind Kind)
	Destroyed()
	Collected()

	// allocation
	Allocated(offset, size, allocated int)
	AllocationFailed(size int)
	Reset(generation uint64)
	Written(bytes int)

	// synchronization
	FenceCreated()
	FenceWaited(d time.Duration)
	FenceFailed(err error)

	// handles
	StaleHandle(op string)
	SizeMismatch(op string, requested, reserved int)
}

func NewInstrument(name string, config map[string]interface{}) (i Instrument, err error) {
	switch name {
	case "", "nil":
		return NewNilInstrument(), nil
	case "trace":
		return NewTraceInstrument(config)
	case "metrics":
		return NewMetricsInstrument(config)
	case "prometheus":
		return NewPrometheusInstrument(config)
	default:
		return nil, errors.Errorf("unknown instrument '%s'", name)
	}
}

// NewProfileInstrument builds the instrument selected by a profile.
//
func NewProfileInstrument(p *Profile) (Instrument, error) {
	return NewInstrument(p.Instrument, p.InstrumentConfig)
}

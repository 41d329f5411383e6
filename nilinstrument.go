package geoarena

import "time"

type nilInstrument struct{}

func NewNilInstrument() Instrument {
	return &nilInstrument{}
}

func (self *nilInstrument) NewInstance(string) InstrumentInstance {
	return &nilInstrumentInstance{}
}

func (self *nilInstrument) Shutdown() {}

type nilInstrumentInstance struct{}

/*
 * lifecycle
 */
func (self *nilInstrumentInstance) Created(int, BackingMode, Kind) {}
func (self *nilInstrumentInstance) Destroyed()                     {}
func (self *nilInstrumentInstance) Collected()                     {}

/*
 * allocation
 */
func (self *nilInstrumentInstance) Allocated(int, int, int) {}
func (self *nilInstrumentInstance) AllocationFailed(int)    {}
func (self *nilInstrumentInstance) Reset(uint64)            {}
func (self *nilInstrumentInstance) Written(int)             {}

/*
 * synchronization
 */
func (self *nilInstrumentInstance) FenceCreated()             {}
func (self *nilInstrumentInstance) FenceWaited(time.Duration) {}
func (self *nilInstrumentInstance) FenceFailed(error)         {}

/*
 * handles
 */
func (self *nilInstrumentInstance) StaleHandle(string)            {}
func (self *nilInstrumentInstance) SizeMismatch(string, int, int) {}

package geoarena

import (
	arena "github.com/openziti/geoarena"
	"github.com/openziti/geoarena/device"
	"github.com/openziti/geoarena/device/mmap"
	"github.com/openziti/geoarena/device/sim"
	"github.com/openziti/geoarena/submit"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Device is a device that can also accept draw submissions.
//
type Device interface {
	device.Device
	submit.Queue
}

// DeviceFor builds the named device. "host" selects host-emulated pools and returns a nil Device.
//
func DeviceFor(name string, latencyMs int) (Device, func(), error) {
	switch name {
	case "host":
		return nil, func() {}, nil

	case "sim":
		cfg := sim.NewDefaultConfig()
		if latencyMs >= 0 {
			cfg.LatencyMs = latencyMs
		}
		d := sim.NewDevice(cfg)
		return d, d.Close, nil

	case "mmap":
		return mmap.NewDevice(), func() {}, nil

	default:
		return nil, nil, errors.Errorf("unknown device '%s'", name)
	}
}

// LoadProfile returns the profile selected by --profile, or the baseline.
//
func LoadProfile() (*arena.Profile, error) {
	p := arena.NewBaselineProfile()
	if profilePath != "" {
		var err error
		if p, err = arena.LoadProfile(profilePath); err != nil {
			return nil, err
		}
	}
	if profileDump {
		logrus.Info(p.Dump())
	}
	return p, nil
}

// NewRegistry builds a registry and the instrument selected by the profile.
//
func NewRegistry(p *arena.Profile) (*arena.Registry, arena.Instrument, error) {
	i, err := arena.NewProfileInstrument(p)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to create instrument")
	}
	return arena.NewRegistry(p, i), i, nil
}

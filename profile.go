package geoarena

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/openziti/geoarena/cf"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const profileVersion = 1

// Profile carries the process-wide tunables shared by every pool created through a Registry.
//
type Profile struct {
	Version          int                    `cf:"profile_version" validate:"eq=1"`
	DefaultAlignment int                    `cf:"default_alignment" validate:"gt=0"`
	StrictHandles    bool                   `cf:"strict_handles"`
	FenceTimeoutMs   int                    `cf:"fence_timeout_ms" validate:"gte=0"`
	Instrument       string                 `cf:"instrument" validate:"oneof=nil trace metrics prometheus"`
	InstrumentConfig map[string]interface{} `cf:"instrument_config"`
}

func NewBaselineProfile() *Profile {
	return &Profile{
		Version:          profileVersion,
		DefaultAlignment: 4,
		StrictHandles:    false,
		FenceTimeoutMs:   0,
		Instrument:       "nil",
	}
}

// LoadProfile reads a YAML profile from path, layered over the baseline.
//
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read profile [%s]", path)
	}
	dataMap := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &dataMap); err != nil {
		return nil, errors.Wrapf(err, "unable to unmarshal profile [%s]", path)
	}
	p := NewBaselineProfile()
	if err := p.Load(dataMap); err != nil {
		return nil, errors.Wrapf(err, "unable to load profile [%s]", path)
	}
	return p, nil
}

func (self *Profile) Load(data map[string]interface{}) error {
	v, found := data["profile_version"]
	if !found {
		return errors.New("missing 'profile_version'")
	}
	if i, ok := v.(int); !ok {
		return errors.New("invalid 'profile_version' value")
	} else if i != profileVersion {
		return errors.Errorf("invalid profile version [%d != %d]", i, profileVersion)
	}
	if err := cf.Load(data, self); err != nil {
		return err
	}
	return self.Validate()
}

func (self *Profile) Validate() error {
	if err := validator.New().Struct(self); err != nil {
		return errors.Wrap(err, "invalid profile")
	}
	return nil
}

// FenceTimeout bounds whole-pool fence waits. Zero waits without bound.
//
func (self *Profile) FenceTimeout() time.Duration {
	return time.Duration(self.FenceTimeoutMs) * time.Millisecond
}

func (self *Profile) Dump() string {
	return cf.Dump("profile", self)
}

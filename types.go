package geoarena

import "github.com/openziti/geoarena/device"

type UsageHint int

const (
	WriteOnce UsageHint = iota
	WriteEveryFewFrames
	WriteEveryFrame
)

func (self UsageHint) String() string {
	switch self {
	case WriteOnce:
		return "write_once"
	case WriteEveryFewFrames:
		return "write_every_few_frames"
	case WriteEveryFrame:
		return "write_every_frame"
	default:
		return "unknown"
	}
}

// Kind selects what the device will use a pool's storage for.
//
type Kind = device.BufferKind

const (
	VertexData = device.VertexBuffer
	IndexData  = device.IndexBuffer
)

type BackingMode int

const (
	DeviceResident BackingMode = iota
	HostEmulated
)

func (self BackingMode) String() string {
	switch self {
	case DeviceResident:
		return "device_resident"
	case HostEmulated:
		return "host_emulated"
	default:
		return "unknown"
	}
}

// Format tags the element representation carried by a Range.
//
type Format int

const (
	FormatBytes Format = iota
	FormatUint16
	FormatUint32
	FormatFloat32
	FormatVec2
	FormatVec3
	FormatVec4
	FormatCustom
)

// Size returns the natural element size of the format, or 0 when the format does not imply one.
//
func (self Format) Size() int {
	switch self {
	case FormatBytes:
		return 1
	case FormatUint16:
		return 2
	case FormatUint32, FormatFloat32:
		return 4
	case FormatVec2:
		return 8
	case FormatVec3:
		return 12
	case FormatVec4:
		return 16
	default:
		return 0
	}
}

func (self Format) String() string {
	switch self {
	case FormatBytes:
		return "bytes"
	case FormatUint16:
		return "uint16"
	case FormatUint32:
		return "uint32"
	case FormatFloat32:
		return "float32"
	case FormatVec2:
		return "vec2"
	case FormatVec3:
		return "vec3"
	case FormatVec4:
		return "vec4"
	default:
		return "custom"
	}
}

// PoolStats is a point-in-time view of a pool's accounting.
//
type PoolStats struct {
	Id         string
	Kind       Kind
	Usage      UsageHint
	Mode       BackingMode
	Capacity   int
	Allocated  int
	Peak       int
	Generation uint64
	Destroyed  bool
}

//go:build !unix

package mmap

import "github.com/openziti/geoarena/device"

func mapRegion(int) ([]byte, error) {
	return nil, device.ErrNotSupported
}

func unmapRegion([]byte) error {
	return device.ErrNotSupported
}

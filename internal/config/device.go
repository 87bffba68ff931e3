package config

import (
	"fmt"
	"strings"
)

const (
	DeviceOto     = "oto"
	DeviceDiscard = "discard"
)

// NormalizeDevice maps a playback device name to its canonical form.
func NormalizeDevice(raw string) (string, error) {
	device := strings.ToLower(strings.TrimSpace(raw))
	if device == "" {
		device = DeviceOto
	}
	switch device {
	case DeviceOto, DeviceDiscard:
		return device, nil
	case "system", "default":
		return DeviceOto, nil
	case "null", "none":
		return DeviceDiscard, nil
	default:
		return "", fmt.Errorf(
			"invalid playback device %q (expected %s|%s)",
			raw,
			DeviceOto,
			DeviceDiscard,
		)
	}
}

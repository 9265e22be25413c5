// device.go - Geraete-Auswahl (CPU / Beschleuniger)
// Dieses Modul enthaelt die Device-Typen, das Parsen von Geraetenamen und die
// Auswahl-Logik. Die Tensor-Operationen dieses Pakets laufen immer auf der CPU.
package ml

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Device names a compute device.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// ErrInvalidDevice is returned for unknown device names.
var ErrInvalidDevice = errors.New("ml: invalid device")

// ParseDevice accepts "cpu", "cuda" and "cuda:N" (the index is ignored).
func ParseDevice(s string) (Device, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "" || s == string(DeviceCPU):
		return DeviceCPU, nil
	case s == string(DeviceCUDA) || strings.HasPrefix(s, "cuda:"):
		return DeviceCUDA, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDevice, s)
	}
}

// SelectDevice resolves the device a run reports. Every tensor operation in
// this package runs on the CPU, so a requested accelerator is logged and
// replaced by the CPU.
func SelectDevice(preferred Device, forceCPU bool) Device {
	if forceCPU || preferred == DeviceCPU || preferred == "" {
		return DeviceCPU
	}

	slog.Warn("no accelerator backend compiled in, falling back to cpu", "device", preferred)
	return DeviceCPU
}

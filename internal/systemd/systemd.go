// Package systemd reads unit states from the systemd manager over D-Bus.
package systemd

import (
	"errors"
	"os"
	"strings"
)

var ErrUnsupported = errors.New("systemd: unsupported OS (linux only)")

const defaultSystemBus = "/var/run/dbus/system_bus_socket"

// BusAddress is the system bus address the connection will use, for error
// messages.
func BusAddress() string {
	if v := strings.TrimSpace(os.Getenv("DBUS_SYSTEM_BUS_ADDRESS")); v != "" {
		return v
	}
	return defaultSystemBus
}

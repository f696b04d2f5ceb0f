package modem

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// ErrNoPort is returned when discovery finds no usable serial port.
var ErrNoPort = errors.New("no serial port found")

// Discover picks the modem port. An explicit port wins; otherwise the first
// USB port whose product string contains modemName (or whose "vid:pid"
// equals it), falling back to the first port that is not excluded.
func Discover(explicit, modemName string, exclude []string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("%w: list serial ports: %v", ErrTransport, err)
	}
	return pickPort(ports, modemName, exclude)
}

func pickPort(ports []*enumerator.PortDetails, modemName string, exclude []string) (string, error) {
	var fallback string
	want := strings.ToLower(modemName)

	for _, p := range ports {
		if p == nil || isExcluded(p.Name, exclude) {
			continue
		}
		if want != "" && p.IsUSB {
			id := strings.ToLower(p.VID + ":" + p.PID)
			if strings.Contains(strings.ToLower(p.Product), want) || id == want {
				return p.Name, nil
			}
		}
		if fallback == "" {
			fallback = p.Name
		}
	}

	if fallback == "" {
		return "", ErrNoPort
	}
	return fallback, nil
}

func isExcluded(port string, exclude []string) bool {
	for _, excluded := range exclude {
		if port == excluded {
			return true
		}
	}

	return false
}

package processes

import (
	"fmt"
	"net"
	"strconv"
)

const (
	DefaultMinPort = 3001
	DefaultMaxPort = 3010

	loopbackHost = "127.0.0.1"
)

// PortManager finds a free loopback TCP port for the backend within a fixed
// inclusive range.
//
// A port reported as available may be taken by another process between the
// check and the backend binding it. The backend is started by this process
// moments after the check, so the race is accepted rather than guarded.
type PortManager struct {
	minPort int
	maxPort int
}

// NewPortManager creates a new PortManager instance.
// It requires a minimum and maximum port to define the range for allocation.
func NewPortManager(minPort, maxPort int) (*PortManager, error) {
	if minPort <= 0 || maxPort <= 0 || minPort > maxPort || maxPort > 65535 {
		return nil, fmt.Errorf("invalid port range: min %d, max %d", minPort, maxPort)
	}
	return &PortManager{
		minPort: minPort,
		maxPort: maxPort,
	}, nil
}

// Range returns the inclusive port range managed by pm.
func (pm *PortManager) Range() (int, int) {
	return pm.minPort, pm.maxPort
}

// Contains reports whether port lies within the managed range.
func (pm *PortManager) Contains(port int) bool {
	return port >= pm.minPort && port <= pm.maxPort
}

// IsAvailable reports whether a loopback listener can be bound on port right now.
// The test listener is closed before returning.
func (pm *PortManager) IsAvailable(port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort(loopbackHost, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	l.Close()
	return true
}

// FindAvailablePort scans the range in ascending order and returns the first
// bindable port.
func (pm *PortManager) FindAvailablePort() (int, error) {
	for port := pm.minPort; port <= pm.maxPort; port++ {
		if pm.IsAvailable(port) {
			return port, nil
		}
	}
	return 0, newLaunchError(ErrNoPortAvailable,
		fmt.Sprintf("No available port in range %d-%d", pm.minPort, pm.maxPort), nil)
}

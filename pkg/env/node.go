// Package env provides information about the host a node runs on.
package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

const appID = "rs485"

// MachineID retrieves the unique ID identifying the machine.
func MachineID() (string, error) {
	return machineid.ProtectedID(appID)
}

// NodeID returns the default node name: the application specific machine
// id, or the host name if the machine id is unavailable.
func NodeID() string {
	id, err := MachineID()
	if err == nil && id != "" {
		return id[:16]
	}
	glog.Warningf("machine id unavailable: %v", err)
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "rs485"
}

// Hostname returns the host name or an empty string.
func Hostname() string {
	host, _ := os.Hostname()
	return host
}

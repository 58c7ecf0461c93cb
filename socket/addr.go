// License: Apache-2.0

package socket

import (
	"net"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/momentics/tpcengine/api"
)

// parseHostPort resolves "host:port" to a unix.Sockaddr, IPv4 only: the
// engine's end-to-end scenarios (spec §8) are all loopback IPv4.
func parseHostPort(addr string) (unix.Sockaddr, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, api.NewError(api.ErrKindIO, "invalid address "+addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, api.NewError(api.ErrKindIO, "invalid port in "+addr, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil, api.NewError(api.ErrKindIO, "cannot resolve host "+host, err)
		}
		ip = ips[0]
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, api.NewError(api.ErrKindIO, "only IPv4 addresses are supported: "+addr, nil)
	}
	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip4)
	return sa, nil
}

// addrString implements api.Address over a plain "host:port" string, used
// by tests and by simple single-process PartitionDirectory stand-ins.
type addrString string

func (a addrString) String() string { return string(a) }
func (a addrString) Equal(other api.Address) bool {
	o, ok := other.(addrString)
	return ok && a == o
}

// Address wraps a "host:port" string as an api.Address.
func Address(hostPort string) api.Address { return addrString(hostPort) }

package sink

import (
	"net"

	"golang.org/x/net/proxy"

	"github.com/go-git/gopack/pack/perr"
)

// ProxyDialer opens TCP connections through a SOCKS5 proxy, for use as
// SSHDialOptions.Dialer when the network a sink writes to isn't
// reachable directly.
type ProxyDialer struct {
	dialer proxy.Dialer
}

// NewProxyDialer builds a dialer that routes connections through the
// SOCKS5 proxy at addr. auth is optional.
func NewProxyDialer(addr string, auth *proxy.Auth) (*ProxyDialer, error) {
	d, err := proxy.SOCKS5("tcp", addr, auth, proxy.Direct)
	if err != nil {
		return nil, perr.Wrap(perr.SinkFailure, err).AddDetails("building socks5 dialer for %s", addr)
	}
	return &ProxyDialer{dialer: d}, nil
}

// Dial matches the func(network, addr string) (net.Conn, error) shape
// SSHDialOptions.Dialer expects.
func (p *ProxyDialer) Dial(network, addr string) (net.Conn, error) {
	conn, err := p.dialer.Dial(network, addr)
	if err != nil {
		return nil, perr.Wrap(perr.SinkFailure, err).AddDetails("dialing %s via proxy", addr)
	}
	return conn, nil
}

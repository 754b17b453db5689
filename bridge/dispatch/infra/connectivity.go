package infra

import (
	"context"
	"net"
	"time"
)

// InterfaceProbe considera o processo conectado se existe ao menos uma interface
// ativa, que não seja loopback, com endereço atribuído.
type InterfaceProbe struct{}

func (InterfaceProbe) IsConnected() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}

// DialProbe tenta abrir uma conexão TCP com Address (ex: "1.1.1.1:53").
type DialProbe struct {
	Address string
	Timeout time.Duration
}

func (p DialProbe) IsConnected() bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

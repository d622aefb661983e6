package probes

import (
	"net"
	"strconv"
	"time"
)

// TCPProber succeeds when the port accepts a connection. The node manager
// uses it to watch the heartbeat port of decommissioned instances.
type TCPProber struct{}

func (p *TCPProber) Execute(ctx *ProbeContext) ProbeResult {
	start := time.Now()
	addr := net.JoinHostPort(ctx.host(), strconv.Itoa(ctx.Port))

	d := net.Dialer{Timeout: ctx.timeout()}
	conn, err := d.DialContext(ctx.Ctx, "tcp", addr)
	if err != nil {
		return failed(start, "%s not reachable: %v", addr, err)
	}
	_ = conn.Close()
	return succeeded(start, "%s accepted a connection", addr)
}

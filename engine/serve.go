package engine

import (
	"context"
	"errors"
	"net"
	"time"
)

// readBufferSize is large enough for the largest UDP datagram a conforming
// SNMP implementation will send (RFC 3417 §2's 65507-byte practical cap).
const readBufferSize = 65507

// Serve reads datagrams from conn and answers each with Process until ctx
// is cancelled or conn returns a non-timeout error. It mirrors the
// teacher's single-goroutine service loop shape rather than a per-request
// worker pool: SNMP datagrams carry no connection state to hand off, so
// there is nothing a worker pool would parallelize beyond what concurrent
// Process calls would already need to guard with a mutex (see the Engine
// doc comment on why Process itself stays single-threaded by design).
func (e *Engine) Serve(ctx context.Context, conn net.PacketConn) error {
	buf := make([]byte, readBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return err
		}

		req := make([]byte, n)
		copy(req, buf[:n])
		resp, ok := e.Process(req)
		if !ok {
			continue
		}
		if _, err := conn.WriteTo(resp, addr); err != nil {
			e.logger.Warn("engine: failed writing response", "peer", addr, "error", err)
		}
	}
}

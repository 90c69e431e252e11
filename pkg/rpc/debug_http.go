package rpc

import (
	"context"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/anna-project/annad/pkg/version"
)

// DebugServer is the loopback HTTP side-channel named in SPEC_FULL.md
// §4.11: an operator-curlable /healthz and /metricz, reusing echo/v5 the
// way the teacher's pkg/api/server.go wires it, alongside the primary
// Unix-socket NDJSON transport.
type DebugServer struct {
	echo       *echo.Echo
	httpServer *http.Server
	rpc        *Server
}

// NewDebugServer builds the companion HTTP server. rpc supplies the health
// snapshot /healthz reports.
func NewDebugServer(rpc *Server) *DebugServer {
	e := echo.New()
	e.Use(middleware.Recover())

	d := &DebugServer{echo: e, rpc: rpc}
	e.GET("/healthz", d.healthzHandler)
	e.GET("/metricz", d.metriczHandler)
	return d
}

// StartWithListener serves on a pre-created listener (non-blocking caller
// responsibility: invoke in its own goroutine).
func (d *DebugServer) StartWithListener(ln net.Listener) error {
	d.httpServer = &http.Server{Handler: d.echo}
	return d.httpServer.Serve(ln)
}

// Shutdown gracefully stops the HTTP server.
func (d *DebugServer) Shutdown(ctx context.Context) error {
	if d.httpServer == nil {
		return nil
	}
	return d.httpServer.Shutdown(ctx)
}

func (d *DebugServer) healthzHandler(c *echo.Context) error {
	result, _ := handleHealth(d.rpc, c.Request().Context(), nil)
	return c.JSON(http.StatusOK, result)
}

// metriczHandler reports a small set of daemon counters in a curl-friendly
// JSON object; no Prometheus exposition format, since nothing in
// SPEC_FULL.md consumes a scrape target for it.
func (d *DebugServer) metriczHandler(c *echo.Context) error {
	metrics := map[string]any{
		"version": version.Full(),
	}
	if d.rpc.facts != nil {
		metrics["learned_facts"] = len(d.rpc.facts.Snapshot())
	}
	if d.rpc.telemetry != nil {
		if snap, ok := d.rpc.telemetry.GetLatestSnapshot(); ok {
			metrics["last_snapshot_ts"] = snap.TS
		}
	}
	return c.JSON(http.StatusOK, metrics)
}

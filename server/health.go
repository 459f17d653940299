package server

import (
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/process"
)

// healthz reports liveness plus the process's own resource usage, the same
// numbers an operator would otherwise dig out of the host.
func (s *Server) healthz(c echo.Context) error {
	report := echo.Map{"status": "ok"}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if cpu, err := p.CPUPercent(); err == nil {
			report["cpu_percent"] = cpu
		}
		if mem, err := p.MemoryInfo(); err == nil {
			report["rss_bytes"] = mem.RSS
		}
	}
	return c.JSON(http.StatusOK, report)
}

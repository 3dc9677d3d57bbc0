// Package health reports gateway readiness and the live rule summary.
package health

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/droidagent/slack-gateway-go/internal/rules"
)

const (
	StatusReady    = "ready"
	StatusDegraded = "degraded"
)

// Checker answers the health endpoint from live state. Degraded means
// the process is up but routing cannot do useful work.
type Checker struct {
	store      *rules.Store
	scriptsDir string
	promptsDir string
	startedAt  time.Time
}

func New(store *rules.Store, scriptsDir, promptsDir string) *Checker {
	return &Checker{
		store:      store,
		scriptsDir: scriptsDir,
		promptsDir: promptsDir,
		startedAt:  time.Now(),
	}
}

// Handle is the Gin handler for the health endpoint.
func (c *Checker) Handle(gc *gin.Context) {
	summary := c.store.Current().Summarize()
	scriptsOK := dirExists(c.scriptsDir)

	status := StatusReady
	code := http.StatusOK
	reason := ""
	switch {
	case !scriptsOK:
		status = StatusDegraded
		code = http.StatusServiceUnavailable
		reason = "scripts directory missing"
	case summary.Enabled == 0:
		status = StatusDegraded
		code = http.StatusServiceUnavailable
		reason = "no enabled rules"
	}

	payload := gin.H{
		"status":         status,
		"uptime_seconds": int64(time.Since(c.startedAt).Seconds()),
		"rules": gin.H{
			"total":    summary.Total,
			"enabled":  summary.Enabled,
			"disabled": summary.Disabled,
		},
		"handlers": gin.H{
			"scripts_dir": scriptsOK,
			"prompts_dir": dirExists(c.promptsDir),
		},
	}
	if reason != "" {
		payload["reason"] = reason
	}
	gc.JSON(code, payload)
}

func dirExists(dir string) bool {
	if dir == "" {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

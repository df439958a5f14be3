package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/tgifai/cronturn/internal/config"
	"github.com/tgifai/cronturn/internal/pkg/logs"
)

// promptFiles are read from the agent workspace, in order, when present.
var promptFiles = []string{"AGENTS.md", "SOUL.md", "TOOLS.md"}

func (e *Executor) buildSystemPrompt(agCfg config.AgentConfig, req TurnRequest) string {
	var prompt strings.Builder
	prompt.Grow(1 << 11)
	prompt.WriteString(e.buildRuntimeInformation(agCfg, req))

	if text := strings.TrimSpace(agCfg.SystemPrompt); text != "" {
		prompt.WriteString("\n\n")
		prompt.WriteString(text)
	}

	if agCfg.Workspace != "" {
		for _, name := range promptFiles {
			content, err := os.ReadFile(filepath.Join(agCfg.Workspace, name))
			if err != nil {
				if !os.IsNotExist(err) {
					logs.Warn("[agent:%s] failed to read prompt file %s: %v", agCfg.ID, name, err)
				}
				continue
			}
			if text := strings.TrimSpace(string(content)); text != "" {
				prompt.WriteString("\n\n")
				prompt.WriteString(text)
			}
		}
	}
	return prompt.String()
}

func (e *Executor) buildRuntimeInformation(agCfg config.AgentConfig, req TurnRequest) string {
	formatValue := func(value string) string {
		if strings.TrimSpace(value) == "" {
			return "N/A"
		}
		return value
	}

	return fmt.Sprintf(
		"# Runtime Information\n- goos: %s\n- goarch: %s\n- agent: %s\n- session key: %s\n- channel: %s\n- deliver to: %s\n- started at: %s",
		runtime.GOOS, runtime.GOARCH,
		formatValue(agCfg.ID),
		formatValue(req.SessionKey),
		formatValue(req.Channel),
		formatValue(req.To),
		e.now().Format(time.RFC3339),
	)
}

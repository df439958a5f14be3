package consts

import (
	"os"
	"path/filepath"
)

const (
	HomeDirName     = ".cronturn"
	ConfigFileName  = "config.yaml"
	DefaultAgentID  = "main"
	AgentsDirName   = "agents"
	SessionsDirName = "sessions"
)

func HomeDir() string {
	if dir := os.Getenv("CRONTURN_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, HomeDirName)
}

func DefaultConfigPath() string {
	return filepath.Join(HomeDir(), ConfigFileName)
}

// AgentDir is the per-agent state root holding sessions and transcripts.
func AgentDir(agentID string) string {
	if agentID == "" {
		agentID = DefaultAgentID
	}
	return filepath.Join(HomeDir(), AgentsDirName, agentID)
}

func SessionStorePath(agentID string) string {
	return filepath.Join(AgentDir(agentID), SessionsDirName, "sessions.json")
}

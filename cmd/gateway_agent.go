package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/oxicrab/oxicrab/internal/agent"
	"github.com/oxicrab/oxicrab/internal/bootstrap"
	"github.com/oxicrab/oxicrab/internal/bus"
	"github.com/oxicrab/oxicrab/internal/config"
	"github.com/oxicrab/oxicrab/internal/costguard"
	"github.com/oxicrab/oxicrab/internal/providers"
	"github.com/oxicrab/oxicrab/internal/sandbox"
	"github.com/oxicrab/oxicrab/internal/skills"
	"github.com/oxicrab/oxicrab/internal/store"
	"github.com/oxicrab/oxicrab/internal/tools"
)

// createAgentLoop builds one standalone-mode agent (config.json-defined, as
// opposed to managed mode's DB-backed resolver) and registers it into router
// under agentID.
func createAgentLoop(
	agentID string,
	cfg *config.Config,
	router *agent.Router,
	providerRegistry *providers.Registry,
	msgBus *bus.MessageBus,
	sessStore store.SessionStore,
	toolsReg *tools.Registry,
	toolPE *tools.PolicyEngine,
	contextFiles []bootstrap.ContextFile,
	skillsLoader *skills.Loader,
	hasMemory bool,
	sandboxMgr sandbox.Manager,
	fileAgentStore store.AgentStore,
	ensureUserFiles agent.EnsureUserFilesFunc,
	contextFileLoader agent.ContextFileLoaderFunc,
	costGuard *costguard.Guard,
) error {
	agentCfg := cfg.ResolveAgent(agentID)

	workspace := config.ExpandHome(agentCfg.Workspace)
	if !filepath.IsAbs(workspace) {
		abs, err := filepath.Abs(workspace)
		if err != nil {
			return fmt.Errorf("agent %s: resolve workspace: %w", agentID, err)
		}
		workspace = abs
	}
	if err := os.MkdirAll(workspace, 0755); err != nil {
		return fmt.Errorf("agent %s: create workspace: %w", agentID, err)
	}

	provider, err := providerRegistry.Get(agentCfg.Provider)
	if err != nil {
		names := providerRegistry.List()
		if len(names) == 0 {
			return fmt.Errorf("agent %s: no providers configured", agentID)
		}
		provider, _ = providerRegistry.Get(names[0])
		slog.Warn("configured provider not found, using fallback", "agent", agentID, "wanted", agentCfg.Provider, "using", names[0])
	}

	var skillAllowList []string
	if spec, ok := cfg.Agents.List[agentID]; ok {
		skillAllowList = spec.Skills
	}

	sandboxEnabled := sandboxMgr != nil
	sandboxContainerDir := ""
	sandboxWorkspaceAccess := ""
	if sandboxEnabled {
		if sbCfg := agentCfg.Sandbox; sbCfg != nil {
			resolved := sbCfg.ToSandboxConfig()
			sandboxContainerDir = resolved.ContainerWorkdir()
			sandboxWorkspaceAccess = string(resolved.WorkspaceAccess)
		}
	}

	loop := agent.NewLoop(agent.LoopConfig{
		ID:                     agentID,
		Provider:               provider,
		Model:                  agentCfg.Model,
		ContextWindow:          agentCfg.ContextWindow,
		MaxIterations:          agentCfg.MaxToolIterations,
		Workspace:              workspace,
		Bus:                    msgBus,
		Sessions:               sessStore,
		Tools:                  toolsReg,
		ToolPolicy:             toolPE,
		OwnerIDs:               cfg.Gateway.OwnerIDs,
		SkillsLoader:           skillsLoader,
		SkillAllowList:         skillAllowList,
		HasMemory:              hasMemory,
		ContextFiles:           contextFiles,
		EnsureUserFiles:        ensureUserFiles,
		ContextFileLoader:      contextFileLoader,
		CompactionCfg:          agentCfg.Compaction,
		ContextPruningCfg:      agentCfg.ContextPruning,
		SandboxEnabled:         sandboxEnabled,
		SandboxContainerDir:    sandboxContainerDir,
		SandboxWorkspaceAccess: sandboxWorkspaceAccess,
		InjectionAction:        cfg.Gateway.InjectionAction,
		CostGuard:              costGuard,
	})

	router.Register(agentID, loop)
	_ = fileAgentStore // reserved: standalone per-user file seeding reads through ensureUserFiles/contextFileLoader instead
	return nil
}

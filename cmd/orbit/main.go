package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/t0mczak/orbit/agent"
	"github.com/t0mczak/orbit/config"
	"github.com/t0mczak/orbit/llm"
	"github.com/t0mczak/orbit/session"
	"github.com/t0mczak/orbit/tools"
	"github.com/t0mczak/orbit/tools/mcp"
)

func main() {
	os.Exit(run())
}

func run() int {
	modelFlag := flag.String("model", "", "Model name (overrides config)")
	providerFlag := flag.String("provider", "", "LLM provider: 'openai', 'anthropic' or 'mock' (overrides config)")
	traceFlag := flag.String("trace", "", "Enable per-turn trace logging: 'true' or 'false'")
	streamFlag := flag.String("stream", "", "Stream model output: 'true' or 'false'")
	thinkingFlag := flag.String("thinking", "", "Thinking mode: 'auto', 'on' or 'off'")
	effortFlag := flag.String("reasoning-effort", "", "Reasoning effort: 'none', 'low', 'medium' or 'high'")
	previewFlag := flag.Int("reasoning-preview-chars", 0, "Reasoning preview length in trace output")
	saveSessionFlag := flag.String("save-session", "", "Persist the session as JSONL: 'true' or 'false'")
	sessionDirFlag := flag.String("session-dir", "", "Directory for session files")
	capabilityFlag := flag.String("thinking-capability", "", "Model thinking capability: 'auto', 'toggle', 'always' or 'never'")
	paramStyleFlag := flag.String("thinking-param-style", "", "Thinking parameter style: 'auto', 'enable_thinking', 'reasoning_effort' or 'both'")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %+v\n", err)
		return 1
	}
	if *providerFlag != "" {
		cfg.Provider = *providerFlag
	}
	if *modelFlag != "" {
		cfg.Model = *modelFlag
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("ORBIT_MODEL")
	}

	opts := config.ResolveRuntimeOptions(config.RuntimeFlags{
		Trace:                 *traceFlag,
		Stream:                *streamFlag,
		ThinkingMode:          *thinkingFlag,
		ReasoningEffort:       *effortFlag,
		ReasoningPreviewChars: *previewFlag,
		SaveSession:           *saveSessionFlag,
		SessionDir:            *sessionDirFlag,
		ThinkingCapability:    *capabilityFlag,
		ThinkingParamStyle:    *paramStyleFlag,
	})

	var client llm.Client
	switch cfg.Provider {
	case "openai":
		client, err = llm.NewOpenAIClient()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing OpenAI client: %+v\n", err)
			return 1
		}
	case "anthropic":
		client, err = llm.NewAnthropicClient()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing Anthropic client: %+v\n", err)
			return 1
		}
	case "mock":
		client = &llm.MockClient{}
	default:
		fmt.Fprintf(os.Stderr, "Invalid provider '%s'. Must be 'openai', 'anthropic' or 'mock'.\n", cfg.Provider)
		return 1
	}

	workspace, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving working directory: %+v\n", err)
		return 1
	}

	store, err := session.NewStore(opts.SaveSession, cfg.Model, opts.SessionDir, opts.AsMap())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating session store: %+v\n", err)
		return 1
	}
	tracer := session.NewTraceLogger(opts.Trace, opts.ReasoningPreviewChars, log)

	ctx := context.Background()

	skills := tools.NewSkillLoader(cfg.SkillsDir)
	registry := tools.NewRegistry()
	registry.Register(&tools.BashTool{Workspace: workspace, AllowedCommands: cfg.AllowedCommands})
	registry.Register(&tools.ReadFileTool{Workspace: workspace, FSAccess: &cfg.FilesystemAccess})
	registry.Register(&tools.WriteFileTool{Workspace: workspace, FSAccess: &cfg.FilesystemAccess})
	registry.Register(&tools.EditFileTool{Workspace: workspace, FSAccess: &cfg.FilesystemAccess})
	todos := tools.NewTodoManager()
	registry.Register(&tools.TodoTool{Manager: todos})
	registry.Register(&tools.SkillTool{Loader: skills})

	var mcpClients []*mcp.Client
	for _, server := range cfg.MCPServers {
		mcpClient, err := mcp.NewClient(log, server.Name, server.Command, server.Args)
		if err != nil {
			log.Warn().Err(err).Str("server", server.Name).Msg("skipping mcp server")
			continue
		}
		mcpClients = append(mcpClients, mcpClient)
		for _, tool := range mcpClient.Tools() {
			registry.Register(tool)
		}
	}
	defer func() {
		for _, c := range mcpClients {
			_ = c.Stop()
		}
	}()

	policy := llm.ResolvePolicy(ctx, client, cfg.Model, opts.ThinkingCapability, opts.ThinkingParamStyle)

	contextManager := agent.NewContextManager(
		workspace, cfg.TranscriptsDir,
		cfg.ContextWindow, cfg.MaxOutputTokens,
		client, cfg.Model, log,
	)

	orbitAgent := &agent.Agent{
		Client:       client,
		Model:        cfg.Model,
		Options:      opts,
		Workspace:    workspace,
		SystemPrompt: agent.BuildSystemPrompt(workspace, skills),
		Tools:        registry,
		Todos:        todos,
		Context:      contextManager,
		Policy:       policy,
		Tracer:       tracer,
		Store:        store,
		Log:          log,
	}
	orbitAgent.Tools.Register(&agent.TaskTool{Agent: orbitAgent})

	prompt := strings.Join(flag.Args(), " ")
	if prompt != "" {
		result, err := orbitAgent.Run(ctx, prompt)
		if err != nil {
			log.Error().Err(err).Msg("agent run failed")
			return 1
		}
		if !opts.Stream {
			fmt.Println(result)
		}
	} else {
		if err := runInteractive(ctx, orbitAgent, opts.Stream, log); err != nil {
			log.Error().Err(err).Msg("agent run failed")
			return 1
		}
	}

	if store.Path() != "" {
		log.Info().Str("path", store.Path()).Msg("session saved")
	}
	return 0
}

func runInteractive(ctx context.Context, a *agent.Agent, stream bool, log zerolog.Logger) error {
	log.Info().Msg("interactive mode: type 'exit' or 'quit' to end the conversation")

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("\033[94mUser:\033[0m ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return nil
		}
		prompt := strings.TrimSpace(line)
		if prompt == "" {
			continue
		}
		if prompt == "exit" || prompt == "quit" {
			log.Info().Msg("conversation ended")
			return nil
		}

		result, err := a.Run(ctx, prompt)
		if err != nil {
			return err
		}
		if !stream {
			fmt.Printf("\033[92mAssistant:\033[0m %s\n", result)
		}
	}
}

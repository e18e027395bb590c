// Package app provides the entry point for the aggmcp command-line application.
package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fussraider/tool-search-tools-mcp/pkg/facade"
	"github.com/fussraider/tool-search-tools-mcp/pkg/logger"
	"github.com/fussraider/tool-search-tools-mcp/pkg/mcpconfig"
	"github.com/fussraider/tool-search-tools-mcp/pkg/skills"
)

// version is overwritten at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:               "aggmcp",
	DisableAutoGenTag: true,
	Short:             "Aggregating MCP proxy - expose many upstream MCP servers behind search_tools/call_tool",
	Long: `aggmcp connects as a client to a configured set of upstream MCP servers, each
launched as a child process speaking newline-delimited JSON-RPC over its
standard streams, enumerates their tools, and re-exposes the aggregate
catalogue behind exactly two tools of its own: search_tools (a
relevance-ranked lookup) and call_tool (a proxy invocation).

Upstream servers are declared in mcp-config.json; optional composite
"skills" macros are declared in skills.yaml.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if viper.GetBool("debug") {
			_ = os.Setenv("LOG_LEVEL", "DEBUG")
		}
		logger.Initialize()
	},
}

// NewRootCmd creates a new root command for the aggmcp CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.PersistentFlags().StringP("install-root", "r", ".", "Directory mcp-config.json/skills.yaml are resolved relative to, absent MCP_CONFIG_PATH/MCP_SKILLS_PATH overrides")
	if err := viper.BindPFlag("install-root", rootCmd.PersistentFlags().Lookup("install-root")); err != nil {
		logger.Errorf("Error binding install-root flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.SilenceUsage = true
	return rootCmd
}

// newServeCmd creates the serve command that runs the proxy against stdio.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to every configured upstream and serve search_tools/call_tool over stdio",
		Long: `serve loads mcp-config.json, connects every configured upstream server
concurrently (a single broken upstream never prevents the others from
serving), loads skills.yaml if present, and binds the resulting facade to
the standard MCP stdio transport. It blocks until the client disconnects
or the process receives a termination signal.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	installRoot := viper.GetString("install-root")

	f, err := facade.Bootstrap(ctx, installRoot)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	logger.Infof("aggmcp %s serving search_tools/call_tool over stdio", version)
	return f.Serve()
}

// newValidateCmd creates the validate command for checking the on-disk
// mcp-config.json and skills.yaml without connecting to any upstream.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate mcp-config.json and skills.yaml without starting the proxy",
		Long: `validate parses the upstream server manifest and, if present, the skills
file, reporting structural errors without spawning any child process. A
missing mcp-config.json is reported as zero upstreams, not an error; a
missing skills.yaml is reported as "no skills", not an error. A malformed
file of either kind is a hard failure.`,
		RunE: runValidate,
	}
}

func runValidate(_ *cobra.Command, _ []string) error {
	installRoot := viper.GetString("install-root")

	cfg, err := mcpconfig.Load(installRoot)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	logger.Infof("mcp-config.json is valid: %d upstream server(s) configured", len(cfg.Servers))
	for name, s := range cfg.Servers {
		logger.Infof("  - %s: %s %v", name, s.Command, s.Args)
	}
	logger.Infof("search mode: %s", cfg.SearchMode)

	defs, err := skills.Load(cfg.SkillsPath)
	switch {
	case err == nil:
		logger.Infof("skills.yaml is valid: %d skill(s) defined", len(defs))
		for _, d := range defs {
			logger.Infof("  - %s (%d step(s))", d.Name, len(d.Steps))
		}
	case os.IsNotExist(err):
		logger.Infof("no skills file found at %s, continuing without skills", cfg.SkillsPath)
	default:
		return fmt.Errorf("skills file invalid: %w", err)
	}

	return nil
}

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			logger.Infof("aggmcp version: %s", version)
		},
	}
}

// Package servecmder provides the serve command that runs the mnemo API and
// MCP server.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/api"
	"github.com/papercomputeco/mnemo/api/mcp"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/stack"
)

type serveCommander struct {
	listen         string
	backend        string
	sqlitePath     string
	postgresDSN    string
	vectorEnabled  bool
	vectorProvider string
	vectorHost     string
	vectorPath     string
	embeddingProv  string
	embeddingTgt   string
	embeddingModel string
	embeddingDims  uint
	auditProvider  string
	auditBrokers   string
	maxEntries     uint
	injectMaxChars uint

	jsonLogs bool
	logFile  string
	debug    bool

	cfg    *config.Config
	cfger  *config.Configer
	logger *slog.Logger
}

// serveFlags are bound to the viper precedence chain.
var serveFlags = []string{
	config.FlagListen,
	config.FlagBackend,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagVectorEnabled,
	config.FlagVectorProvider,
	config.FlagVectorHost,
	config.FlagVectorPath,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagAuditProvider,
	config.FlagAuditBrokers,
	config.FlagMaxEntries,
	config.FlagInjectorMaxChar,
}

const serveLongDesc string = `Run the mnemo server.

Serves the memory tool contract, search, prompt injection, session recording
and pruning over HTTP under /v1, and the same tools over MCP at /mcp.

Flags override MNEMO_* environment variables, which override config.toml in
the .mnemo/ directory.

Examples:
  mnemo serve
  mnemo serve --backend postgres --postgres-dsn postgres://localhost/mnemo
  mnemo serve --vector --vector-provider qdrant --vector-host localhost
  mnemo serve --audit-provider kafka --audit-brokers kafka-1:9092,kafka-2:9092
  mnemo serve --log-file .mnemo/serve.log`

const serveShortDesc string = "Run the mnemo API and MCP server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, cmder.cfger, err = config.Load(cmd, serveFlags)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx)
		},
	}

	fs := config.Flags
	config.AddStringFlag(cmd, fs, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, fs, config.FlagBackend, &cmder.backend)
	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddBoolFlag(cmd, fs, config.FlagVectorEnabled, &cmder.vectorEnabled)
	config.AddStringFlag(cmd, fs, config.FlagVectorProvider, &cmder.vectorProvider)
	config.AddStringFlag(cmd, fs, config.FlagVectorHost, &cmder.vectorHost)
	config.AddStringFlag(cmd, fs, config.FlagVectorPath, &cmder.vectorPath)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, &cmder.embeddingProv)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, &cmder.embeddingTgt)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, fs, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, fs, config.FlagAuditProvider, &cmder.auditProvider)
	config.AddStringFlag(cmd, fs, config.FlagAuditBrokers, &cmder.auditBrokers)
	config.AddUintFlag(cmd, fs, config.FlagMaxEntries, &cmder.maxEntries)
	config.AddUintFlag(cmd, fs, config.FlagInjectorMaxChar, &cmder.injectMaxChars)
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Write logs as JSON")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(c.jsonLogs),
		logger.WithPretty(!c.jsonLogs && cliui.IsTerminal()),
	)

	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()

		c.logger = logger.Multi(c.logger, logger.New(
			logger.WithDebug(c.debug),
			logger.WithJSON(true),
			logger.WithWriter(f),
		))
	}

	st, err := stack.New(ctx, stack.Options{
		Config:      c.cfg,
		ResolvePath: c.cfger.ResolvePath,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			c.logger.Error("closing memory stack", "error", err)
		}
	}()

	mcpServer, err := mcp.NewServer(mcp.Config{
		Tool:      st.Tool,
		Retrieval: st.Retrieval,
		Injector:  st.Injector,
		Recorder:  st.Recorder,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	server, err := api.NewServer(api.Config{
		ListenAddr: c.cfg.API.Listen,
		Tool:       st.Tool,
		Retrieval:  st.Retrieval,
		Injector:   st.Injector,
		Recorder:   st.Recorder,
		Pruner:     st.Pruner,
		Metrics:    st.Metrics,
		MCP:        mcpServer.Handler(),
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		return server.Shutdown()
	}
}

// Package sessioncmder provides the session command, which records agent
// session logs straight into the configured memory store.
package sessioncmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/permission"
	"github.com/papercomputeco/mnemo/pkg/session"
	"github.com/papercomputeco/mnemo/pkg/stack"
)

func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Record agent session logs",
	}

	cmd.AddCommand(newFollowCmd())

	return cmd
}

type followCommander struct {
	backend     string
	sqlitePath  string
	postgresDSN string

	agentID   string
	teamID    string
	role      string
	systemID  int
	scope     string
	namespace string
	fromStart bool
	debug     bool
}

var followFlags = []string{
	config.FlagBackend,
	config.FlagSQLite,
	config.FlagPostgresDSN,
}

const followLongDesc string = `Follow a log file and record every batch of complete lines appended to it
as session memory, the way "mnemo memory record" does over HTTP.

The store is opened directly from the [storage] config, so follow can run
next to an agent without a server. Recording compacts the session buffer
and reflects it into long-term memory on the configured cadence.

Examples:
  mnemo session follow agent.log --agent w1
  mnemo session follow /var/log/agent.log --from-start --agent lead --team ops --role control --scope team --namespace ops`

func newFollowCmd() *cobra.Command {
	cmder := &followCommander{}

	cmd := &cobra.Command{
		Use:   "follow <path>",
		Short: "Record lines appended to a log file",
		Long:  followLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx, cmd, args[0])
		},
	}

	systemID, _ := strconv.Atoi(os.Getenv("MNEMO_SYSTEM_ID"))
	role := os.Getenv("MNEMO_ROLE")
	if role == "" {
		role = string(permission.RoleWorker)
	}

	fs := config.Flags
	config.AddStringFlag(cmd, fs, config.FlagBackend, &cmder.backend)
	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagPostgresDSN, &cmder.postgresDSN)
	cmd.Flags().StringVar(&cmder.agentID, "agent", os.Getenv("MNEMO_AGENT_ID"), "Recording agent id")
	cmd.Flags().StringVar(&cmder.teamID, "team", os.Getenv("MNEMO_TEAM_ID"), "Recording agent's team")
	cmd.Flags().StringVar(&cmder.role, "role", role, "Recording agent's role")
	cmd.Flags().IntVar(&cmder.systemID, "system-id", systemID, "Numeric id of the recording system")
	cmd.Flags().StringVar(&cmder.scope, "scope", "", "Memory scope (agent, team, global)")
	cmd.Flags().StringVar(&cmder.namespace, "namespace", "", "Namespace within the scope")
	cmd.Flags().BoolVar(&cmder.fromStart, "from-start", false, "Record the existing file contents first")

	return cmd
}

func (c *followCommander) run(ctx context.Context, cmd *cobra.Command, path string) error {
	actor := permission.Actor{
		AgentID:  c.agentID,
		TeamID:   c.teamID,
		Role:     permission.ParseRole(c.role),
		SystemID: c.systemID,
	}
	if err := actor.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("log file: %w", err)
	}

	cfg, cfger, err := config.Load(cmd, followFlags)
	if err != nil {
		return err
	}

	log := logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(cliui.IsTerminal()),
		logger.WithWriter(cmd.ErrOrStderr()),
	)

	st, err := stack.New(ctx, stack.Options{
		Config:      cfg,
		ResolvePath: cfger.ResolvePath,
		Logger:      log,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("closing memory stack", "error", err)
		}
	}()

	follower, err := session.NewFollower(session.FollowerConfig{
		Recorder:  st.Recorder,
		Path:      path,
		Actor:     actor,
		Scope:     memory.Scope(c.scope),
		Namespace: c.namespace,
		FromStart: c.fromStart,
		Logger:    log,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "  %s Following %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(path))

	if err := follower.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Package initdb creates the SQL schema.
package initdb

import (
	"context"

	"github.com/spf13/cobra"
	"go.calcjobs.dev/calcjobs/cmd/providers"
	"go.calcjobs.dev/calcjobs/pkg/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Cmd = cobra.Command{
	Use:   "init-db",
	Short: "Create database tables.",
	Long:  "Creates the jobs and operations tables if they do not exist yet.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		app := providers.NewApp(cmd, fx.Invoke(Run))
		app.Run()
	},
}

func Run(ctx context.Context, log *zap.Logger, st *store.Store, shutdown fx.Shutdowner) error {
	if err := st.CreateTables(ctx); err != nil {
		return err
	}
	log.Info("Created tables")
	return shutdown.Shutdown()
}

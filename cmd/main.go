package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.calcjobs.dev/calcjobs/cmd/api"
	"go.calcjobs.dev/calcjobs/cmd/initdb"
	"go.calcjobs.dev/calcjobs/cmd/providers"
	"go.calcjobs.dev/calcjobs/cmd/worker"
	"go.uber.org/zap"
)

var rootCmd = cobra.Command{
	Use:   "calcjobs",
	Short: "calcjobs batch calculation service",

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var logConfig zap.Config
		if devMode {
			logConfig = zap.NewDevelopmentConfig()
		} else {
			logConfig = zap.NewProductionConfig()
		}
		log, err := logConfig.Build()
		if err != nil {
			panic("failed to build logger: " + err.Error())
		}
		providers.Log = log
	},
}

var devMode bool

func init() {
	persistentFlags := rootCmd.PersistentFlags()
	persistentFlags.BoolVar(&devMode, "dev", false, "Dev mode")
	rootCmd.AddCommand(&api.Cmd, &worker.Cmd, &initdb.Cmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
	}
}

package main

import (
	"os"

	"github.com/spf13/cobra"
	"liyu1981.xyz/hive-telemetry-service/pkg/config"
	"liyu1981.xyz/hive-telemetry-service/pkg/db"
	"liyu1981.xyz/hive-telemetry-service/pkg/iot"
)

// app holds what every subcommand needs; the database is opened on first use so
// `hivectl relay simulate --offline` and `--help` never touch storage.
type app struct {
	open func() (*db.DB, error)

	cfg *config.Config
	db  *db.DB
	iot *iot.IOT
}

func newApp() *app {
	a := &app{}
	a.open = func() (*db.DB, error) {
		dialector, err := db.UseDialector(a.cfg.DBType, a.cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return db.Open(dialector)
	}
	return a
}

func (a *app) core(cmd *cobra.Command) (*iot.IOT, error) {
	if a.iot != nil {
		return a.iot, nil
	}
	if a.cfg == nil {
		if err := config.LoadDotEnv(); err != nil {
			return nil, err
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		a.cfg = cfg
	}
	database, err := a.open()
	if err != nil {
		return nil, err
	}
	a.db = database
	a.iot = iot.New(database, a.cfg.IOTOptions())
	if err := a.iot.Bootstrap(cmd.Context()); err != nil {
		return nil, err
	}
	return a.iot, nil
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "hivectl",
		Short:         "Operate the hive telemetry service's devices, policy and operators",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newDeviceCommand(a))
	root.AddCommand(newPolicyCommand(a))
	root.AddCommand(newOperatorCommand(a))
	root.AddCommand(newRelayCommand(a))
	return root
}

func main() {
	if err := newRootCommand(newApp()).Execute(); err != nil {
		os.Exit(1)
	}
}

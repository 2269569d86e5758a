package main

import (
	"fmt"

	"github.com/BearBump/RepairBox/config"
	"github.com/BearBump/RepairBox/internal/services/lifecycle"
	"github.com/BearBump/RepairBox/internal/storage/pgrepairs"
	"github.com/BearBump/RepairBox/internal/storage/sqliterepairs"
	"github.com/BearBump/RepairBox/internal/trackingcode"
	"github.com/spf13/cobra"
)

type rootOpts struct {
	configPath string
	sqlitePath string
	tag        string
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}

	root := &cobra.Command{
		Use:           "repairctl",
		Short:         "Operator tools for repair tracking",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config; its storage settings are used")
	root.PersistentFlags().StringVar(&opts.sqlitePath, "sqlite", "repairbox.db", "SQLite file used when no config is given")
	root.PersistentFlags().StringVar(&opts.tag, "tag", "", "tracking code tag (default FAG)")

	root.AddCommand(
		newCodeCmd(opts),
		newIntakeCmd(opts),
		newListCmd(opts),
		newTimelineCmd(opts),
		newTransitionCmd(opts),
		newCorrectCmd(opts),
	)
	return root
}

// openService открывает хранилище из конфига или локальный sqlite-файл.
// События и кэш в CLI не подключаются.
func (o *rootOpts) openService() (*lifecycle.Service, func(), error) {
	tag := o.tag
	var (
		repo    lifecycle.Repository
		closeFn func()
	)

	if o.configPath != "" {
		cfg, err := config.LoadConfig(o.configPath)
		if err != nil {
			return nil, nil, err
		}
		if tag == "" {
			tag = cfg.RepairBox.TrackingTag
		}
		switch cfg.RepairBox.StorageDriver {
		case "", "postgres":
			st, err := pgrepairs.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			repo, closeFn = st, st.Close
		case "sqlite":
			st, err := sqliterepairs.New(cfg.RepairBox.SQLitePath)
			if err != nil {
				return nil, nil, err
			}
			repo, closeFn = st, st.Close
		default:
			return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.RepairBox.StorageDriver)
		}
	} else {
		st, err := sqliterepairs.New(o.sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		repo, closeFn = st, st.Close
	}

	return lifecycle.New(repo, trackingcode.New(tag, nil), nil, nil, lifecycle.Config{}), closeFn, nil
}

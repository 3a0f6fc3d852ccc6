// Copyright (C) 2024 Tim Bastin, l3montree GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package commands

import (
	"log/slog"
	"os"

	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/database"
	"github.com/l3montree-dev/procurio/internal/pubsub"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev" // set via ldflags during build

var RootCmd = &cobra.Command{
	SilenceUsage:      true,
	Use:               "procurio",
	Short:             "Multi tenant procurement workflow core",
	Version:           version,
	DisableAutoGenTag: true,
	Long: `Procurio runs the transactional core of a B2B procurement platform:
project scoped RFQ, quote, order and budget workflows on PostgreSQL.
Configuration is read from the environment (prefix PROCURIO_) and an
optional .env file.`,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		core.LoadConfig() // nolint: errcheck
		core.InitLogger()

		viper.SetEnvPrefix("PROCURIO")
		viper.AutomaticEnv()

		viper.SetDefault("postgres_host", "localhost")
		viper.SetDefault("postgres_port", "5432")
		viper.SetDefault("postgres_user", "procurio")
		viper.SetDefault("postgres_db", "procurio")
		return nil
	},
}

func Execute() {
	RootCmd.AddCommand(NewMigrateCommand())
	RootCmd.AddCommand(NewDispatchCommand())
	RootCmd.AddCommand(NewListenCommand())

	if err := RootCmd.Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func databaseFactory() (core.DB, error) {
	return database.NewConnection(
		viper.GetString("postgres_host"),
		viper.GetString("postgres_user"),
		viper.GetString("postgres_password"),
		viper.GetString("postgres_db"),
		viper.GetString("postgres_port"),
	)
}

func brokerFactory() (*pubsub.PostgreSQLBroker, error) {
	return pubsub.NewPostgreSQLBroker(
		viper.GetString("postgres_user"),
		viper.GetString("postgres_password"),
		viper.GetString("postgres_host"),
		viper.GetString("postgres_port"),
		viper.GetString("postgres_db"),
	)
}

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
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/l3montree-dev/procurio/internal/core/events"
	"github.com/l3montree-dev/procurio/internal/database/repositories"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewDispatchCommand runs the outbox relay. It is meant to run as a
// single replica next to the API workers.
func NewDispatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Relay unpublished outbox events to the broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			interval := viper.GetDuration("dispatch_interval")
			if interval <= 0 {
				interval = 5 * time.Second
			}

			db, err := databaseFactory()
			if err != nil {
				return err
			}
			broker, err := brokerFactory()
			if err != nil {
				return err
			}
			defer broker.Close()

			dispatcher := events.NewDispatcher(repositories.NewOutboxRepository(db), broker, interval)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			slog.Info("outbox dispatcher started", "interval", interval)
			if err := dispatcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().Duration("interval", 5*time.Second, "poll interval for unpublished events")
	_ = viper.BindPFlag("dispatch_interval", cmd.Flags().Lookup("interval"))
	return cmd
}

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
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewListenCommand tails the domain event channel. Useful to watch a
// workflow live during development.
func NewListenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Subscribe to the domain event channel and log every event",
		RunE: func(cmd *cobra.Command, args []string) error {
			broker, err := brokerFactory()
			if err != nil {
				return err
			}
			defer broker.Close()

			ch, err := broker.Subscribe()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			for {
				select {
				case <-ctx.Done():
					return nil
				case event, ok := <-ch:
					if !ok {
						return nil
					}
					slog.Info("domain event",
						"type", event.Type,
						"projectId", event.ProjectID,
						"correlationId", event.CorrelationID,
						"payload", event.Payload)
				}
			}
		},
	}
}

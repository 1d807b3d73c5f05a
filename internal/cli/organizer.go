package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"evaly-service/internal/app"
	"evaly-service/internal/config"
	"evaly-service/internal/domain"
	"evaly-service/internal/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewOrganizerCmd manages organizer records, which turn users into organization members.
func NewOrganizerCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "organizer",
		Short: "Manage organizers",
	}

	var (
		organizationID string
		name           string
	)
	add := &cobra.Command{
		Use:   "add <user-id>",
		Short: "Register a user as an organizer of an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("organizers are only persisted with postgres; set postgres.url")
			}
			log := logger.New(cfg)
			defer log.Sync()

			b, err := openBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer b.close()

			if organizationID == "" {
				organizationID = uuid.NewString()
			}
			organizer := domain.Organizer{
				ID:             uuid.NewString(),
				UserID:         args[0],
				OrganizationID: organizationID,
				Name:           name,
				CreatedAt:      time.Now(),
			}
			if err := b.repos.Organizers.Insert(cmd.Context(), organizer); err != nil {
				return err
			}
			log.Info("organizer added",
				zap.String("organizerId", organizer.ID),
				zap.String("organizationId", organizer.OrganizationID))
			fmt.Fprintln(cmd.OutOrStdout(), organizer.ID)
			return nil
		},
	}
	add.Flags().StringVar(&organizationID, "organization", "", "organization id (new one when empty)")
	add.Flags().StringVar(&name, "name", "", "display name")
	cmd.AddCommand(add)
	return cmd
}

func seedOrganizers(ctx context.Context, cfg config.Config, repo app.OrganizerRepository, log *zap.Logger) error {
	for _, seed := range cfg.Organizers {
		if seed.UserID == "" || seed.OrganizationID == "" {
			continue
		}
		_, err := repo.FindByUserID(ctx, seed.UserID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		err = repo.Insert(ctx, domain.Organizer{
			ID:             uuid.NewString(),
			UserID:         seed.UserID,
			OrganizationID: seed.OrganizationID,
			Name:           seed.Name,
			CreatedAt:      time.Now(),
		})
		if err != nil {
			return fmt.Errorf("seed organizer %s: %w", seed.UserID, err)
		}
		log.Info("organizer seeded", zap.String("userId", seed.UserID), zap.String("organizationId", seed.OrganizationID))
	}
	return nil
}

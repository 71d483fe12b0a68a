package main

import (
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-admin/internal/associations"
	"github.com/odyssey-erp/odyssey-admin/internal/platform/db"
	"github.com/odyssey-erp/odyssey-admin/internal/seed"
)

func newSeedCommand() *cobra.Command {
	var admin seed.Admin

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed permissions, the Super Admin role and the admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("name") {
				admin.Name = cfg.AdminName
			}
			if !cmd.Flags().Changed("email") {
				admin.Email = cfg.AdminEmail
			}
			if !cmd.Flags().Changed("password") {
				admin.Password = cfg.AdminPassword
			}

			pool, err := db.New(cmd.Context(), cfg.PGDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			_, err = seed.New(seed.NewStore(pool, associations.NewManager()), logger).Run(cmd.Context(), admin)
			return err
		},
	}

	cmd.Flags().StringVar(&admin.Name, "name", "", "Admin display name (defaults to ADMIN_NAME)")
	cmd.Flags().StringVar(&admin.Email, "email", "", "Admin email (defaults to ADMIN_EMAIL)")
	cmd.Flags().StringVar(&admin.Password, "password", "", "Admin password (defaults to ADMIN_PASSWORD)")
	return cmd
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/service"
)

var tokenRoles = map[models.UserRole]struct{}{
	models.RoleSuperAdmin: {},
	models.RoleAdmin:      {},
	models.RoleWarden:     {},
	models.RoleStudent:    {},
}

func (c *cli) tokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		email  string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for calling the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := models.UserRole(strings.ToUpper(strings.TrimSpace(role)))
			if _, ok := tokenRoles[r]; !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			auth := service.NewAuthService(service.AuthConfig{
				AccessTokenSecret: c.cfg.JWT.Secret,
				AccessTokenExpiry: c.cfg.JWT.Expiration,
				Issuer:            c.cfg.JWT.Issuer,
			})
			token, expiresAt, err := auth.GenerateToken(models.User{ID: userID, Email: email, Role: r})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if c.asJSON {
				return c.printJSON(out, map[string]interface{}{"token": token, "expiresAt": expiresAt})
			}
			fmt.Fprintln(out, token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "hostelctl", "subject user id")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "SUPERADMIN, ADMIN, WARDEN or STUDENT")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	return cmd
}

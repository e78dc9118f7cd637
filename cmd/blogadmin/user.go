package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eringen/blogadmin"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage dashboard accounts",
}

var (
	userEmail    string
	userName     string
	userPassword string
)

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a dashboard account",
	Example: `  blogadmin user create --email ada@example.com --password s3cret!
  ADMIN_PASSWORD=s3cret! blogadmin user create --email ada@example.com`,
	RunE: runUserCreate,
}

func init() {
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "account email (required)")
	userCreateCmd.Flags().StringVar(&userName, "name", "", "display name (defaults to the email's local part)")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "password, at least 6 characters (defaults to $ADMIN_PASSWORD)")
	_ = userCreateCmd.MarkFlagRequired("email")
	userCmd.AddCommand(userCreateCmd)
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	cfg, err := blogadmin.LoadConfig(configPath)
	if err != nil {
		return err
	}
	password := userPassword
	if password == "" {
		password = cfg.AdminPassword
	}
	if password == "" {
		return errors.New("a password is required: pass --password or set ADMIN_PASSWORD")
	}

	store, err := blogadmin.NewStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	auth := blogadmin.NewAuthService(store, cfg.JWTSecret, cfg.TokenTTL, blogadmin.Auditor{})
	u, err := auth.CreateUser(context.Background(), userEmail, userName, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", u.Email, u.ID)
	return nil
}

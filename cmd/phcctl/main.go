// Command phcctl runs operator tasks against the portal database: schema migration,
// bootstrapping the first super admin and inspecting the role matrix.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"phcportal/internal/config"
	"phcportal/internal/database"
	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/repository"
	"phcportal/internal/service"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "phcctl",
		Short:        "Operator tools for the PHC portal",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env", "configs/.env", "dotenv file to load before reading the environment")

	connect := func() (*gorm.DB, error) {
		cfg := config.Load(envFile)
		return database.NewConnection(cfg.Database.DSN())
	}

	root.AddCommand(newMigrateCmd(connect), newCreateSuperAdminCmd(connect), newPolicyCmd())
	return root
}

func newMigrateCmd(connect func() (*gorm.DB, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema and seed default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect()
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

type superAdminInput struct {
	Email    string
	Username string
	FullName string
	Password string
}

func (in superAdminInput) validate() error {
	switch {
	case !strings.Contains(in.Email, "@"):
		return errors.New("--email must be an email address")
	case in.Username == "":
		return errors.New("--username is required")
	case in.FullName == "":
		return errors.New("--name is required")
	case len(in.Password) < 8:
		return errors.New("--password must be at least 8 characters")
	}
	return nil
}

func newCreateSuperAdminCmd(connect func() (*gorm.DB, error)) *cobra.Command {
	var in superAdminInput

	cmd := &cobra.Command{
		Use:   "create-super-admin",
		Short: "Create an approved super_admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Email = strings.ToLower(strings.TrimSpace(in.Email))
			in.Username = strings.TrimSpace(in.Username)
			if err := in.validate(); err != nil {
				return err
			}

			db, err := connect()
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			user, err := createSuperAdmin(cmd.Context(), repository.NewUserRepository(db), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created super_admin %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "login email")
	cmd.Flags().StringVar(&in.Username, "username", "", "unique username")
	cmd.Flags().StringVar(&in.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	return cmd
}

func createSuperAdmin(ctx context.Context, users repository.UserRepository, in superAdminInput) (*model.User, error) {
	if _, err := users.GetByEmail(ctx, in.Email); err == nil {
		return nil, fmt.Errorf("an account with email %s already exists", in.Email)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := service.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Email:    in.Email,
		Username: in.Username,
		FullName: in.FullName,
		Password: hash,
		Role:     model.RoleSuperAdmin,
		Status:   model.UserStatusApproved,
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func newPolicyCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Print the role matrix, or validate a policy file with --file",
		RunE: func(cmd *cobra.Command, args []string) error {
			pol := policy.Default()
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				if pol, err = policy.Load(data); err != nil {
					return err
				}
			}
			return printPolicy(cmd, pol)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "policy YAML to validate instead of the built-in one")
	return cmd
}

func printPolicy(cmd *cobra.Command, pol *policy.Policy) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RESOURCE\tVIEW\tMUTATE")
	for _, r := range pol.Rules() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, strings.Join(r.View, ","), strings.Join(r.Mutate, ","))
	}
	return w.Flush()
}

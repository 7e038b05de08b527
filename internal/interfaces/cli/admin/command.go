// Package admin implements the `broker admin` command family for operator
// bootstrap tasks that must not go through the HTTP surface.
package admin

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/worldvpn/broker/internal/domain/user"
	"github.com/worldvpn/broker/internal/infrastructure/auth"
	"github.com/worldvpn/broker/internal/infrastructure/config"
	"github.com/worldvpn/broker/internal/infrastructure/database"
	"github.com/worldvpn/broker/internal/infrastructure/permission"
	"github.com/worldvpn/broker/internal/infrastructure/repository"
	"github.com/worldvpn/broker/internal/shared/authorization"
	"github.com/worldvpn/broker/internal/shared/logger"
)

var (
	env      string
	username string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative tools",
		Long:  `Operator bootstrap commands, such as creating the first admin account.`,
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	cmd.AddCommand(newCreateCommand())

	return cmd
}

func newCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		Long:  `Create an account with the admin role. The password is read from the terminal, never from arguments.`,
		RunE:  runCreate,
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username for the admin account (required)")
	cmd.MarkFlagRequired("username")

	return cmd
}

func runCreate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	password, err := promptPassword()
	if err != nil {
		return err
	}

	hasher := auth.NewBcryptPasswordHasher(cfg.Auth.Password.BcryptCost)
	passwordHash, err := hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	account, err := user.NewUser(strings.ToLower(strings.TrimSpace(username)), passwordHash, authorization.RoleAdmin)
	if err != nil {
		return fmt.Errorf("invalid admin account: %w", err)
	}

	userRepo := repository.NewUserRepository(database.Get(), log)
	if err := userRepo.Create(context.Background(), account); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	enforcer, err := permission.NewEnforcer(database.Get(), cfg.Permission.ModelPath, log)
	if err != nil {
		return fmt.Errorf("failed to build permission enforcer: %w", err)
	}
	if err := permission.InitBrokerPermissions(enforcer, log); err != nil {
		return fmt.Errorf("failed to seed permissions: %w", err)
	}
	if err := enforcer.AddRoleForUser(account.SID(), string(authorization.RoleAdmin)); err != nil {
		return fmt.Errorf("failed to grant admin role: %w", err)
	}

	fmt.Printf("admin account created: %s (%s)\n", account.Username(), account.SID())
	return nil
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password confirmation: %w", err)
	}

	if string(password) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	return string(password), nil
}

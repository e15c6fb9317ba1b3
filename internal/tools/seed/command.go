package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/credlock/credlock/internal/config"
	"github.com/credlock/credlock/internal/database"
	"github.com/credlock/credlock/internal/domain"
	"github.com/credlock/credlock/internal/security"
	"github.com/credlock/credlock/internal/tools/common"
	"github.com/credlock/credlock/internal/tools/ui"
)

type options struct {
	envFile  string
	email    string
	name     string
	password string
	ci       bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "seed", Short: "Local development account tooling"}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().StringVar(&opts.email, "email", "dev@localhost", "account email")
	cmd.PersistentFlags().StringVar(&opts.name, "name", "Dev User", "account display name")
	cmd.PersistentFlags().StringVar(&opts.password, "password", "", "account password (required for apply)")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newApplyCommand(opts), newDryRunCommand(opts))
	return cmd
}

func newApplyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Create a development account with a password credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "seed apply", func(ctx context.Context) ([]string, error) {
				if len(opts.password) < 8 {
					return nil, fmt.Errorf("password must be at least 8 characters")
				}
				_, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				sqlDB, _ := db.DB()
				defer func() { _ = sqlDB.Close() }()

				if err := database.Migrate(db); err != nil {
					return nil, err
				}

				email := strings.TrimSpace(opts.email)
				digest, err := security.HashPassword(opts.password)
				if err != nil {
					return nil, err
				}
				handle, err := uuid.New().MarshalBinary()
				if err != nil {
					return nil, err
				}
				user := &domain.User{
					Email:        email,
					Name:         opts.name,
					PasswordHash: &digest,
					Handle:       handle,
				}
				if err := db.Create(user).Error; err != nil {
					if errors.Is(err, gorm.ErrDuplicatedKey) {
						return []string{"account already exists: " + email}, nil
					}
					return nil, err
				}
				return []string{
					"created development account: " + email,
					fmt.Sprintf("user id: %d", user.ID),
				}, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "seed apply", details, err)
			}
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func newDryRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Show what seeding would do",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "seed dry-run", func(ctx context.Context) ([]string, error) {
				if _, _, err := loadConfigDB(opts.envFile); err != nil {
					return nil, err
				}
				return []string{
					"would apply AutoMigrate for users and authenticators",
					"would create account: " + strings.TrimSpace(opts.email),
					"password digest would be computed with argon2id",
					"no mutation executed in dry-run mode",
				}, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "seed dry-run", details, err)
			}
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		return fn(context.Background())
	}
	return ui.Run(title, fn)
}

func loadConfigDB(envFile string) (*config.Config, *gorm.DB, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

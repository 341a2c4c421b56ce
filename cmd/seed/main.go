package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/punchcard-next/internal/config"
	"github.com/punchcard-next/internal/logger"
	"github.com/punchcard-next/internal/models"
	"github.com/punchcard-next/internal/provider"
	"github.com/punchcard-next/internal/service"

	"github.com/spf13/cobra"
)

const demoPassword = "punch-demo-123"

func main() {
	rootCmd := &cobra.Command{
		Use:   "seed",
		Short: "Punchcard-Next 数据库初始化与演示数据工具",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return openDatabase()
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(demoCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var cfg *config.Config

func openDatabase() error {
	cfg = config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		return fmt.Errorf("connect database failed: %w", err)
	}
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "执行数据库迁移",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := models.AutoMigrate(); err != nil {
				return fmt.Errorf("migrate database failed: %w", err)
			}
			fmt.Println("migrate done")
			return nil
		},
	}
}

func demoCmd() *cobra.Command {
	var punches int
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "创建演示店主、店员、顾客与商家",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := models.AutoMigrate(); err != nil {
				return fmt.Errorf("migrate database failed: %w", err)
			}
			c := provider.Build(cfg, models.DB, nil)
			return seedDemo(cmd.Context(), c, punches)
		},
	}
	cmd.Flags().IntVar(&punches, "punches", 5, "演示商家集满所需次数")
	return cmd
}

func tokenCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "为已存在的用户签发访问 Token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := provider.Build(cfg, models.DB, nil)
			user, err := c.UserAuthService.GetUserByEmail(cmd.Context(), email)
			if err != nil {
				return err
			}
			token, expiresAt, err := c.UserAuthService.GenerateUserJWT(user, cfg.UserJWT.ExpireHours)
			if err != nil {
				return err
			}
			fmt.Printf("user_id=%d expires_at=%s\n%s\n", user.ID, expiresAt.Format(time.RFC3339), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "用户邮箱")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func seedDemo(ctx context.Context, c *provider.Container, punches int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	owner, err := ensureUser(ctx, c, "owner@punchcard.local", "Demo Owner")
	if err != nil {
		return err
	}
	staff, err := ensureUser(ctx, c, "staff@punchcard.local", "Demo Staff")
	if err != nil {
		return err
	}
	customer, err := ensureUser(ctx, c, "customer@punchcard.local", "Demo Customer")
	if err != nil {
		return err
	}

	reward, err := models.ParseMoney("18.00")
	if err != nil {
		return err
	}
	business, err := c.BusinessService.CreateBusiness(ctx, service.CreateBusinessInput{
		OwnerUserID:       owner.ID,
		Name:              "Demo Coffee",
		PunchesRequired:   punches,
		CardValidityDays:  cfg.Card.DefaultValidityDays,
		RewardDescription: "任意一杯手冲咖啡",
		RewardValue:       reward,
	})
	if err != nil {
		return fmt.Errorf("create business failed: %w", err)
	}
	if _, err := c.BusinessService.GrantStaff(ctx, service.GrantStaffInput{
		OperatorID: owner.ID,
		BusinessID: business.ID,
		StaffEmail: staff.Email,
	}); err != nil {
		return fmt.Errorf("grant staff failed: %w", err)
	}

	card, err := c.CardService.OptIn(ctx, business.ID, customer.ID)
	if err != nil && !errors.Is(err, service.ErrCardActiveExists) {
		return fmt.Errorf("create card failed: %w", err)
	}

	fmt.Printf("business_id=%d punches_required=%d\n", business.ID, business.PunchesRequired)
	if card != nil {
		fmt.Printf("card_id=%d expires_at=%s\n", card.ID, card.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Printf("owner=%s staff=%s customer=%s password=%s\n", owner.Email, staff.Email, customer.Email, demoPassword)
	return nil
}

func ensureUser(ctx context.Context, c *provider.Container, email, name string) (*models.User, error) {
	user, err := c.UserAuthService.GetUserByEmail(ctx, email)
	if err == nil && user != nil {
		return user, nil
	}
	if err != nil && !errors.Is(err, service.ErrUserNotFound) {
		return nil, err
	}
	user, err = c.UserAuthService.CreateUser(ctx, email, demoPassword, name)
	if err != nil {
		return nil, fmt.Errorf("create user %s failed: %w", email, err)
	}
	return user, nil
}

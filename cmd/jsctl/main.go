// Command jsctl 是数据库管理工具：迁移表结构、写入内置项目、改名、重新计算挑战进度
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"js-backend/internal/challenge"
	"js-backend/internal/common"
	"js-backend/internal/db"
	"js-backend/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	configPath string
	cfg        *common.Config
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "jsctl",
		Short:         "js 数据库管理工具",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := common.LoadConfig(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logger.Init(cfg.Log)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "配置文件路径")

	root.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "自动迁移表结构",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withStore(cmd.Context(), func(context.Context, *db.Store) error {
					fmt.Fprintln(cmd.OutOrStdout(), "migrated")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "bootstrap",
			Short: "写入内置训练项目和挑战，可以重复执行",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withStore(cmd.Context(), func(ctx context.Context, s *db.Store) error {
					workouts, challenges, err := db.Bootstrap(ctx, s)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "bootstrapped %d workouts, %d challenges\n", workouts, challenges)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "rename <old> <new>",
			Short: "修改用户名",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withStore(cmd.Context(), func(ctx context.Context, s *db.Store) error {
					err := s.RenameUser(ctx, args[0], args[1])
					switch {
					case errors.Is(err, db.ErrNotFound):
						return fmt.Errorf("user %s not found", args[0])
					case errors.Is(err, db.ErrDuplicate):
						return fmt.Errorf("user %s already exists", args[1])
					case err != nil:
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %s\n", args[0], args[1])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "recalculate <user>",
			Short: "重放记录，重新计算用户的挑战进度",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withStore(cmd.Context(), func(ctx context.Context, s *db.Store) error {
					return a.recalculate(ctx, cmd, s, args[0])
				})
			},
		},
	)
	return root
}

// withStore 打开数据库并迁移，结束后关闭连接
func (a *app) withStore(ctx context.Context, fn func(ctx context.Context, s *db.Store) error) error {
	defer logger.Sync()
	gdb, err := db.Open(a.cfg.Database)
	if err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	if err := db.Migrate(gdb); err != nil {
		return err
	}
	return fn(ctx, db.NewStore(gdb))
}

func (a *app) recalculate(ctx context.Context, cmd *cobra.Command, s *db.Store, name string) error {
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	engine := challenge.NewEngine(loc, a.log.Named("challenge"))
	return s.Transaction(ctx, func(tx *db.Store) error {
		user, err := tx.FindUser(ctx, name)
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("user %s not found", name)
		}
		if err != nil {
			return err
		}
		if user, err = tx.LockUser(ctx, user.ID); err != nil {
			return err
		}
		progresses, err := engine.RecalculateForUser(ctx, tx, user)
		if err != nil {
			return err
		}
		if len(progresses) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s 没有参加任何挑战\n", user.Name)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), engine.RenderAll(progresses))
		return nil
	})
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"js-backend/internal/challenge"
	"js-backend/internal/command"
	"js-backend/internal/common"
	"js-backend/internal/db"
	"js-backend/internal/logger"
	"js-backend/internal/logic"
)

func main() {
	var configPath string
	root := &cobra.Command{
		Use:           "js",
		Short:         "健身群聊天机器人",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := common.LoadConfig(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "配置文件路径，默认查找 etc/js.yaml")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config) error {
	log := logger.Init(cfg.Log)
	defer logger.Sync()
	log.Info("starting", configFields(cfg)...)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	gdb, err := db.Open(cfg.Database)
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
	store := db.NewStore(gdb)

	engine := challenge.NewEngine(loc, log.Named("challenge"))
	handlers := command.NewHandlers(engine, command.Options{
		Location:   loc,
		AdminIDs:   cfg.Bot.AdminIDs,
		RecentDays: cfg.Bot.RecentDays,
	}, log.Named("command"))
	processor := command.NewProcessor(store, handlers.Registry(), log.Named("command"))
	notifier := logic.NewTelegramNotifier(cfg.Telegram, log.Named("telegram"))
	defer notifier.Wait()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: logic.SetupRouter(logic.Deps{
			Processor: processor,
			Telegram:  notifier,
			Beary:     cfg.Beary,
			Log:       log.Named("http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Scheduler.Enabled && notifier.Enabled() {
		scheduler := logic.NewScheduler(store, notifier, cfg.Scheduler, loc, log.Named("scheduler"))
		g.Go(func() error { return scheduler.Run(ctx) })
	}
	return g.Wait()
}

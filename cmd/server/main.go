package main // Entry point package

import (
    "context"
    "log/slog"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/cockroachdb/errors"
    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "golang.org/x/sync/errgroup"

    "github.com/zxswv/npg/internal/booking"
    "github.com/zxswv/npg/internal/config"
    "github.com/zxswv/npg/internal/database"
    "github.com/zxswv/npg/internal/handler"
    "github.com/zxswv/npg/internal/middleware"
    "github.com/zxswv/npg/internal/queue"
    "github.com/zxswv/npg/internal/repository"
    "github.com/zxswv/npg/internal/router"
    "github.com/zxswv/npg/internal/service"
)

func main() {
    if err := run(); err != nil {
        slog.Error("server stopped", slog.String("error", err.Error()))
        os.Exit(1)
    }
}

func run() error {
    _ = godotenv.Load() // .env is optional; real env wins

    cfg, err := config.Load()
    if err != nil {
        return err
    }
    logger := middleware.NewLogger(cfg.Log, cfg.App.IsProd())

    db, err := database.Open(cfg.DB)
    if err != nil {
        return err
    }
    defer db.Close()

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    if cfg.DB.AutoMigrate {
        if err := database.Migrate(ctx, db); err != nil {
            return err
        }
    }

    rdb := config.NewRedisClient(cfg.Redis)
    if rdb == nil {
        logger.Warn("redis unavailable; response cache disabled, rate limiting in-process", slog.String("addr", cfg.Redis.Address()))
    } else {
        defer rdb.Close()
    }

    rooms := repository.NewRoomRepo(db)
    schedules := repository.NewScheduleRepo(db)
    reservations := repository.NewReservationRepo(db)
    store := repository.NewStore(db, rooms, schedules, reservations)

    publisher := service.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, logger)
    svc := booking.NewService(store, publisher, logger)
    provisioner := service.NewProvisioner(schedules, cfg.Schedule, logger)

    e := echo.New()
    e.HideBanner = true
    e.HidePort = true
    e.Use(echomw.Recover())
    e.Use(middleware.RequestLogger(logger))

    router.RegisterRoutes(e, router.Handlers{
        Health:       handler.Health(db),
        Rooms:        handler.NewRoomHandler(rooms),
        Schedules:    handler.NewScheduleHandler(schedules, provisioner, reservations),
        Reservations: handler.NewReservationHandler(svc),
    }, router.Middlewares{
        Cache:     middleware.NewRedisCache(cfg.Cache, rdb),
        RateLimit: middleware.NewTokenBucket(cfg.RateLimit, rdb),
        Purge:     middleware.NewCachePurger(cfg.Cache, rdb, logger),
    })

    g, gctx := errgroup.WithContext(ctx)

    g.Go(func() error {
        addr := ":" + cfg.App.Port
        logger.Info("listening", slog.String("addr", addr), slog.String("env", cfg.App.Env))
        if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            return err
        }
        return nil
    })
    g.Go(func() error {
        <-gctx.Done()
        shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        return e.Shutdown(shutdownCtx)
    })
    g.Go(func() error {
        return provisioner.Run(gctx)
    })
    g.Go(func() error {
        return publisher.Run(gctx)
    })
    if cfg.AMQP.Consumer {
        g.Go(func() error {
            return queue.StartConsumer(gctx, cfg.AMQP, logger)
        })
    }

    err = g.Wait()
    logger.Info("shutdown complete")
    return err
}

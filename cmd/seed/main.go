// Command seed loads the campus rooms and provisions the upcoming schedules.
// It is safe to run repeatedly; -reset wipes every reservation, slot,
// schedule and room first.
package main

import (
    "context"
    "flag"
    "log/slog"
    "os"
    "time"

    "github.com/joho/godotenv"

    "github.com/zxswv/npg/internal/config"
    "github.com/zxswv/npg/internal/database"
    "github.com/zxswv/npg/internal/middleware"
    "github.com/zxswv/npg/internal/repository"
    "github.com/zxswv/npg/internal/service"
)

func main() {
    reset := flag.Bool("reset", false, "delete all reservations, schedules and rooms before seeding")
    days := flag.Int("days", 30, "number of days to provision starting today")
    flag.Parse()

    if err := run(*reset, *days); err != nil {
        slog.Error("seeding failed", slog.String("error", err.Error()))
        os.Exit(1)
    }
}

func run(reset bool, days int) error {
    _ = godotenv.Load()

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

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
    defer cancel()

    if err := database.Migrate(ctx, db); err != nil {
        return err
    }
    if reset {
        if err := repository.Reset(ctx, db); err != nil {
            return err
        }
        logger.Info("cleaned up existing data")
    }

    if err := repository.NewRoomRepo(db).UpsertMany(ctx, campusRooms); err != nil {
        return err
    }
    logger.Info("rooms upserted", slog.Int("count", len(campusRooms)))

    provisioner := service.NewProvisioner(repository.NewScheduleRepo(db), cfg.Schedule, logger)
    created, err := provisioner.EnsureRange(ctx, time.Now().UTC(), days)
    if err != nil {
        return err
    }
    logger.Info("seeding finished", slog.Int("days", days), slog.Int("schedules_created", created))
    return nil
}

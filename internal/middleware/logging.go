package middleware

import (
    "context"
    "io"
    "log/slog"
    "os"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/zxswv/npg/internal/config"
)

// RequestIDKey is the echo.Context key holding the request id.
const RequestIDKey = "request_id"

// NewLogger builds the process logger: JSON in production, text otherwise.
// It also becomes the slog default.
func NewLogger(cfg config.LogConfig, prod bool) *slog.Logger {
    return newLogger(os.Stdout, cfg, prod)
}

func newLogger(w io.Writer, cfg config.LogConfig, prod bool) *slog.Logger {
    opts := &slog.HandlerOptions{
        Level: parseLevel(cfg.Level),
        ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
            if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
                if t, ok := a.Value.Any().(time.Time); ok {
                    a.Value = slog.StringValue(t.UTC().Format(cfg.TimeFormat))
                }
            }
            return a
        },
    }
    var handler slog.Handler
    if prod {
        handler = slog.NewJSONHandler(w, opts)
    } else {
        handler = slog.NewTextHandler(w, opts)
    }
    logger := slog.New(handler)
    slog.SetDefault(logger)
    return logger
}

func parseLevel(s string) slog.Level {
    switch strings.ToLower(s) {
    case "debug":
        return slog.LevelDebug
    case "warn":
        return slog.LevelWarn
    case "error":
        return slog.LevelError
    default:
        return slog.LevelInfo
    }
}

// RequestLogger assigns every request an id (reusing X-Request-ID when the
// client sent one) and logs its completion with status and duration.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            req := c.Request()
            id := req.Header.Get(echo.HeaderXRequestID)
            if id == "" {
                id = uuid.NewString()
            }
            c.Set(RequestIDKey, id)
            c.Response().Header().Set(echo.HeaderXRequestID, id)

            err := next(c)
            if err != nil {
                // let the echo error handler write the response before logging it
                c.Error(err)
            }

            status := c.Response().Status
            attrs := []slog.Attr{
                slog.String("request_id", id),
                slog.String("method", req.Method),
                slog.String("path", req.URL.Path),
                slog.String("client_ip", c.RealIP()),
                slog.Int("status_code", status),
                slog.Duration("duration", time.Since(start)),
            }
            if size := c.Response().Size; size > 0 {
                attrs = append(attrs, slog.Int64("response_size", size))
            }
            if err != nil {
                attrs = append(attrs, slog.String("error", err.Error()))
            }
            level := slog.LevelInfo
            if status >= 500 {
                level = slog.LevelError
            } else if status >= 400 {
                level = slog.LevelWarn
            }
            logger.LogAttrs(context.Background(), level, "request completed", attrs...)
            return nil
        }
    }
}

// RequestID returns the id RequestLogger assigned to c, if any.
func RequestID(c echo.Context) string {
    if id, ok := c.Get(RequestIDKey).(string); ok {
        return id
    }
    return ""
}

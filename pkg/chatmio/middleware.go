package chatmio

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/golang-jwt/jwt/v5"
)

// LoggerConfig defines the configuration options for the Logger middleware.
type LoggerConfig struct {
	// Output specifies where logs are written (defaults to os.Stdout)
	Output io.Writer
	// SkipPaths lists paths to skip logging (e.g., health checks)
	SkipPaths []string
}

// Logger returns a middleware that logs each request to stdout.
func Logger() Middleware {
	return LoggerWithConfig(LoggerConfig{Output: os.Stdout})
}

// LoggerWithConfig returns a request-logging middleware with custom
// configuration.
func LoggerWithConfig(config LoggerConfig) Middleware {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	skipMap := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipMap[path] = true
	}

	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *Context) error {
			if skipMap[ctx.Path()] {
				return next.Serve(ctx)
			}

			start := time.Now()
			err := next.Serve(ctx)
			duration := time.Since(start)

			_, _ = fmt.Fprintf(config.Output, "[%s] %s %s %d %dus",
				start.Format(time.RFC3339),
				ctx.Method(),
				ctx.Path(),
				ctx.status,
				duration.Microseconds())
			if err != nil {
				_, _ = fmt.Fprintf(config.Output, " error=%q", err.Error())
			}
			_, _ = fmt.Fprintln(config.Output)

			return err
		})
	}
}

// Recovery returns a middleware that recovers from panics, turning them
// into 500 responses instead of tearing down the event loop.
func Recovery() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = ctx.String(500, "Internal Server Error")
				}
			}()

			return next.Serve(ctx)
		})
	}
}

// CompressConfig holds configuration for the Compress middleware.
type CompressConfig struct {
	// Level specifies the compression level (1-9 for gzip, 0-11 for brotli)
	Level int
	// MinSize specifies the minimum response size to compress (default: 1024 bytes)
	MinSize int
}

// Compress returns a middleware that compresses response bodies with
// brotli or gzip, whichever the client advertises.
func Compress() Middleware {
	return CompressWithConfig(CompressConfig{Level: 6, MinSize: 1024})
}

// CompressWithConfig returns a compression middleware with custom
// configuration.
func CompressWithConfig(config CompressConfig) Middleware {
	if config.MinSize == 0 {
		config.MinSize = 1024
	}
	if config.Level == 0 {
		config.Level = 6
	}

	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *Context) error {
			acceptEncoding := ctx.Header("Accept-Encoding")
			supportsBrotli := strings.Contains(acceptEncoding, "br")
			supportsGzip := strings.Contains(acceptEncoding, "gzip")

			if !supportsBrotli && !supportsGzip {
				return next.Serve(ctx)
			}

			err := next.Serve(ctx)
			if err != nil || len(ctx.body) < config.MinSize {
				return err
			}

			var compressed bytes.Buffer
			var encoding string

			if supportsBrotli {
				writer := brotli.NewWriterLevel(&compressed, config.Level)
				if _, werr := writer.Write(ctx.body); werr != nil {
					_ = writer.Close()
					return nil
				}
				_ = writer.Close()
				encoding = "br"
			} else {
				writer, _ := gzip.NewWriterLevel(&compressed, config.Level)
				if _, werr := writer.Write(ctx.body); werr != nil {
					_ = writer.Close()
					return nil
				}
				_ = writer.Close()
				encoding = "gzip"
			}

			// Keep the original when compression does not help.
			if compressed.Len() == 0 || compressed.Len() >= len(ctx.body) {
				return nil
			}

			ctx.SetHeader("Content-Encoding", encoding)
			ctx.SetHeader("Vary", "Accept-Encoding")
			ctx.body = compressed.Bytes()
			return nil
		})
	}
}

// AuthConfig holds configuration for the Auth middleware.
type AuthConfig struct {
	// Secret is the HMAC key used to verify bearer tokens.
	Secret string
	// SkipPaths lists paths that bypass authentication.
	SkipPaths []string
}

// Auth returns a middleware that requires a valid HS256 bearer token on
// every request. The token's subject claim is stored on the context under
// "auth-subject".
func Auth(config AuthConfig) Middleware {
	skipMap := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipMap[path] = true
	}

	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *Context) error {
			if skipMap[ctx.Path()] {
				return next.Serve(ctx)
			}

			header := ctx.Header("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return NewHTTPError(401, "missing bearer token")
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(config.Secret), nil
			})
			if err != nil || !token.Valid {
				return NewHTTPError(401, "invalid token")
			}

			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				if sub, _ := claims.GetSubject(); sub != "" {
					ctx.Set("auth-subject", sub)
				}
			}

			return next.Serve(ctx)
		})
	}
}

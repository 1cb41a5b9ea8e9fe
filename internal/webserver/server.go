package webserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/talkincode/catalog/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AdminServer admin web server
type AdminServer struct {
	root   *echo.Echo
	api    *echo.Group
	config *config.AppConfig
}

// NewAdminServer builds the echo instance, images are served from imagesDir
func NewAdminServer(cfg *config.AppConfig, imagesDir string) *AdminServer {
	s := &AdminServer{root: echo.New(), config: cfg}
	s.root.HideBanner = true
	s.root.HidePort = true
	s.root.JSONSerializer = &jsoniterSerializer{}
	s.root.Validator = NewValidator()

	s.root.Use(middleware.BodyLimit(strconv.FormatInt(cfg.MaxUploadBytes(), 10) + "B"))
	s.root.Use(requestLogger())
	s.root.Use(middleware.Recover())

	s.root.Static("/images", imagesDir)
	s.root.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	s.api = s.root.Group(cfg.Web.Prefix)
	if cfg.Web.Secret != "" {
		s.api.Use(echojwt.WithConfig(echojwt.Config{
			SigningKey: []byte(cfg.Web.Secret),
			Skipper:    readOnly,
		}))
	}
	return s
}

// readOnly requests skip jwt validation
func readOnly(c echo.Context) bool {
	switch c.Request().Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				zap.L().Warn("http request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			zap.L().Debug("http request", fields...)
			return nil
		},
	})
}

func (s *AdminServer) Echo() *echo.Echo { return s.root }

func (s *AdminServer) ApiGET(path string, h echo.HandlerFunc) { s.api.GET(path, h) }

func (s *AdminServer) ApiPOST(path string, h echo.HandlerFunc) { s.api.POST(path, h) }

func (s *AdminServer) ApiPUT(path string, h echo.HandlerFunc) { s.api.PUT(path, h) }

func (s *AdminServer) ApiDELETE(path string, h echo.HandlerFunc) { s.api.DELETE(path, h) }

// Start blocks until the server stops, a graceful shutdown returns nil
func (s *AdminServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Web.Host, s.config.Web.Port)
	zap.S().Infof("catalog web server listening on %s", addr)
	if err := s.root.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *AdminServer) Shutdown(ctx context.Context) error {
	timeout := s.config.Web.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.root.Shutdown(ctx)
}

type jsoniterSerializer struct{}

func (jsoniterSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (jsoniterSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := json.NewDecoder(c.Request().Body).Decode(i)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return nil
}

package handler

import (
	"hzspace/internal/app/space"
	"hzspace/internal/configs"
	"hzspace/internal/pkg/auth/media"
	"hzspace/internal/pkg/metrics"
)

type AppDeps struct {
	Hub     *space.Hub
	Config  *configs.AppConfig
	Media   *media.Issuer
	Metrics *metrics.Recorder
}

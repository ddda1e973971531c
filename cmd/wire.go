//go:build wireinject
// +build wireinject

package cmd

import (
	"context"

	"github.com/google/wire"

	"github.com/webitel/video_converter/config"
	"github.com/webitel/video_converter/infra/sysmon"
	"github.com/webitel/video_converter/internal/handler"
	"github.com/webitel/video_converter/internal/service"
	"github.com/webitel/video_converter/internal/store"
	"github.com/webitel/video_converter/internal/utils"
)

var wireAppResourceSet = wire.NewSet(
	log, httpSrv, setupCluster, setupSQL, sysMonitor,
)

var wireAppHandlersSet = wire.NewSet(
	store.NewJobStore,
	store.NewJobCache,

	utils.NewFFmpeg,

	service.NewScheduler,
	wire.Bind(new(service.JobStore), new(*store.JobStore)),
	wire.Bind(new(service.Monitor), new(*sysmon.Monitor)),
	wire.Bind(new(service.Runner), new(*utils.FFmpeg)),

	handler.NewConverter, wire.Bind(new(handler.SchedulerService), new(*service.Scheduler)),
)

func initAppResources(context.Context, *config.Config) (*resources, func(), error) {
	wire.Build(wireAppResourceSet, wire.Struct(new(resources),
		"log", "store", "httpSrv", "cluster", "monitor", "cfg"))

	return &resources{}, nil, nil
}

func initAppHandlers(context.Context, *resources) (*handlers, error) {
	wire.Build(wireAppHandlersSet,
		wire.FieldsOf(new(*resources), "log", "httpSrv", "monitor", "cfg", "store"),
		wire.Struct(new(handlers), "converter"),
	)

	return &handlers{}, nil
}

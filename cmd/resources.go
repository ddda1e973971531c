package cmd

import (
	"context"

	"github.com/webitel/wlog"

	"github.com/webitel/video_converter/config"
	"github.com/webitel/video_converter/infra/consul"
	"github.com/webitel/video_converter/infra/httpsrv"
	"github.com/webitel/video_converter/infra/sql"
	"github.com/webitel/video_converter/infra/sql/pgsql"
	"github.com/webitel/video_converter/infra/sysmon"
	"github.com/webitel/video_converter/internal/handler"
	"github.com/webitel/video_converter/internal/model"
)

type handlers struct {
	converter *handler.Converter
}

type resources struct {
	log     *wlog.Logger
	httpSrv *httpsrv.Server
	cluster *consul.Cluster
	store   sql.Store
	monitor *sysmon.Monitor
	cfg     *config.Config
}

func httpSrv(cfg *config.Config, l *wlog.Logger) (*httpsrv.Server, func(), error) {
	s, err := httpsrv.New(cfg.HTTP.Address, l)
	if err != nil {
		return nil, nil, err
	}

	return s, func() {
		if err := s.Shutdown(); err != nil {
			l.Error(err.Error(), wlog.Err(err))
		}
	}, nil
}

func log(cfg *config.Config) (*wlog.Logger, func(), error) {
	logSettings := cfg.Log

	if !logSettings.Console && !logSettings.Otel && len(logSettings.File) == 0 {
		logSettings.Console = true
	}

	logConfig := &wlog.LoggerConfiguration{
		EnableConsole: logSettings.Console,
		ConsoleJson:   false,
		ConsoleLevel:  logSettings.Lvl,
	}

	if logSettings.File != "" {
		logConfig.FileLocation = logSettings.File
		logConfig.EnableFile = true
		logConfig.FileJson = true
		logConfig.FileLevel = logSettings.Lvl
	}

	l := wlog.NewLogger(logConfig)
	wlog.RedirectStdLog(l)
	wlog.InitGlobalLogger(l)

	exit := func() {
	}

	return l, exit, nil
}

func setupCluster(cfg *config.Config, srv *httpsrv.Server, l *wlog.Logger) (*consul.Cluster, func(), error) {
	c := consul.NewCluster(model.ServiceName, cfg.Service.Consul, nil, l)
	host := srv.Host()

	err := c.Start(cfg.Service.ID, host, srv.Port())
	if err != nil {
		return nil, nil, err
	}

	return c, func() {
		c.Stop()
	}, nil
}

func setupSQL(ctx context.Context, log *wlog.Logger, cfg *config.Config) (sql.Store, func(), error) {
	s, err := pgsql.New(ctx, cfg.SQLSettings.DSN, log)
	if err != nil {
		return nil, nil, err
	}

	return s, func() {
		err = s.Close()
		if err != nil {
			wlog.Error(err.Error(), wlog.Err(err))
		}
	}, nil
}

func sysMonitor(ctx context.Context, cfg *config.Config, log *wlog.Logger) (*sysmon.Monitor, func(), error) {
	m := sysmon.NewMonitor(ctx, cfg.Limits.SampleInterval, cfg.Limits.DiskPath, log)

	if err := m.Start(); err != nil {
		return nil, nil, err
	}

	return m, func() {
		m.Stop()
	}, nil
}

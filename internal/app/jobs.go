package app

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// StartJobs starts the cron scheduler. The orphan image sweep is registered
// when upload.sweep_cron is set.
func (a *Application) StartJobs() error {
	loc, err := time.LoadLocation(a.appConfig.System.Location)
	if err != nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	if expr := a.appConfig.Upload.SweepCron; expr != "" {
		if _, err := a.sched.AddFunc(expr, func() {
			go a.SchedSweepImagesTask()
		}); err != nil {
			return errors.Wrapf(err, "init sweep job %q", expr)
		}
		zap.S().Infof("image sweep scheduled: %s", expr)
	}

	a.sched.Start()
	return nil
}

// SchedSweepImagesTask orphan image cleanup
func (a *Application) SchedSweepImagesTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := a.SweepImages(ctx); err != nil {
		zap.L().Error("image sweep failed", zap.Error(err))
	}
}

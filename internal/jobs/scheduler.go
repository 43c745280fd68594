// Package jobs menjalankan sweep rekonsiliasi berkala sebagai task terjadwal
// eksplisit: tiap job punya goroutine + ticker sendiri, run dieksekusi inline
// di loop ticker sehingga run yang lambat tidak pernah overlap dengan run
// berikutnya (tick yang kelewat di-drop oleh ticker), dan semuanya berhenti
// rapi saat context dibatalkan.
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

type Scheduler struct {
	Log  *zap.Logger
	jobs []Job
}

func (s *Scheduler) Add(j Job) { s.jobs = append(s.jobs, j) }

func (s *Scheduler) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, j := range s.jobs {
		j := j
		log := s.Log.With(zap.String("job", j.Name))
		g.Go(func() error {
			t := time.NewTicker(j.Every)
			defer t.Stop()
			log.Info("job start", zap.Duration("every", j.Every))
			for {
				select {
				case <-ctx.Done():
					log.Info("job stop")
					return nil
				case <-t.C:
					start := time.Now()
					if err := j.Run(ctx); err != nil {
						log.Error("job run", zap.Error(err))
						continue
					}
					log.Debug("job run ok", zap.Duration("took", time.Since(start)))
				}
			}
		})
	}
	return g.Wait()
}

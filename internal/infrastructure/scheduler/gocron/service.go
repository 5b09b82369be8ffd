package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/duplexpay/duplexd/internal/core/ports"
)

type service struct {
	scheduler *gocron.Scheduler
}

func NewScheduler() ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	return &service{svc}
}

func (s *service) Start() {
	s.scheduler.StartAsync()
}

func (s *service) Stop() {
	s.scheduler.Stop()
}

// ScheduleAt runs task once when the wall clock reaches the given unix
// time. Dispute windows use this to trigger follow-up calls the moment
// they become available.
func (s *service) ScheduleAt(at int64, task func()) error {
	delay := at - time.Now().Unix()
	if delay <= 0 {
		delay = 1
	}
	_, err := s.scheduler.Every(int(delay)).Seconds().WaitForSchedule().LimitRunsTo(1).Do(task)
	if err != nil {
		return fmt.Errorf("failed to schedule task: %w", err)
	}
	return nil
}

package ports

type SchedulerService interface {
	Start()
	Stop()
	// ScheduleAt runs task once when the clock reaches the given unix
	// time; a time in the past runs the task immediately.
	ScheduleAt(at int64, task func()) error
}

package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrInvalidSchedule is returned when a cron expression does not parse
	ErrInvalidSchedule = errors.New("invalid cron schedule")

	// ErrJobExists is returned when a job name is registered twice
	ErrJobExists = errors.New("job already registered")

	// ErrJobNotFound is returned when a job is not found
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyRunning is returned when a run is requested while the previous one is in flight
	ErrJobAlreadyRunning = errors.New("job already running")

	// ErrJobFailed wraps a panic raised by a job
	ErrJobFailed = errors.New("scheduled job failed")
)

package pipeline

import "context"

// JobName identifies the scheduled pipeline run in logs and metrics.
const JobName = "ltv-pipeline"

// Job adapts a Runner to the cron registry.
type Job struct {
	runner *Runner
}

func NewJob(runner *Runner) *Job {
	return &Job{runner: runner}
}

func (j *Job) Name() string { return JobName }

func (j *Job) Run(ctx context.Context) error {
	_, err := j.runner.Run(ctx)
	return err
}

package scheduler

import (
	"fmt"

	"github.com/gammadia/jeeves/namegen"
)

// Task is anything that can sit in the queue.
type Task interface {
	FQN() string
}

// Job is the buildable kind of task, the only one eligible for eager
// provisioning.
type Job struct {
	Name string

	id namegen.ID
}

func NewJob(name string) *Job {
	return &Job{Name: name, id: namegen.Get()}
}

func (j *Job) FQN() string {
	if j.id == "" {
		return j.Name
	}
	return fmt.Sprintf("%s-%s", j.Name, j.id)
}

// Maintenance tasks run on whatever node is around and never get a worker of
// their own.
type Maintenance struct {
	Name string
}

func (m *Maintenance) FQN() string {
	return fmt.Sprintf("maintenance-%s", m.Name)
}

package main

import (
	"bytes"
	"fmt"
	"os"
	"regexp"

	schedulerpkg "github.com/gammadia/jeeves/scheduler"
	"gopkg.in/yaml.v3"
)

const (
	kindJob         = "job"
	kindMaintenance = "maintenance"
)

var nameRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]+$`)

// Jobsfile lists the tasks queued when the server starts.
type Jobsfile struct {
	Jobs []JobsfileEntry `yaml:"jobs"`
}

type JobsfileEntry struct {
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"`
	Requirement string `yaml:"requirement"`
}

func readJobsfile(p string) (*Jobsfile, error) {
	content, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs file: %w", err)
	}

	var jobsfile Jobsfile
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&jobsfile); err != nil {
		return nil, fmt.Errorf("failed to parse jobs file: %w", err)
	}

	if err := jobsfile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid jobs file: %w", err)
	}
	return &jobsfile, nil
}

func (jobsfile Jobsfile) Validate() error {
	for i, entry := range jobsfile.Jobs {
		if !nameRegex.MatchString(entry.Name) {
			return fmt.Errorf("jobs[%d].name must be a valid identifier", i)
		}
		switch entry.Kind {
		case "", kindJob, kindMaintenance:
		default:
			return fmt.Errorf("jobs[%d].kind must be '%s' or '%s'", i, kindJob, kindMaintenance)
		}
	}
	return nil
}

func (entry JobsfileEntry) Task() schedulerpkg.Task {
	if entry.Kind == kindMaintenance {
		return &schedulerpkg.Maintenance{Name: entry.Name}
	}
	return schedulerpkg.NewJob(entry.Name)
}

// scheduleJobsfile queues every entry of the jobs file at p, if any.
func scheduleJobsfile(queue *schedulerpkg.Queue, p string) ([]*schedulerpkg.Item, error) {
	if p == "" {
		return nil, nil
	}

	jobsfile, err := readJobsfile(p)
	if err != nil {
		return nil, err
	}

	items := make([]*schedulerpkg.Item, 0, len(jobsfile.Jobs))
	for _, entry := range jobsfile.Jobs {
		items = append(items, queue.Schedule(entry.Task(), schedulerpkg.Requirement(entry.Requirement)))
	}
	return items, nil
}

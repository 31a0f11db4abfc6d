package board

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/jevenson76/atl-dashboards/domain"
	"github.com/jevenson76/atl-dashboards/listapi"
)

// TaskSource reads task records from the list service. *listapi.Client
// satisfies it.
type TaskSource interface {
	TasksDescriptor(d listapi.Descriptor) listapi.Descriptor
	FetchCollection(ctx context.Context, d listapi.Descriptor) ([]listapi.Record, error)
}

// Loader turns list records into tasks for one assignee.
type Loader struct {
	source TaskSource
	logger *log.Logger
}

func NewLoader(source TaskSource, logger *log.Logger) *Loader {
	if source == nil {
		panic("board.NewLoader: task source is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Loader{source: source, logger: logger}
}

// Descriptor builds the task read for owner. An empty owner reads every task.
func (l *Loader) Descriptor(owner string) listapi.Descriptor {
	d := l.source.TasksDescriptor(listapi.Descriptor{})
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return d
	}
	d.Filter = fmt.Sprintf("Owner/Title eq '%s'", strings.ReplaceAll(owner, "'", "''"))
	d.Expand = []string{"Owner"}
	sel := make([]string, 0, len(d.Select))
	for _, f := range d.Select {
		if f == "Owner" {
			f = "Owner/Title"
		}
		sel = append(sel, f)
	}
	d.Select = sel
	return d
}

// Load reads and maps the tasks assigned to owner.
func (l *Loader) Load(ctx context.Context, owner string) ([]domain.Task, error) {
	records, err := l.source.FetchCollection(ctx, l.Descriptor(owner))
	if err != nil {
		return nil, err
	}
	rows, err := listapi.Decode[domain.TaskRecord](records)
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.ToTask())
	}
	l.logger.WithFields(log.Fields{"owner": owner, "tasks": len(tasks)}).Info("tasks loaded")
	return tasks, nil
}

package service

import (
	"context"
	"fmt"

	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
)

// viewBuilder denormalizes projects, members, tasks and comments into the
// nested read model. All lookups are batched per call.
type viewBuilder struct {
	members  ports.MemberRepository
	tasks    ports.TaskRepository
	comments ports.CommentRepository
}

func (b viewBuilder) projects(ctx context.Context, projects []*domain.Project) ([]*domain.ProjectView, error) {
	out := make([]*domain.ProjectView, 0, len(projects))
	if len(projects) == 0 {
		return out, nil
	}

	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}

	members, err := b.members.ListByProjects(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	tasks, err := b.tasks.ListByProjects(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	taskViews, err := b.tasksWithComments(ctx, tasks)
	if err != nil {
		return nil, err
	}

	membersByProject := make(map[string][]domain.ProjectMember, len(projects))
	for _, m := range members {
		membersByProject[m.ProjectID] = append(membersByProject[m.ProjectID], *m)
	}
	tasksByProject := make(map[string][]domain.TaskView, len(projects))
	for _, tv := range taskViews {
		tasksByProject[tv.ProjectID] = append(tasksByProject[tv.ProjectID], tv)
	}

	for _, p := range projects {
		v := &domain.ProjectView{
			Project: *p,
			Members: membersByProject[p.ID],
			Tasks:   tasksByProject[p.ID],
		}
		if v.Members == nil {
			v.Members = []domain.ProjectMember{}
		}
		if v.Tasks == nil {
			v.Tasks = []domain.TaskView{}
		}
		out = append(out, v)
	}
	return out, nil
}

func (b viewBuilder) tasksWithComments(ctx context.Context, tasks []*domain.Task) ([]domain.TaskView, error) {
	views := make([]domain.TaskView, 0, len(tasks))
	if len(tasks) == 0 {
		return views, nil
	}

	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	comments, err := b.comments.ListByTasks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	byTask := make(map[string][]domain.Comment, len(tasks))
	for _, c := range comments {
		byTask[c.TaskID] = append(byTask[c.TaskID], *c)
	}

	for _, t := range tasks {
		cs := byTask[t.ID]
		if cs == nil {
			cs = []domain.Comment{}
		}
		views = append(views, domain.TaskView{Task: *t, Comments: cs})
	}
	return views, nil
}

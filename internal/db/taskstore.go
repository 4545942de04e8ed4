package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/lifecycle"
	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/model"
)

const taskColumns = `id, poster_id, status, title, category, description, salary, exposure_plan,
	img_urls, contact_info, location, helpers, submit_info, time_trail`

// TaskStore persists tasks with their embedded helper list and timestamp trail.
// Status changes go through ApplyTransition, which compare-and-swaps on the
// status the caller read.
type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) Get(ctx context.Context, taskId model.TaskId) (*model.Task, error) {
	row := querierFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, string(taskId))
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", taskId, lifecycle.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskId, err)
	}
	return task, nil
}

func (s *TaskStore) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	blobs, err := taskBlobs(task)
	if err != nil {
		return nil, err
	}
	_, err = querierFrom(ctx, s.db).ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		string(task.ID), string(task.PosterId), string(task.Status),
		task.Title, task.Category, task.Description, task.Salary, task.ExposurePlan,
		blobs.imgUrls, blobs.contactInfo, blobs.location, blobs.helpers, blobs.submitInfo, blobs.timeTrail)
	if err != nil {
		return nil, fmt.Errorf("insert task %s: %w", task.ID, err)
	}
	return task, nil
}

// ApplyTransition writes the whole task back guarded by the status it had when
// the engine read it. Zero rows affected means another transition won the race.
func (s *TaskStore) ApplyTransition(ctx context.Context, task *model.Task, expected model.Status) error {
	blobs, err := taskBlobs(task)
	if err != nil {
		return err
	}
	result, err := querierFrom(ctx, s.db).ExecContext(ctx,
		`UPDATE tasks
		 SET status = $1, title = $2, category = $3, description = $4, salary = $5,
		     exposure_plan = $6, img_urls = $7, contact_info = $8, location = $9,
		     helpers = $10, submit_info = $11, time_trail = $12
		 WHERE id = $13 AND status = $14`,
		string(task.Status), task.Title, task.Category, task.Description, task.Salary,
		task.ExposurePlan, blobs.imgUrls, blobs.contactInfo, blobs.location,
		blobs.helpers, blobs.submitInfo, blobs.timeTrail,
		string(task.ID), string(expected))
	if err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("task %s no longer %s: %w", task.ID, expected, lifecycle.ErrorConflict)
	}
	return nil
}

func (s *TaskStore) ListExpiredCandidates(ctx context.Context, olderThan time.Time) ([]model.Task, error) {
	rows, err := querierFrom(ctx, s.db).QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE status = $1 AND (time_trail->>'publishedAt')::timestamptz < $2`,
		string(model.STATUS_PUBLISHED), olderThan)
	if err != nil {
		return nil, fmt.Errorf("list expired candidates: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired candidate: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

type taskJSON struct {
	imgUrls     []byte
	contactInfo []byte
	location    []byte
	helpers     []byte
	submitInfo  []byte
	timeTrail   []byte
}

func taskBlobs(task *model.Task) (*taskJSON, error) {
	blobs := &taskJSON{}
	for _, field := range []struct {
		name string
		src  any
		dst  *[]byte
	}{
		{"img_urls", task.ImgUrls, &blobs.imgUrls},
		{"contact_info", task.ContactInfo, &blobs.contactInfo},
		{"location", task.Location, &blobs.location},
		{"helpers", task.Helpers, &blobs.helpers},
		{"submit_info", task.SubmitInfo, &blobs.submitInfo},
		{"time_trail", task.Time, &blobs.timeTrail},
	} {
		raw, err := json.Marshal(field.src)
		if err != nil {
			return nil, fmt.Errorf("marshal %s for task %s: %w", field.name, task.ID, err)
		}
		*field.dst = raw
	}
	return blobs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*model.Task, error) {
	var task model.Task
	var imgUrls, contactInfo, location, helpers, submitInfo, timeTrail []byte
	err := row.Scan(&task.ID, &task.PosterId, &task.Status, &task.Title, &task.Category,
		&task.Description, &task.Salary, &task.ExposurePlan,
		&imgUrls, &contactInfo, &location, &helpers, &submitInfo, &timeTrail)
	if err != nil {
		return nil, err
	}
	for _, field := range []struct {
		raw []byte
		dst any
	}{
		{imgUrls, &task.ImgUrls},
		{contactInfo, &task.ContactInfo},
		{location, &task.Location},
		{helpers, &task.Helpers},
		{submitInfo, &task.SubmitInfo},
		{timeTrail, &task.Time},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dst); err != nil {
			return nil, fmt.Errorf("unmarshal task %s column: %w", task.ID, err)
		}
	}
	return &task, nil
}

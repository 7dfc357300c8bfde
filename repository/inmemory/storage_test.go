package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"taskmanager/internal/domain/errors"
	"taskmanager/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(username, email string) *models.User {
	return &models.User{
		Username: username,
		Email:    email,
		Password: "hashed-password",
	}
}

func newTask(userID, title string, deadline time.Time) *models.Task {
	return &models.Task{
		Title:       title,
		Description: "description of " + title,
		Priority:    "Low",
		Deadline:    deadline,
		UserID:      userID,
	}
}

func TestCreateUser(t *testing.T) {
	tests := []struct {
		name string
		seed []*models.User
		user *models.User
		want error
	}{
		{
			name: "new user",
			user: newUser("alice", "alice@example.com"),
			want: nil,
		},
		{
			name: "duplicate email",
			seed: []*models.User{newUser("alice", "alice@example.com")},
			user: newUser("bob", "alice@example.com"),
			want: errors.ErrEmailTaken,
		},
		{
			name: "duplicate username",
			seed: []*models.User{newUser("alice", "alice@example.com")},
			user: newUser("alice", "other@example.com"),
			want: errors.ErrUsernameTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStorage()
			ctx := context.Background()
			for _, u := range tt.seed {
				require.NoError(t, s.CreateUser(ctx, u))
			}

			err := s.CreateUser(ctx, tt.user)
			assert.Equal(t, tt.want, err)
			if tt.want == nil {
				assert.NotEmpty(t, tt.user.ID)
				assert.False(t, tt.user.CreatedAt.IsZero())
			}
		})
	}
}

func TestGetUserLookups(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	user := newUser("alice", "alice@example.com")
	require.NoError(t, s.CreateUser(ctx, user))

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	assert.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byUsername, err := s.GetUserByUsername(ctx, "alice")
	assert.NoError(t, err)
	assert.Equal(t, user.ID, byUsername.ID)

	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.Equal(t, errors.ErrUserNotFound, err)

	_, err = s.GetUserByUsername(ctx, "nobody")
	assert.Equal(t, errors.ErrUserNotFound, err)
}

func TestTaskOwnership(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	deadline := time.Now().Add(24 * time.Hour)

	task := newTask("user1", "A", deadline)
	require.NoError(t, s.CreateTask(ctx, task))
	require.NotEmpty(t, task.ID)

	owned, err := s.GetTaskByID(ctx, task.ID, "user1")
	assert.NoError(t, err)
	assert.Equal(t, "user1", owned.UserID)

	// another user's lookup is the same miss as a nonexistent id
	_, foreignErr := s.GetTaskByID(ctx, task.ID, "user2")
	_, missingErr := s.GetTaskByID(ctx, "nonexistent", "user1")
	assert.Equal(t, errors.ErrTaskNotFound, foreignErr)
	assert.Equal(t, errors.ErrTaskNotFound, missingErr)
	assert.Equal(t, foreignErr, missingErr)
}

func TestUpdateTaskPreservesOwner(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	task := newTask("user1", "A", time.Now().Add(24*time.Hour))
	require.NoError(t, s.CreateTask(ctx, task))

	updated := *task
	updated.Title = "B"
	require.NoError(t, s.UpdateTask(ctx, task.ID, &updated))

	got, err := s.GetTaskByID(ctx, task.ID, "user1")
	require.NoError(t, err)
	assert.Equal(t, "B", got.Title)
	assert.Equal(t, "user1", got.UserID)

	assert.Equal(t, errors.ErrTaskNotFound, s.UpdateTask(ctx, "nonexistent", &updated))
}

func TestDeleteTask(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	task := newTask("user1", "A", time.Now().Add(24*time.Hour))
	require.NoError(t, s.CreateTask(ctx, task))

	assert.NoError(t, s.DeleteTask(ctx, task.ID))

	_, err := s.GetTaskByID(ctx, task.ID, "user1")
	assert.Equal(t, errors.ErrTaskNotFound, err)

	assert.Equal(t, errors.ErrTaskNotFound, s.DeleteTask(ctx, task.ID))
}

func TestGetCompletedTasks(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	deadline := time.Now().Add(24 * time.Hour)

	done := newTask("user1", "done", deadline)
	done.Completed = true
	require.NoError(t, s.CreateTask(ctx, done))

	pending := newTask("user1", "pending", deadline)
	require.NoError(t, s.CreateTask(ctx, pending))

	foreign := newTask("user2", "foreign", deadline)
	foreign.Completed = true
	require.NoError(t, s.CreateTask(ctx, foreign))

	tasks, err := s.GetCompletedTasks(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "done", tasks[0].Title)
}

func TestGetTasksFilters(t *testing.T) {
	completed := true
	notCompleted := false

	now := time.Now()
	// a moment that is inside today's window but already in the past,
	// so it never leaks into the upcoming filter
	earlierToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 1, 0, now.Location())
	tomorrow := now.Add(24 * time.Hour)
	lastWeek := now.Add(-7 * 24 * time.Hour)

	seed := func(s *Storage) {
		ctx := context.Background()

		high := newTask("user1", "high", tomorrow)
		high.Priority = "High"
		require.NoError(t, s.CreateTask(ctx, high))

		done := newTask("user1", "done", lastWeek)
		done.Completed = true
		require.NoError(t, s.CreateTask(ctx, done))

		today := newTask("user1", "today", earlierToday)
		require.NoError(t, s.CreateTask(ctx, today))

		foreign := newTask("user2", "foreign", tomorrow)
		require.NoError(t, s.CreateTask(ctx, foreign))
	}

	tests := []struct {
		name   string
		filter models.TaskFilter
		want   struct {
			titles []string
			total  int
		}
	}{
		{
			name:   "no filter returns all owned tasks",
			filter: models.TaskFilter{},
			want: struct {
				titles []string
				total  int
			}{
				titles: []string{"high", "done", "today"},
				total:  3,
			},
		},
		{
			name:   "priority filter",
			filter: models.TaskFilter{Priority: "High"},
			want: struct {
				titles []string
				total  int
			}{
				titles: []string{"high"},
				total:  1,
			},
		},
		{
			name:   "completed filter",
			filter: models.TaskFilter{Completed: &completed},
			want: struct {
				titles []string
				total  int
			}{
				titles: []string{"done"},
				total:  1,
			},
		},
		{
			name:   "not completed filter",
			filter: models.TaskFilter{Completed: &notCompleted},
			want: struct {
				titles []string
				total  int
			}{
				titles: []string{"high", "today"},
				total:  2,
			},
		},
		{
			name:   "today window",
			filter: models.TaskFilter{FilterBy: models.FilterToday},
			want: struct {
				titles []string
				total  int
			}{
				titles: []string{"today"},
				total:  1,
			},
		},
		{
			name:   "upcoming",
			filter: models.TaskFilter{FilterBy: models.FilterUpcoming},
			want: struct {
				titles []string
				total  int
			}{
				titles: []string{"high"},
				total:  1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStorage()
			seed(s)

			tasks, total, err := s.GetTasks(context.Background(), "user1", tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want.total, total)

			titles := make([]string, 0, len(tasks))
			for _, task := range tasks {
				titles = append(titles, task.Title)
			}
			assert.Equal(t, tt.want.titles, titles)
		})
	}
}

func TestGetTasksToday(t *testing.T) {
	// the window covers local midnight through end of day, so noon
	// today is in and noon tomorrow is not
	now := time.Now()
	todayNoon := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, now.Location())

	if now.Hour() >= 23 {
		t.Skip("too close to midnight for a stable today-window test")
	}

	s := NewStorage()
	ctx := context.Background()

	in := newTask("user1", "in-window", todayNoon)
	require.NoError(t, s.CreateTask(ctx, in))

	out := newTask("user1", "out-of-window", todayNoon.Add(24*time.Hour))
	require.NoError(t, s.CreateTask(ctx, out))

	tasks, total, err := s.GetTasks(ctx, "user1", models.TaskFilter{FilterBy: models.FilterToday})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, tasks, 1)
	assert.Equal(t, "in-window", tasks[0].Title)
}

func TestGetTasksPagination(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	deadline := time.Now().Add(24 * time.Hour)

	for i := 0; i < 25; i++ {
		require.NoError(t, s.CreateTask(ctx, newTask("user1", fmt.Sprintf("task-%02d", i), deadline)))
	}

	tests := []struct {
		name   string
		filter models.TaskFilter
		want   struct {
			count int
			first string
			total int
		}
	}{
		{
			name:   "first page",
			filter: models.TaskFilter{Page: 1, Limit: 10},
			want: struct {
				count int
				first string
				total int
			}{
				count: 10,
				first: "task-00",
				total: 25,
			},
		},
		{
			name:   "second page skips exactly limit records",
			filter: models.TaskFilter{Page: 2, Limit: 10},
			want: struct {
				count int
				first string
				total int
			}{
				count: 10,
				first: "task-10",
				total: 25,
			},
		},
		{
			name:   "last page is short",
			filter: models.TaskFilter{Page: 3, Limit: 10},
			want: struct {
				count int
				first string
				total int
			}{
				count: 5,
				first: "task-20",
				total: 25,
			},
		},
		{
			name:   "page past the end is empty",
			filter: models.TaskFilter{Page: 4, Limit: 10},
			want: struct {
				count int
				first string
				total int
			}{
				count: 0,
				total: 25,
			},
		},
		{
			name:   "zero values fall back to defaults",
			filter: models.TaskFilter{},
			want: struct {
				count int
				first string
				total int
			}{
				count: 10,
				first: "task-00",
				total: 25,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, total, err := s.GetTasks(ctx, "user1", tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want.total, total)
			assert.Len(t, tasks, tt.want.count)
			if tt.want.first != "" {
				assert.Equal(t, tt.want.first, tasks[0].Title)
			}
		})
	}

	t.Run("order is stable across repeated calls", func(t *testing.T) {
		first, _, err := s.GetTasks(ctx, "user1", models.TaskFilter{Page: 1, Limit: 25})
		require.NoError(t, err)
		second, _, err := s.GetTasks(ctx, "user1", models.TaskFilter{Page: 1, Limit: 25})
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

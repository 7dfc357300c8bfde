package storage

import (
	"context"
	"sync"
	"time"

	"taskmanager/internal/domain/errors"
	"taskmanager/internal/domain/models"

	"github.com/google/uuid"
)

// Storage is the map-backed fallback used when the database is
// unreachable and by tests. Listing returns tasks in insertion order so
// pagination stays consistent across repeated calls.
type Storage struct {
	mu        sync.RWMutex
	users     map[string]models.User
	tasks     map[string]models.Task
	taskOrder []string
}

func NewStorage() *Storage {
	return &Storage{
		users: make(map[string]models.User),
		tasks: make(map[string]models.Task),
	}
}

func (s *Storage) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return errors.ErrEmailTaken
		}
		if existing.Username == user.Username {
			return errors.ErrUsernameTaken
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (s *Storage) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (s *Storage) CreateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task.ID = uuid.New().String()
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	s.tasks[task.ID] = *task
	s.taskOrder = append(s.taskOrder, task.ID)
	return nil
}

func (s *Storage) GetTaskByID(_ context.Context, id, userID string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, exists := s.tasks[id]
	if !exists || task.UserID != userID {
		return nil, errors.ErrTaskNotFound
	}
	return &task, nil
}

func (s *Storage) GetTasks(_ context.Context, userID string, filter models.TaskFilter) ([]models.Task, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []models.Task{}
	for _, id := range s.taskOrder {
		task, exists := s.tasks[id]
		if !exists || task.UserID != userID {
			continue
		}
		if matchesFilter(task, filter) {
			matched = append(matched, task)
		}
	}

	total := len(matched)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}

	offset := (page - 1) * limit
	if offset >= total {
		return []models.Task{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func matchesFilter(task models.Task, filter models.TaskFilter) bool {
	if filter.Priority != "" && task.Priority != filter.Priority {
		return false
	}
	if filter.Completed != nil && task.Completed != *filter.Completed {
		return false
	}
	switch filter.FilterBy {
	case models.FilterToday:
		now := time.Now()
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		end := start.Add(24*time.Hour - time.Nanosecond)
		if task.Deadline.Before(start) || task.Deadline.After(end) {
			return false
		}
	case models.FilterUpcoming:
		if task.Deadline.Before(time.Now()) {
			return false
		}
	}
	return true
}

func (s *Storage) GetCompletedTasks(_ context.Context, userID string) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := []models.Task{}
	for _, id := range s.taskOrder {
		task, exists := s.tasks[id]
		if exists && task.UserID == userID && task.Completed {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (s *Storage) UpdateTask(_ context.Context, id string, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[id]; !exists {
		return errors.ErrTaskNotFound
	}
	task.ID = id
	task.UpdatedAt = time.Now()
	s.tasks[id] = *task
	return nil
}

func (s *Storage) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[id]; !exists {
		return errors.ErrTaskNotFound
	}
	delete(s.tasks, id)
	for i, tid := range s.taskOrder {
		if tid == id {
			s.taskOrder = append(s.taskOrder[:i], s.taskOrder[i+1:]...)
			break
		}
	}
	return nil
}

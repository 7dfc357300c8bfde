package db

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"taskmanager/internal/domain/errors"
	"taskmanager/internal/domain/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const queryTimeout = 15 * time.Second

type Storage struct {
	// TODO: move to pgxpool.Pool; a single connection serializes
	// queries and reports "conn busy" under parallel requests
	conn                  *pgx.Conn
	prepCreateTask        string
	prepGetTaskByID       string
	prepGetCompleted      string
	prepUpdateTask        string
	prepDeleteTask        string
	prepCreateUser        string
	prepGetUserByEmail    string
	prepGetUserByUsername string
	deleteQueue           chan struct{}
}

func NewStorage(connStr string) (*Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Println("[ERROR] failed to connect to the database:", err)
		return nil, err
	}

	s := &Storage{
		conn:                  conn,
		prepCreateTask:        `INSERT INTO tasks (id, title, description, priority, deadline, completed, user_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		prepGetTaskByID:       `SELECT id, title, description, priority, deadline, completed, user_id, created_at, updated_at FROM tasks WHERE id = $1 AND user_id = $2 AND deleted = false`,
		prepGetCompleted:      `SELECT id, title, description, priority, deadline, completed, user_id, created_at, updated_at FROM tasks WHERE user_id = $1 AND completed = true AND deleted = false ORDER BY created_at`,
		prepUpdateTask:        `UPDATE tasks SET title = $1, description = $2, priority = $3, deadline = $4, completed = $5, updated_at = $6 WHERE id = $7 AND deleted = false`,
		prepDeleteTask:        `UPDATE tasks SET deleted = true WHERE id = $1 AND deleted = false`,
		prepCreateUser:        `INSERT INTO users (id, username, email, password, created_at) VALUES ($1, $2, $3, $4, $5)`,
		prepGetUserByEmail:    `SELECT id, username, email, password, created_at FROM users WHERE email = $1`,
		prepGetUserByUsername: `SELECT id, username, email, password, created_at FROM users WHERE username = $1`,
		deleteQueue:           make(chan struct{}, 10),
	}
	log.Println("[SUCCESS] database connection established")
	return s, nil
}

func (s *Storage) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	stmt, err := s.conn.Prepare(ctx, "create_user", s.prepCreateUser)
	if err != nil {
		log.Println("[ERROR] failed to prepare create user statement:", err)
		return err
	}
	_, err = s.conn.Exec(ctx, stmt.Name, user.ID, user.Username, user.Email, user.Password, user.CreatedAt)
	if err != nil {
		log.Println("[ERROR] failed to create user:", err)
		return uniqueViolation(err)
	}
	log.Println("[SUCCESS] user created:", user.ID)
	return nil
}

// uniqueViolation maps a duplicate-key failure onto the conflict the
// caller reports. Any other database error passes through untouched.
func uniqueViolation(err error) error {
	pgErr, ok := err.(*pgconn.PgError)
	if !ok || pgErr.Code != "23505" {
		return err
	}
	if strings.Contains(pgErr.ConstraintName, "email") {
		return errors.ErrEmailTaken
	}
	return errors.ErrUsernameTaken
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	stmt, err := s.conn.Prepare(ctx, "get_user_by_email", s.prepGetUserByEmail)
	if err != nil {
		log.Println("[ERROR] failed to prepare get user by email statement:", err)
		return nil, err
	}
	row := s.conn.QueryRow(ctx, stmt.Name, email)
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrUserNotFound
		}
		log.Println("[ERROR] failed to get user by email:", err)
		return nil, err
	}
	return user, nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	stmt, err := s.conn.Prepare(ctx, "get_user_by_username", s.prepGetUserByUsername)
	if err != nil {
		log.Println("[ERROR] failed to prepare get user by username statement:", err)
		return nil, err
	}
	row := s.conn.QueryRow(ctx, stmt.Name, username)
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrUserNotFound
		}
		log.Println("[ERROR] failed to get user by username:", err)
		return nil, err
	}
	return user, nil
}

func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	task.ID = uuid.New().String()
	task.Deleted = false
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	stmt, err := s.conn.Prepare(ctx, "create_task", s.prepCreateTask)
	if err != nil {
		log.Println("[ERROR] failed to prepare create task statement:", err)
		return err
	}
	_, err = s.conn.Exec(ctx, stmt.Name, task.ID, task.Title, task.Description, task.Priority, task.Deadline, task.Completed, task.UserID, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		log.Println("[ERROR] failed to create task:", err)
		return err
	}
	log.Println("[SUCCESS] task created:", task.ID)
	return nil
}

// GetTaskByID is the single ownership predicate: it resolves a task only
// when it exists, is not deleted, and belongs to userID. A miss for any
// of those reasons is the same not-found.
func (s *Storage) GetTaskByID(ctx context.Context, id, userID string) (*models.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.ErrTaskNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	stmt, err := s.conn.Prepare(ctx, "get_task_by_id", s.prepGetTaskByID)
	if err != nil {
		log.Println("[ERROR] failed to prepare get task statement:", err)
		return nil, err
	}
	row := s.conn.QueryRow(ctx, stmt.Name, id, userID)
	task := &models.Task{}
	if err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Priority, &task.Deadline, &task.Completed, &task.UserID, &task.CreatedAt, &task.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrTaskNotFound
		}
		log.Println("[ERROR] failed to get task:", err)
		return nil, err
	}
	return task, nil
}

func (s *Storage) GetTasks(ctx context.Context, userID string, filter models.TaskFilter) ([]models.Task, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where, args := buildTaskFilter(userID, filter)

	countQuery := `SELECT count(*) FROM tasks WHERE ` + where
	var total int
	if err := s.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		log.Println("[ERROR] failed to count tasks:", err)
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}

	listQuery := fmt.Sprintf(
		`SELECT id, title, description, priority, deadline, completed, user_id, created_at, updated_at FROM tasks WHERE %s ORDER BY created_at LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := s.conn.Query(ctx, listQuery, args...)
	if err != nil {
		log.Println("[ERROR] failed to list tasks:", err)
		return nil, 0, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task := models.Task{}
		if err := rows.Scan(&task.ID, &task.Title, &task.Description, &task.Priority, &task.Deadline, &task.Completed, &task.UserID, &task.CreatedAt, &task.UpdatedAt); err != nil {
			log.Println("[ERROR] failed to scan task row:", err)
			return nil, 0, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func buildTaskFilter(userID string, filter models.TaskFilter) (string, []interface{}) {
	clauses := []string{"user_id = $1", "deleted = false"}
	args := []interface{}{userID}

	if filter.Priority != "" {
		args = append(args, filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.Completed != nil {
		args = append(args, *filter.Completed)
		clauses = append(clauses, fmt.Sprintf("completed = $%d", len(args)))
	}
	switch filter.FilterBy {
	case models.FilterToday:
		now := time.Now()
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		end := start.Add(24*time.Hour - time.Nanosecond)
		args = append(args, start)
		clauses = append(clauses, fmt.Sprintf("deadline >= $%d", len(args)))
		args = append(args, end)
		clauses = append(clauses, fmt.Sprintf("deadline <= $%d", len(args)))
	case models.FilterUpcoming:
		args = append(args, time.Now())
		clauses = append(clauses, fmt.Sprintf("deadline >= $%d", len(args)))
	}

	return strings.Join(clauses, " AND "), args
}

func (s *Storage) GetCompletedTasks(ctx context.Context, userID string) ([]models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	stmt, err := s.conn.Prepare(ctx, "get_completed_tasks", s.prepGetCompleted)
	if err != nil {
		log.Println("[ERROR] failed to prepare completed tasks statement:", err)
		return nil, err
	}
	rows, err := s.conn.Query(ctx, stmt.Name, userID)
	if err != nil {
		log.Println("[ERROR] failed to list completed tasks:", err)
		return nil, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task := models.Task{}
		if err := rows.Scan(&task.ID, &task.Title, &task.Description, &task.Priority, &task.Deadline, &task.Completed, &task.UserID, &task.CreatedAt, &task.UpdatedAt); err != nil {
			log.Println("[ERROR] failed to scan task row:", err)
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (s *Storage) UpdateTask(ctx context.Context, id string, task *models.Task) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.ErrTaskNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	task.UpdatedAt = time.Now()
	stmt, err := s.conn.Prepare(ctx, "update_task", s.prepUpdateTask)
	if err != nil {
		log.Println("[ERROR] failed to prepare update task statement:", err)
		return err
	}
	ct, err := s.conn.Exec(ctx, stmt.Name, task.Title, task.Description, task.Priority, task.Deadline, task.Completed, task.UpdatedAt, id)
	if err != nil {
		log.Println("[ERROR] failed to update task:", err)
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrTaskNotFound
	}
	log.Println("[SUCCESS] task updated:", id)
	return nil
}

func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.ErrTaskNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	stmt, err := s.conn.Prepare(ctx, "delete_task_soft", s.prepDeleteTask)
	if err != nil {
		log.Println("[ERROR] failed to prepare delete task statement:", err)
		return err
	}
	ct, err := s.conn.Exec(ctx, stmt.Name, id)
	if err != nil {
		log.Println("[ERROR] failed to flag task as deleted:", err)
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrTaskNotFound
	}
	log.Println("[SUCCESS] task flagged as deleted:", id)
	s.tryEnqueueOrFlush()
	return nil
}

// Soft-deleted rows accumulate in the queue; once it fills up the whole
// flagged set is purged in one transaction.
func (s *Storage) tryEnqueueOrFlush() {
	if s.deleteQueue == nil {
		return
	}
	select {
	case s.deleteQueue <- struct{}{}:
	default:
		s.drainDeleteQueue()
		if affected, err := s.hardDeleteAllFlagged(context.Background()); err != nil {
			log.Println("[ERROR] failed to purge flagged tasks:", err)
		} else if affected > 0 {
			log.Println("[SUCCESS] purged tasks:", affected)
		}
	}
}

func (s *Storage) drainDeleteQueue() {
	if s.deleteQueue == nil {
		return
	}
	for {
		select {
		case <-s.deleteQueue:
		default:
			return
		}
	}
}

func (s *Storage) hardDeleteAllFlagged(ctx context.Context) (int64, error) {
	c, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	tx, err := s.conn.Begin(c)
	if err != nil {
		return 0, err
	}
	ct, err := tx.Exec(c, `DELETE FROM tasks WHERE deleted = true`)
	if err != nil {
		_ = tx.Rollback(c)
		return 0, err
	}
	if err := tx.Commit(c); err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

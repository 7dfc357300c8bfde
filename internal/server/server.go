package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"taskmanager/internal/domain/errors"
	"taskmanager/internal/domain/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"golang.org/x/crypto/bcrypt"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

type TaskRepository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTaskByID(ctx context.Context, id, userID string) (*models.Task, error)
	GetTasks(ctx context.Context, userID string, filter models.TaskFilter) ([]models.Task, int, error)
	GetCompletedTasks(ctx context.Context, userID string) ([]models.Task, error)
	UpdateTask(ctx context.Context, id string, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error
}

type TaskAPI struct {
	httpSrv *http.Server
	users   UserRepository
	tasks   TaskRepository
	cfg     *Config
}

var emailPattern = regexp.MustCompile(`^[a-z0-9]+@[a-z]+\.[a-z]{2,3}$`)

const (
	defaultPage  = 1
	defaultLimit = 10
)

func NewTaskAPI(users UserRepository, tasks TaskRepository, cfg *Config) *TaskAPI {
	if users == nil || tasks == nil {
		return nil
	}
	if cfg == nil {
		cfg = &Config{}
	}

	httpSrv := http.Server{
		Addr: fmt.Sprintf("%s:%d", cfg.Addr, cfg.Port),
	}

	api := TaskAPI{
		httpSrv: &httpSrv,
		users:   users,
		tasks:   tasks,
		cfg:     cfg,
	}

	api.configRoutes()

	return &api
}

func (api *TaskAPI) Start() error {
	if api.httpSrv == nil {
		return errors.ErrInternalServer
	}

	if api.httpSrv.Addr == "" || api.httpSrv.Addr == ":0" {
		api.httpSrv.Addr = ":5000"
	}

	return api.httpSrv.ListenAndServe()
}

func (api *TaskAPI) Shutdown(ctx context.Context) error {
	if api.httpSrv == nil {
		return nil
	}
	return api.httpSrv.Shutdown(ctx)
}

func (api *TaskAPI) configRoutes() {
	router := gin.New()
	router.Use(gin.Logger(), api.Recovery(), cors.Default(), GzipResponseCompress())

	router.NoRoute(func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, errorResponse{Success: false, Message: "route not found"})
	})
	router.NoMethod(func(ctx *gin.Context) {
		ctx.JSON(http.StatusMethodNotAllowed, errorResponse{Success: false, Message: "method not allowed"})
	})

	auth := router.Group("/api/auth")
	{
		auth.POST("/register", api.register)
		auth.POST("/login", api.login)
	}

	tasks := router.Group("/api/tasks")
	tasks.Use(api.AuthRequired())
	{
		tasks.GET("", api.getTasks)
		tasks.GET("/completed", api.getCompletedTasks)
		tasks.GET("/:taskID", api.getTaskByID)
		tasks.POST("", api.createTask)
		tasks.PUT("/:taskID", api.updateTask)
		tasks.DELETE("/:taskID", api.deleteTask)
	}

	api.httpSrv.Handler = router
}

func (api *TaskAPI) register(ctx *gin.Context) {
	var req models.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.respondError(ctx, http.StatusBadRequest, errors.ErrBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		api.respondError(ctx, http.StatusBadRequest, registerValidationError(err))
		return
	}
	if !emailPattern.MatchString(req.Email) {
		api.respondError(ctx, http.StatusBadRequest, errors.ErrInvalidEmail)
		return
	}

	rctx := ctx.Request.Context()

	if existing, err := api.users.GetUserByEmail(rctx, req.Email); err == nil && existing != nil {
		api.respondError(ctx, http.StatusBadRequest, errors.ErrEmailTaken)
		return
	} else if err != nil && err != errors.ErrUserNotFound {
		api.respondError(ctx, http.StatusInternalServerError, errors.ErrInternalServer)
		return
	}

	if existing, err := api.users.GetUserByUsername(rctx, req.Username); err == nil && existing != nil {
		api.respondError(ctx, http.StatusBadRequest, errors.ErrUsernameTaken)
		return
	} else if err != nil && err != errors.ErrUserNotFound {
		api.respondError(ctx, http.StatusInternalServerError, errors.ErrInternalServer)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		// the validator counts runes; a multibyte password can still
		// exceed bcrypt's 72-byte input limit
		if err == bcrypt.ErrPasswordTooLong {
			api.respondError(ctx, http.StatusBadRequest, errors.ErrInvalidPassword)
			return
		}
		api.respondError(ctx, http.StatusInternalServerError, errors.ErrInternalServer)
		return
	}

	user := models.User{
		ID:        uuid.New().String(),
		Username:  req.Username,
		Email:     req.Email,
		Password:  string(hash),
		CreatedAt: time.Now(),
	}

	if err := api.users.CreateUser(rctx, &user); err != nil {
		switch err {
		case errors.ErrEmailTaken, errors.ErrUsernameTaken:
			api.respondError(ctx, http.StatusBadRequest, err)
		default:
			api.respondError(ctx, http.StatusInternalServerError, errors.ErrInternalServer)
		}
		return
	}

	log.Println("[SUCCESS] user registered:", user.ID)
	ctx.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
}

func (api *TaskAPI) login(ctx *gin.Context) {
	var req models.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.respondError(ctx, http.StatusBadRequest, errors.ErrBadRequest)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		api.respondError(ctx, http.StatusBadRequest, errors.ErrMissingFields)
		return
	}

	user, err := api.users.GetUserByEmail(ctx.Request.Context(), req.Email)
	if err != nil {
		// same message as a wrong password so the response does not
		// reveal whether the email is registered
		api.respondError(ctx, http.StatusBadRequest, errors.ErrInvalidCredentials)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		api.respondError(ctx, http.StatusBadRequest, errors.ErrInvalidCredentials)
		return
	}

	token, err := IssueToken(user, api.cfg.JWTSecret)
	if err != nil {
		api.respondError(ctx, http.StatusInternalServerError, errors.ErrInternalServer)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
	})
}

func (api *TaskAPI) getTasks(ctx *gin.Context) {
	filter := models.TaskFilter{
		Page:     parsePositiveInt(ctx.Query("page"), defaultPage),
		Limit:    parsePositiveInt(ctx.Query("limit"), defaultLimit),
		Priority: ctx.Query("priority"),
		FilterBy: ctx.Query("filterBy"),
	}
	if raw := ctx.Query("completed"); raw != "" {
		if completed, err := strconv.ParseBool(raw); err == nil {
			filter.Completed = &completed
		}
	}

	tasks, total, err := api.tasks.GetTasks(ctx.Request.Context(), callerID(ctx), filter)
	if err != nil {
		api.respondError(ctx, http.StatusInternalServerError, errors.ErrInternalServer)
		return
	}

	totalPages := (total + filter.Limit - 1) / filter.Limit

	ctx.JSON(http.StatusOK, gin.H{
		"success":     true,
		"tasks":       tasks,
		"totalTasks":  total,
		"totalPages":  totalPages,
		"currentPage": filter.Page,
	})
}

func (api *TaskAPI) getCompletedTasks(ctx *gin.Context) {
	tasks, err := api.tasks.GetCompletedTasks(ctx.Request.Context(), callerID(ctx))
	if err != nil {
		api.respondError(ctx, http.StatusInternalServerError, errors.ErrInternalServer)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "tasks": tasks})
}

func (api *TaskAPI) getTaskByID(ctx *gin.Context) {
	id := ctx.Param("taskID")

	task, err := api.tasks.GetTaskByID(ctx.Request.Context(), id, callerID(ctx))
	if err != nil {
		if err == errors.ErrTaskNotFound {
			api.respondError(ctx, http.StatusNotFound, errors.ErrTaskNotFound)
		} else {
			api.respondError(ctx, http.StatusInternalServerError, errors.ErrInternalServer)
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "task": task})
}

func (api *TaskAPI) createTask(ctx *gin.Context) {
	var req models.CreateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.respondError(ctx, http.StatusBadRequest, errors.ErrBadRequest)
		return
	}

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		api.respondError(ctx, http.StatusBadRequest, taskValidationError(err))
		return
	}
	if req.Deadline.Before(time.Now()) {
		api.respondError(ctx, http.StatusBadRequest, errors.ErrPastDeadline)
		return
	}

	task := models.Task{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Deadline:    req.Deadline,
		Completed:   false,
		UserID:      callerID(ctx),
	}

	if err := api.tasks.CreateTask(ctx.Request.Context(), &task); err != nil {
		api.respondError(ctx, http.StatusInternalServerError, errors.ErrInternalServer)
		return
	}

	log.Println("[SUCCESS] task created:", task.ID)
	ctx.JSON(http.StatusCreated, gin.H{"success": true, "task": task})
}

func (api *TaskAPI) updateTask(ctx *gin.Context) {
	id := ctx.Param("taskID")

	var req models.UpdateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.respondError(ctx, http.StatusBadRequest, errors.ErrBadRequest)
		return
	}

	rctx := ctx.Request.Context()

	task, err := api.tasks.GetTaskByID(rctx, id, callerID(ctx))
	if err != nil {
		if err == errors.ErrTaskNotFound {
			api.respondError(ctx, http.StatusNotFound, errors.ErrTaskNotFound)
		} else {
			api.respondError(ctx, http.StatusInternalServerError, errors.ErrInternalServer)
		}
		return
	}

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		api.respondError(ctx, http.StatusBadRequest, taskValidationError(err))
		return
	}

	// a field is only overwritten when a non-zero replacement is
	// supplied; an update cannot clear a field back to empty
	if req.Title != "" {
		task.Title = req.Title
	}
	if req.Description != "" {
		task.Description = req.Description
	}
	if req.Priority != "" {
		task.Priority = req.Priority
	}
	if !req.Deadline.IsZero() {
		task.Deadline = req.Deadline
	}

	if err := api.tasks.UpdateTask(rctx, id, task); err != nil {
		if err == errors.ErrTaskNotFound {
			api.respondError(ctx, http.StatusNotFound, errors.ErrTaskNotFound)
		} else {
			api.respondError(ctx, http.StatusInternalServerError, errors.ErrInternalServer)
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "task": task})
}

func (api *TaskAPI) deleteTask(ctx *gin.Context) {
	id := ctx.Param("taskID")

	rctx := ctx.Request.Context()

	if _, err := api.tasks.GetTaskByID(rctx, id, callerID(ctx)); err != nil {
		if err == errors.ErrTaskNotFound {
			api.respondError(ctx, http.StatusNotFound, errors.ErrTaskNotFound)
		} else {
			api.respondError(ctx, http.StatusInternalServerError, errors.ErrInternalServer)
		}
		return
	}

	if err := api.tasks.DeleteTask(rctx, id); err != nil {
		if err == errors.ErrTaskNotFound {
			api.respondError(ctx, http.StatusNotFound, errors.ErrTaskNotFound)
		} else {
			api.respondError(ctx, http.StatusInternalServerError, errors.ErrInternalServer)
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Task deleted successfully"})
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func registerValidationError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, verr := range verrs {
			switch verr.Field() {
			case "Username":
				return errors.ErrInvalidUsername
			case "Email":
				return errors.ErrInvalidEmail
			case "Password":
				return errors.ErrInvalidPassword
			}
		}
	}
	return errors.ErrValidationFailed
}

func taskValidationError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, verr := range verrs {
			if verr.Tag() == "required" {
				return errors.ErrMissingFields
			}
			switch verr.Field() {
			case "Title":
				return errors.ErrInvalidTitle
			case "Description":
				return errors.ErrInvalidDescription
			case "Priority":
				return errors.ErrInvalidPriority
			case "Deadline":
				return errors.ErrInvalidDeadline
			}
		}
	}
	return errors.ErrValidationFailed
}

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/example/fieldservice/internal/application"
	"github.com/example/fieldservice/internal/config"
	httptransport "github.com/example/fieldservice/internal/http"
	"github.com/example/fieldservice/internal/logging"
	"github.com/example/fieldservice/internal/persistence"
	"github.com/example/fieldservice/internal/persistence/sqlite"
	"github.com/example/fieldservice/internal/rollup"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger = logging.New(os.Stdout, cfg.LogLevel)

	location, err := cfg.Location()
	if err != nil {
		logger.Error("failed to resolve timezone", "error", err)
		os.Exit(1)
	}

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	punchStore := sqlite.NewPunchRepository(storage, location)
	workOrderStore := sqlite.NewWorkOrderRepository(storage)
	userStore := sqlite.NewUserRepository(storage)
	sessionStore := sqlite.NewSessionRepository(storage)

	if err := bootstrapAdmin(context.Background(), userStore, cfg, idGenerator, logger); err != nil {
		logger.Error("failed to seed admin account", "error", err)
		os.Exit(1)
	}

	punchRepo := newPunchRepositoryAdapter(punchStore)
	workOrderRepo := newWorkOrderRepositoryAdapter(workOrderStore)
	workOrderDirectory := newWorkOrderDirectoryAdapter(workOrderStore)
	userRepo := newUserRepositoryAdapter(userStore)
	userDirectory := newUserDirectoryAdapter(userStore)
	credentialStore := newCredentialStoreAdapter(userStore)
	sessionRepo := newSessionRepositoryAdapter(sessionStore)

	punchService := application.NewPunchService(punchRepo, workOrderDirectory, idGenerator, now, location, logger)
	workOrderService := application.NewWorkOrderService(workOrderRepo, userDirectory, idGenerator, now, logger)
	statsService := application.NewStatsService(punchRepo, rollup.NewEngine(location), now, logger)
	userService := application.NewUserService(userRepo, idGenerator, now, logger)
	authService := application.NewAuthService(credentialStore, sessionRepo, nil, tokenGenerator, now, cfg.SessionTTL, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:       httptransport.NewAuthHandler(authService, logger),
		Users:      httptransport.NewUserHandler(userService, logger),
		Punches:    httptransport.NewPunchHandler(punchService, logger),
		WorkOrders: httptransport.NewWorkOrderHandler(workOrderService, logger),
		Stats:      httptransport.NewStatsHandler(statsService, logger),
	})

	protected := httptransport.RequireSession(authService, logger)(router)
	handler := httptransport.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Login is the only route reachable without a session.
		if r.URL.Path == "/sessions" && r.Method == http.MethodPost {
			router.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	}))

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.SweepSchedule, func() {
		closed, err := punchService.SweepStalePunches(context.Background())
		if err != nil {
			logger.Error("stale punch sweep failed", "error", err)
			return
		}
		if closed > 0 {
			logger.Warn("stale punches force-closed", "count", closed)
		}
	}); err != nil {
		logger.Error("invalid sweep schedule", "schedule", cfg.SweepSchedule, "error", err)
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("timeclock API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// bootstrapAdmin seeds the first admin account when the user table is empty
// and credentials were provided through the environment.
func bootstrapAdmin(ctx context.Context, users persistence.UserRepository, cfg config.Config, idGenerator func() string, logger *slog.Logger) error {
	if cfg.BootstrapAdminEmail == "" {
		return nil
	}

	existing, err := users.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	hash, err := application.CreatePasswordHash(cfg.BootstrapAdminPassword, application.DefaultArgon2idParams)
	if err != nil {
		return err
	}

	now := time.Now()
	admin := persistence.User{
		ID:           idGenerator(),
		Email:        cfg.BootstrapAdminEmail,
		DisplayName:  "Administrator",
		Role:         string(application.RoleAdmin),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.CreateUser(ctx, admin); err != nil {
		return err
	}

	logger.Info("admin account seeded", "email", admin.Email, "user_id", admin.ID)
	return nil
}

// ----------------------------- type mapping ------------------------------

func toPersistencePunch(punch application.TimePunch) persistence.TimePunch {
	return persistence.TimePunch{
		ID:          punch.ID,
		UserID:      punch.UserID,
		WorkOrderID: punch.WorkOrderID,
		TaskID:      punch.TaskID,
		Kind:        string(punch.Kind),
		ClockIn:     punch.ClockIn,
		ClockOut:    punch.ClockOut,
		Kilometers:  punch.Kilometers,
		PunchDate:   punch.PunchDate,
		CreatedAt:   punch.CreatedAt,
		UpdatedAt:   punch.UpdatedAt,
	}
}

func toApplicationPunch(punch persistence.TimePunch) application.TimePunch {
	return application.TimePunch{
		ID:          punch.ID,
		UserID:      punch.UserID,
		WorkOrderID: punch.WorkOrderID,
		TaskID:      punch.TaskID,
		Kind:        application.PunchKind(punch.Kind),
		ClockIn:     punch.ClockIn,
		ClockOut:    punch.ClockOut,
		Kilometers:  punch.Kilometers,
		PunchDate:   punch.PunchDate,
		CreatedAt:   punch.CreatedAt,
		UpdatedAt:   punch.UpdatedAt,
	}
}

func toApplicationWorkOrder(order persistence.WorkOrder) application.WorkOrder {
	return application.WorkOrder{
		ID:          order.ID,
		Title:       order.Title,
		Status:      application.WorkOrderStatus(order.Status),
		AssignedTo:  order.AssignedTo,
		ActualHours: order.ActualHours,
		Efficiency:  order.Efficiency,
		CompletedAt: order.CompletedAt,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}

func toApplicationTask(task persistence.WorkOrderTask) application.WorkOrderTask {
	return application.WorkOrderTask{
		ID:            task.ID,
		WorkOrderID:   task.WorkOrderID,
		Title:         task.Title,
		Description:   task.Description,
		BudgetedHours: task.BudgetedHours,
		SortOrder:     task.SortOrder,
	}
}

func toApplicationUser(user persistence.User) application.User {
	return application.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        application.Role(user.Role),
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

func toApplicationSession(session persistence.Session) application.Session {
	return application.Session{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		RevokedAt: session.RevokedAt,
	}
}

// --------------------------- punch repository ----------------------------

type punchRepositoryAdapter struct {
	repo persistence.PunchRepository
}

func newPunchRepositoryAdapter(repo persistence.PunchRepository) *punchRepositoryAdapter {
	return &punchRepositoryAdapter{repo: repo}
}

func (a *punchRepositoryAdapter) InsertOpen(ctx context.Context, punch application.TimePunch, advanceWorkOrder bool) (application.TimePunch, error) {
	stored, err := a.repo.InsertOpen(ctx, toPersistencePunch(punch), advanceWorkOrder)
	if err != nil {
		return application.TimePunch{}, err
	}
	return toApplicationPunch(stored), nil
}

func (a *punchRepositoryAdapter) InsertClosed(ctx context.Context, punch application.TimePunch) (application.TimePunch, error) {
	stored, err := a.repo.InsertClosed(ctx, toPersistencePunch(punch))
	if err != nil {
		return application.TimePunch{}, err
	}
	return toApplicationPunch(stored), nil
}

func (a *punchRepositoryAdapter) Close(ctx context.Context, id string, clockOut time.Time, kilometers *float64) (application.TimePunch, error) {
	stored, err := a.repo.Close(ctx, id, clockOut, kilometers)
	if err != nil {
		return application.TimePunch{}, err
	}
	return toApplicationPunch(stored), nil
}

func (a *punchRepositoryAdapter) UpdateInterval(ctx context.Context, id string, clockIn, clockOut time.Time, kilometers *float64) (application.TimePunch, error) {
	stored, err := a.repo.UpdateInterval(ctx, id, clockIn, clockOut, kilometers)
	if err != nil {
		return application.TimePunch{}, err
	}
	return toApplicationPunch(stored), nil
}

func (a *punchRepositoryAdapter) Delete(ctx context.Context, id string) error {
	return a.repo.Delete(ctx, id)
}

func (a *punchRepositoryAdapter) GetPunch(ctx context.Context, id string) (application.TimePunch, error) {
	stored, err := a.repo.GetPunch(ctx, id)
	if err != nil {
		return application.TimePunch{}, err
	}
	return toApplicationPunch(stored), nil
}

func (a *punchRepositoryAdapter) ActivePunch(ctx context.Context, userID string) (application.TimePunch, error) {
	stored, err := a.repo.ActivePunch(ctx, userID)
	if err != nil {
		return application.TimePunch{}, err
	}
	return toApplicationPunch(stored), nil
}

func (a *punchRepositoryAdapter) ListPunches(ctx context.Context, filter application.PunchFilter) ([]application.TimePunch, error) {
	stored, err := a.repo.ListPunches(ctx, persistence.PunchFilter{
		UserID:      filter.UserID,
		WorkOrderID: filter.WorkOrderID,
		Kind:        string(filter.Kind),
		From:        filter.From,
		To:          filter.To,
	})
	if err != nil {
		return nil, err
	}
	return toApplicationPunches(stored), nil
}

func (a *punchRepositoryAdapter) ListStale(ctx context.Context, cutoff time.Time) ([]application.TimePunch, error) {
	stored, err := a.repo.ListStale(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	return toApplicationPunches(stored), nil
}

func toApplicationPunches(stored []persistence.TimePunch) []application.TimePunch {
	if len(stored) == 0 {
		return nil
	}
	punches := make([]application.TimePunch, 0, len(stored))
	for _, punch := range stored {
		punches = append(punches, toApplicationPunch(punch))
	}
	return punches
}

// ------------------------- work order repository -------------------------

type workOrderRepositoryAdapter struct {
	repo persistence.WorkOrderRepository
}

func newWorkOrderRepositoryAdapter(repo persistence.WorkOrderRepository) *workOrderRepositoryAdapter {
	return &workOrderRepositoryAdapter{repo: repo}
}

func (a *workOrderRepositoryAdapter) CreateWorkOrder(ctx context.Context, order application.WorkOrder) error {
	return a.repo.CreateWorkOrder(ctx, persistence.WorkOrder{
		ID:          order.ID,
		Title:       order.Title,
		Status:      string(order.Status),
		AssignedTo:  order.AssignedTo,
		ActualHours: order.ActualHours,
		Efficiency:  order.Efficiency,
		CompletedAt: order.CompletedAt,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	})
}

func (a *workOrderRepositoryAdapter) GetWorkOrder(ctx context.Context, id string) (application.WorkOrder, error) {
	stored, err := a.repo.GetWorkOrder(ctx, id)
	if err != nil {
		return application.WorkOrder{}, err
	}
	return toApplicationWorkOrder(stored), nil
}

func (a *workOrderRepositoryAdapter) ListWorkOrders(ctx context.Context) ([]application.WorkOrder, error) {
	stored, err := a.repo.ListWorkOrders(ctx)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, nil
	}
	orders := make([]application.WorkOrder, 0, len(stored))
	for _, order := range stored {
		orders = append(orders, toApplicationWorkOrder(order))
	}
	return orders, nil
}

func (a *workOrderRepositoryAdapter) UpdateStatus(ctx context.Context, id string, status application.WorkOrderStatus, assignedTo *string) error {
	return a.repo.UpdateStatus(ctx, id, string(status), assignedTo)
}

func (a *workOrderRepositoryAdapter) CloseWorkOrder(ctx context.Context, id string, completedAt time.Time) (application.WorkOrder, error) {
	if _, err := a.repo.CloseWorkOrder(ctx, id, completedAt); err != nil {
		return application.WorkOrder{}, err
	}
	stored, err := a.repo.GetWorkOrder(ctx, id)
	if err != nil {
		return application.WorkOrder{}, err
	}
	return toApplicationWorkOrder(stored), nil
}

func (a *workOrderRepositoryAdapter) ActualHours(ctx context.Context, id string) (float64, error) {
	return a.repo.ActualHours(ctx, id)
}

func (a *workOrderRepositoryAdapter) BudgetedHours(ctx context.Context, id string) (float64, error) {
	return a.repo.BudgetedHours(ctx, id)
}

func (a *workOrderRepositoryAdapter) AddTask(ctx context.Context, task application.WorkOrderTask) error {
	return a.repo.AddTask(ctx, persistence.WorkOrderTask{
		ID:            task.ID,
		WorkOrderID:   task.WorkOrderID,
		Title:         task.Title,
		Description:   task.Description,
		BudgetedHours: task.BudgetedHours,
		SortOrder:     task.SortOrder,
	})
}

func (a *workOrderRepositoryAdapter) GetTask(ctx context.Context, id string) (application.WorkOrderTask, error) {
	stored, err := a.repo.GetTask(ctx, id)
	if err != nil {
		return application.WorkOrderTask{}, err
	}
	return toApplicationTask(stored), nil
}

func (a *workOrderRepositoryAdapter) ListTasks(ctx context.Context, workOrderID string) ([]application.WorkOrderTask, error) {
	stored, err := a.repo.ListTasks(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, nil
	}
	tasks := make([]application.WorkOrderTask, 0, len(stored))
	for _, task := range stored {
		tasks = append(tasks, toApplicationTask(task))
	}
	return tasks, nil
}

func (a *workOrderRepositoryAdapter) UpdateTaskHours(ctx context.Context, id string, budgetedHours float64) error {
	return a.repo.UpdateTaskHours(ctx, id, budgetedHours)
}

// -------------------------- work order directory -------------------------

type workOrderDirectoryAdapter struct {
	repo persistence.WorkOrderRepository
}

func newWorkOrderDirectoryAdapter(repo persistence.WorkOrderRepository) *workOrderDirectoryAdapter {
	return &workOrderDirectoryAdapter{repo: repo}
}

func (a *workOrderDirectoryAdapter) GetWorkOrder(ctx context.Context, id string) (application.WorkOrder, error) {
	stored, err := a.repo.GetWorkOrder(ctx, id)
	if err != nil {
		return application.WorkOrder{}, err
	}
	return toApplicationWorkOrder(stored), nil
}

func (a *workOrderDirectoryAdapter) GetTask(ctx context.Context, id string) (application.WorkOrderTask, error) {
	stored, err := a.repo.GetTask(ctx, id)
	if err != nil {
		return application.WorkOrderTask{}, err
	}
	return toApplicationTask(stored), nil
}

// ---------------------------- user repository ----------------------------

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) error {
	return a.repo.CreateUser(ctx, persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		Role:         string(user.Role),
		PasswordHash: passwordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	})
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	stored, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, nil
	}
	users := make([]application.User, 0, len(stored))
	for _, user := range stored {
		users = append(users, toApplicationUser(user))
	}
	return users, nil
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

// ----------------------------- user directory ----------------------------

type userDirectoryAdapter struct {
	repo persistence.UserRepository
}

func newUserDirectoryAdapter(repo persistence.UserRepository) *userDirectoryAdapter {
	return &userDirectoryAdapter{repo: repo}
}

func (a *userDirectoryAdapter) UserExists(ctx context.Context, id string) (bool, error) {
	if _, err := a.repo.GetUser(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ---------------------------- credential store ---------------------------

type credentialStoreAdapter struct {
	repo persistence.UserRepository
}

func newCredentialStoreAdapter(repo persistence.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return application.UserCredentials{}, application.ErrNotFound
		}
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

func (a *credentialStoreAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return application.User{}, application.ErrNotFound
		}
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

// --------------------------- session repository --------------------------

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, persistence.Session{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		RevokedAt: session.RevokedAt,
	})
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return application.Session{}, application.ErrNotFound
		}
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return application.Session{}, application.ErrNotFound
		}
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

// Package testfixtures provides deterministic builders for the domain records
// exercised by the application and persistence tests.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/fieldservice/internal/application"
	"github.com/example/fieldservice/internal/persistence"
)

var (
	userCounter      uint64
	workOrderCounter uint64
	taskCounter      uint64
	punchCounter     uint64
	sessionCounter   uint64
)

var referenceTime = time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record.
type UserFixture struct {
	ID           string
	Email        string
	DisplayName  string
	Role         application.Role
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		DisplayName:  fmt.Sprintf("User %03d", idx),
		Role:         application.RoleTechnician,
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserRole sets the role on the generated fixture.
func WithUserRole(role application.Role) UserOption {
	return func(f *UserFixture) {
		f.Role = role
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserTimestamps sets both created and updated timestamps on the fixture.
func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		Role:        f.Role,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Credentials returns the fixture as application.UserCredentials.
func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{
		User:         f.Application(),
		PasswordHash: f.PasswordHash,
	}
}

// Principal returns an application.Principal derived from the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, Role: f.Role}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		Role:         string(f.Role),
		PasswordHash: f.PasswordHash,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// -------------------------- Work order fixtures --------------------------

// WorkOrderFixture represents a deterministic work order record.
type WorkOrderFixture struct {
	ID          string
	Title       string
	Status      application.WorkOrderStatus
	AssignedTo  *string
	ActualHours float64
	Efficiency  *float64
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Tasks       []application.WorkOrderTask
}

// WorkOrderOption configures the generated work order fixture.
type WorkOrderOption func(*WorkOrderFixture)

// NewWorkOrderFixture returns a deterministic work order fixture with optional
// overrides.
func NewWorkOrderFixture(opts ...WorkOrderOption) WorkOrderFixture {
	idx := atomic.AddUint64(&workOrderCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := WorkOrderFixture{
		ID:        fmt.Sprintf("wo-%03d", idx),
		Title:     fmt.Sprintf("Work Order %03d", idx),
		Status:    application.WorkOrderStatusNew,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithWorkOrderID overrides the generated work order ID.
func WithWorkOrderID(id string) WorkOrderOption {
	return func(f *WorkOrderFixture) {
		f.ID = id
	}
}

// WithWorkOrderStatus sets the lifecycle status.
func WithWorkOrderStatus(status application.WorkOrderStatus) WorkOrderOption {
	return func(f *WorkOrderFixture) {
		f.Status = status
	}
}

// WithWorkOrderAssignee sets the assignee on the fixture.
func WithWorkOrderAssignee(userID string) WorkOrderOption {
	return func(f *WorkOrderFixture) {
		id := userID
		f.AssignedTo = &id
	}
}

// WithWorkOrderActualHours sets the cached actual hours.
func WithWorkOrderActualHours(hours float64) WorkOrderOption {
	return func(f *WorkOrderFixture) {
		f.ActualHours = hours
	}
}

// WithWorkOrderEfficiency sets the frozen efficiency percentage.
func WithWorkOrderEfficiency(pct float64) WorkOrderOption {
	return func(f *WorkOrderFixture) {
		value := pct
		f.Efficiency = &value
	}
}

// WithWorkOrderCompletedAt sets the completion timestamp.
func WithWorkOrderCompletedAt(t time.Time) WorkOrderOption {
	return func(f *WorkOrderFixture) {
		completed := t
		f.CompletedAt = &completed
	}
}

// WithWorkOrderTasks sets the task list on the fixture.
func WithWorkOrderTasks(tasks ...application.WorkOrderTask) WorkOrderOption {
	return func(f *WorkOrderFixture) {
		f.Tasks = append([]application.WorkOrderTask(nil), tasks...)
	}
}

// Application returns the fixture as an application.WorkOrder value.
func (f WorkOrderFixture) Application() application.WorkOrder {
	return application.WorkOrder{
		ID:          f.ID,
		Title:       f.Title,
		Status:      f.Status,
		AssignedTo:  copyStringPtr(f.AssignedTo),
		ActualHours: f.ActualHours,
		Efficiency:  copyFloatPtr(f.Efficiency),
		CompletedAt: copyTimePtr(f.CompletedAt),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		Tasks:       append([]application.WorkOrderTask(nil), f.Tasks...),
	}
}

// Persistence returns the fixture as a persistence.WorkOrder value.
func (f WorkOrderFixture) Persistence() persistence.WorkOrder {
	return persistence.WorkOrder{
		ID:          f.ID,
		Title:       f.Title,
		Status:      string(f.Status),
		AssignedTo:  copyStringPtr(f.AssignedTo),
		ActualHours: f.ActualHours,
		Efficiency:  copyFloatPtr(f.Efficiency),
		CompletedAt: copyTimePtr(f.CompletedAt),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// ----------------------------- Task fixtures -----------------------------

// TaskFixture represents a deterministic budgeted task record.
type TaskFixture struct {
	ID            string
	WorkOrderID   string
	Title         string
	Description   *string
	BudgetedHours float64
	SortOrder     int
}

// TaskOption configures the generated task fixture.
type TaskOption func(*TaskFixture)

// NewTaskFixture returns a deterministic task fixture with optional overrides.
func NewTaskFixture(opts ...TaskOption) TaskFixture {
	idx := atomic.AddUint64(&taskCounter, 1)
	fixture := TaskFixture{
		ID:            fmt.Sprintf("task-%03d", idx),
		WorkOrderID:   fmt.Sprintf("wo-%03d", idx),
		Title:         fmt.Sprintf("Task %03d", idx),
		BudgetedHours: 2,
		SortOrder:     int(idx),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithTaskID overrides the generated task ID.
func WithTaskID(id string) TaskOption {
	return func(f *TaskFixture) {
		f.ID = id
	}
}

// WithTaskWorkOrderID sets the owning work order ID.
func WithTaskWorkOrderID(id string) TaskOption {
	return func(f *TaskFixture) {
		f.WorkOrderID = id
	}
}

// WithTaskBudgetedHours sets the budgeted hours.
func WithTaskBudgetedHours(hours float64) TaskOption {
	return func(f *TaskFixture) {
		f.BudgetedHours = hours
	}
}

// WithTaskSortOrder sets the display order.
func WithTaskSortOrder(order int) TaskOption {
	return func(f *TaskFixture) {
		f.SortOrder = order
	}
}

// Application returns the fixture as an application.WorkOrderTask value.
func (f TaskFixture) Application() application.WorkOrderTask {
	return application.WorkOrderTask{
		ID:            f.ID,
		WorkOrderID:   f.WorkOrderID,
		Title:         f.Title,
		Description:   copyStringPtr(f.Description),
		BudgetedHours: f.BudgetedHours,
		SortOrder:     f.SortOrder,
	}
}

// Persistence returns the fixture as a persistence.WorkOrderTask value.
func (f TaskFixture) Persistence() persistence.WorkOrderTask {
	return persistence.WorkOrderTask{
		ID:            f.ID,
		WorkOrderID:   f.WorkOrderID,
		Title:         f.Title,
		Description:   copyStringPtr(f.Description),
		BudgetedHours: f.BudgetedHours,
		SortOrder:     f.SortOrder,
	}
}

// ----------------------------- Punch fixtures ----------------------------

// PunchFixture represents a deterministic time punch record. The default
// fixture is a closed one hour work punch.
type PunchFixture struct {
	ID          string
	UserID      string
	WorkOrderID *string
	TaskID      *string
	Kind        application.PunchKind
	ClockIn     time.Time
	ClockOut    *time.Time
	Kilometers  *float64
	PunchDate   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PunchOption configures the generated punch fixture.
type PunchOption func(*PunchFixture)

// NewPunchFixture returns a deterministic punch fixture with optional overrides.
func NewPunchFixture(opts ...PunchOption) PunchFixture {
	idx := atomic.AddUint64(&punchCounter, 1)
	clockIn := referenceTime.Add(time.Duration(idx) * 2 * time.Hour)
	clockOut := clockIn.Add(time.Hour)
	fixture := PunchFixture{
		ID:        fmt.Sprintf("punch-%03d", idx),
		UserID:    fmt.Sprintf("user-%03d", idx),
		Kind:      application.PunchKindWork,
		ClockIn:   clockIn,
		ClockOut:  &clockOut,
		PunchDate: clockIn.UTC().Format("2006-01-02"),
		CreatedAt: clockIn,
		UpdatedAt: clockOut,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithPunchID overrides the generated punch ID.
func WithPunchID(id string) PunchOption {
	return func(f *PunchFixture) {
		f.ID = id
	}
}

// WithPunchUserID sets the owning user ID.
func WithPunchUserID(id string) PunchOption {
	return func(f *PunchFixture) {
		f.UserID = id
	}
}

// WithPunchWorkOrderID links the punch to a work order.
func WithPunchWorkOrderID(id string) PunchOption {
	return func(f *PunchFixture) {
		value := id
		f.WorkOrderID = &value
	}
}

// WithPunchTaskID links the punch to a task.
func WithPunchTaskID(id string) PunchOption {
	return func(f *PunchFixture) {
		value := id
		f.TaskID = &value
	}
}

// WithPunchKind sets the punch kind.
func WithPunchKind(kind application.PunchKind) PunchOption {
	return func(f *PunchFixture) {
		f.Kind = kind
	}
}

// WithPunchInterval sets the clock-in and clock-out times and re-derives the
// punch date from the clock-in in UTC.
func WithPunchInterval(clockIn, clockOut time.Time) PunchOption {
	return func(f *PunchFixture) {
		f.ClockIn = clockIn
		out := clockOut
		f.ClockOut = &out
		f.PunchDate = clockIn.UTC().Format("2006-01-02")
	}
}

// WithPunchOpen clears the clock-out, marking the punch as active.
func WithPunchOpen(clockIn time.Time) PunchOption {
	return func(f *PunchFixture) {
		f.ClockIn = clockIn
		f.ClockOut = nil
		f.PunchDate = clockIn.UTC().Format("2006-01-02")
	}
}

// WithPunchKilometers sets the travel distance.
func WithPunchKilometers(km float64) PunchOption {
	return func(f *PunchFixture) {
		value := km
		f.Kilometers = &value
	}
}

// Application returns the fixture as an application.TimePunch value.
func (f PunchFixture) Application() application.TimePunch {
	return application.TimePunch{
		ID:          f.ID,
		UserID:      f.UserID,
		WorkOrderID: copyStringPtr(f.WorkOrderID),
		TaskID:      copyStringPtr(f.TaskID),
		Kind:        f.Kind,
		ClockIn:     f.ClockIn,
		ClockOut:    copyTimePtr(f.ClockOut),
		Kilometers:  copyFloatPtr(f.Kilometers),
		PunchDate:   f.PunchDate,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.TimePunch value.
func (f PunchFixture) Persistence() persistence.TimePunch {
	return persistence.TimePunch{
		ID:          f.ID,
		UserID:      f.UserID,
		WorkOrderID: copyStringPtr(f.WorkOrderID),
		TaskID:      copyStringPtr(f.TaskID),
		Kind:        string(f.Kind),
		ClockIn:     f.ClockIn,
		ClockOut:    copyTimePtr(f.ClockOut),
		Kilometers:  copyFloatPtr(f.Kilometers),
		PunchDate:   f.PunchDate,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// ---------------------------- Session fixtures ---------------------------

// SessionFixture represents a deterministic session record.
type SessionFixture struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a deterministic session fixture with optional overrides.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		UserID:    fmt.Sprintf("user-%03d", idx),
		Token:     fmt.Sprintf("token-%03d", idx),
		ExpiresAt: referenceTime.Add(8 * time.Hour),
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionUserID sets the user ID.
func WithSessionUserID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.UserID = id
	}
}

// WithSessionToken overrides the token value.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) {
		f.Token = token
	}
}

// WithSessionExpiresAt sets the expiration timestamp.
func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExpiresAt = t
	}
}

// WithSessionRevokedAt sets the optional revoked timestamp.
func WithSessionRevokedAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		revoked := t
		f.RevokedAt = &revoked
	}
}

// Application returns the fixture as an application.Session value.
func (f SessionFixture) Application() application.Session {
	return application.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		RevokedAt: copyTimePtr(f.RevokedAt),
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		RevokedAt: copyTimePtr(f.RevokedAt),
	}
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}

func copyFloatPtr(src *float64) *float64 {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}

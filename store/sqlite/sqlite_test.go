package sqlite_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// PROFILES
// =============================================================================

func TestStore_ProfileRoundtrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	p := sqlite.Profile{
		ID:         "e1",
		Name:       "Alice",
		Email:      "alice@example.com",
		Role:       sqlite.RoleManager,
		Department: "Engineering",
		Active:     true,
		APIToken:   "tok-alice",
	}
	require.NoError(t, store.SaveProfile(ctx, p))

	got, err := store.GetProfile(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, sqlite.RoleManager, got.Role)
	assert.Equal(t, "Engineering", got.Department)
	assert.True(t, got.Active)

	byToken, err := store.GetProfileByToken(ctx, "tok-alice")
	require.NoError(t, err)
	require.NotNil(t, byToken)
	assert.Equal(t, "e1", byToken.ID)

	missing, err := store.GetProfileByToken(ctx, "no-such-token")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Upsert updates in place.
	p.Department = "Platform"
	require.NoError(t, store.SaveProfile(ctx, p))
	got, err = store.GetProfile(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Platform", got.Department)

	all, err := store.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.DeleteProfile(ctx, "e1"))
	got, err = store.GetProfile(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_DeactivateProfiles(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, store.SaveProfile(ctx, sqlite.Profile{
			ID: fmt.Sprintf("e%d", i), Name: fmt.Sprintf("Emp %d", i),
			Role: sqlite.RoleEmployee, Active: true,
		}))
	}

	ids := make([]string, 10)
	for i := range ids {
		ids[i] = fmt.Sprintf("e%d", i)
	}
	affected, err := store.DeactivateProfiles(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, int64(10), affected)

	profiles, err := store.ListProfiles(ctx)
	require.NoError(t, err)
	for _, p := range profiles {
		assert.False(t, p.Active)
	}

	// Empty batch is a no-op.
	affected, err = store.DeactivateProfiles(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, affected)
}

// =============================================================================
// CHANGE HOOK
// =============================================================================

func TestStore_ChangeHookFiresOncePerStatement(t *testing.T) {
	// GIVEN: A registered change hook counting notifications
	// WHEN: Running single-row and bulk mutating statements
	// THEN: Each statement notifies exactly once, regardless of rows touched

	store := newStore(t)
	ctx := context.Background()

	var notified []string
	store.OnChange(func(table string) { notified = append(notified, table) })

	require.NoError(t, store.SaveProfile(ctx, sqlite.Profile{ID: "e1", Name: "A", Role: sqlite.RoleEmployee, Active: true}))
	assert.Equal(t, []string{"profiles"}, notified)

	// Bulk deactivation of 10 profiles: one statement, one notification.
	notified = nil
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = fmt.Sprintf("bulk-%d", i)
		require.NoError(t, store.SaveProfile(ctx, sqlite.Profile{ID: ids[i], Name: "B", Role: sqlite.RoleEmployee, Active: true}))
	}
	notified = nil
	_, err := store.DeactivateProfiles(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, []string{"profiles"}, notified)

	notified = nil
	require.NoError(t, store.SaveLeaveRequest(ctx, sqlite.LeaveRequest{
		ID: "r1", EmployeeID: "e1", LeaveTypeID: "pto",
		StartDate: time.Now(), EndDate: time.Now().AddDate(0, 0, 1),
		Days: 1, Status: sqlite.StatusPending,
	}))
	assert.Equal(t, []string{"leave_requests"}, notified)

	notified = nil
	ok, err := store.UpdateLeaveRequestStatus(ctx, "r1", sqlite.StatusApproved, "mgr")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"leave_requests"}, notified)
}

func TestStore_ReadsDoNotNotify(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveProfile(ctx, sqlite.Profile{ID: "e1", Name: "A", Role: sqlite.RoleEmployee}))

	count := 0
	store.OnChange(func(string) { count++ })

	_, err := store.GetProfile(ctx, "e1")
	require.NoError(t, err)
	_, err = store.ListProfiles(ctx)
	require.NoError(t, err)
	_, err = store.ListLeaveRequests(ctx)
	require.NoError(t, err)

	assert.Zero(t, count)
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

func TestStore_LeaveTypeRoundtrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveLeaveType(ctx, sqlite.LeaveType{ID: "pto", Name: "Paid Time Off", DefaultDays: 25}))
	require.NoError(t, store.SaveLeaveType(ctx, sqlite.LeaveType{ID: "sick", Name: "Sick Leave", DefaultDays: 10}))

	lt, err := store.GetLeaveType(ctx, "pto")
	require.NoError(t, err)
	require.NotNil(t, lt)
	assert.Equal(t, 25.0, lt.DefaultDays)

	types, err := store.ListLeaveTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "Paid Time Off", types[0].Name)

	require.NoError(t, store.DeleteLeaveType(ctx, "sick"))
	lt, err = store.GetLeaveType(ctx, "sick")
	require.NoError(t, err)
	assert.Nil(t, lt)
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func TestStore_LeaveRequestRoundtrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	start := time.Date(2026, time.July, 6, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveLeaveRequest(ctx, sqlite.LeaveRequest{
		ID: "r1", EmployeeID: "e1", LeaveTypeID: "pto",
		StartDate: start, EndDate: start.AddDate(0, 0, 3),
		Days: 2.5, Status: sqlite.StatusPending, Reason: "trip",
	}))

	got, err := store.GetLeaveRequest(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2.5, got.Days)
	assert.Equal(t, sqlite.StatusPending, got.Status)
	assert.Equal(t, "trip", got.Reason)
	assert.Nil(t, got.ReviewedAt)
	assert.True(t, got.StartDate.Equal(start))

	ok, err := store.UpdateLeaveRequestStatus(ctx, "r1", sqlite.StatusApproved, "mgr-1")
	require.NoError(t, err)
	require.True(t, ok)

	got, err = store.GetLeaveRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, sqlite.StatusApproved, got.Status)
	assert.Equal(t, "mgr-1", got.ReviewedBy)
	require.NotNil(t, got.ReviewedAt)

	// Unknown id reports no row, not an error.
	ok, err = store.UpdateLeaveRequestStatus(ctx, "nope", sqlite.StatusRejected, "mgr-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ListLeaveRequestsByEmployee(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	start := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	for i, emp := range []string{"e1", "e1", "e2"} {
		require.NoError(t, store.SaveLeaveRequest(ctx, sqlite.LeaveRequest{
			ID: fmt.Sprintf("r%d", i), EmployeeID: emp, LeaveTypeID: "pto",
			StartDate: start, EndDate: start.AddDate(0, 0, 1),
			Days: 1, Status: sqlite.StatusPending,
		}))
	}

	mine, err := store.ListLeaveRequestsByEmployee(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, err := store.ListLeaveRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_Reset(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveProfile(ctx, sqlite.Profile{ID: "e1", Name: "A", Role: sqlite.RoleEmployee}))
	require.NoError(t, store.SaveLeaveType(ctx, sqlite.LeaveType{ID: "pto", Name: "PTO"}))

	require.NoError(t, store.Reset(ctx))

	profiles, err := store.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, profiles)
	types, err := store.ListLeaveTypes(ctx)
	require.NoError(t, err)
	assert.Empty(t, types)
}

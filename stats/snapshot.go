/*
snapshot.go - Organizational statistics snapshot

PURPOSE:
  Defines the snapshot value object: every precomputed statistic the read
  endpoint serves, plus the last_refreshed timestamp. The snapshot is a pure
  function of the source tables at computation time; it carries no state of
  its own.

INVARIANTS:
  - Exactly one snapshot is live at any time (see holder.go)
  - Count fields are non-negative integers
  - Averages and rates are 0 when their denominator is empty, never NaN

JSON SHAPE:
  Field names match the read endpoint's response body one-to-one, so the
  snapshot marshals directly without a translation layer.

SEE ALSO:
  - aggregate.go: Computes snapshots from source rows
  - holder.go: Atomic publication and reads
*/
package stats

import "time"

// Snapshot holds all organizational statistics as of LastRefreshed.
type Snapshot struct {
	LastRefreshed time.Time `json:"last_refreshed"`

	EmployeeStats        EmployeeStats     `json:"employee_stats"`
	DepartmentStats      []DepartmentStat  `json:"department_stats"`
	CurrentYearLeave     CurrentYearLeave  `json:"current_year_leave_stats"`
	LeaveTypeStats       []LeaveTypeStat   `json:"leave_type_stats"`
	MonthlyTrends        []MonthlyTrend    `json:"monthly_trends"`
	TopRequesters        []TopRequester    `json:"top_requesters"`
	DepartmentLeaveStats []DepartmentLeave `json:"department_leave_stats"`
	ApprovalMetrics      ApprovalMetrics   `json:"approval_metrics"`
}

// EmployeeStats counts employees by role and active/inactive status.
type EmployeeStats struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	Inactive int            `json:"inactive"`
	ByRole   map[string]int `json:"by_role"`
}

// DepartmentStat counts employees and managers per department.
type DepartmentStat struct {
	Department    string `json:"department"`
	EmployeeCount int    `json:"employee_count"`
	ManagerCount  int    `json:"manager_count"`
}

// CurrentYearLeave summarizes leave requests for the current calendar year.
type CurrentYearLeave struct {
	Year              int     `json:"year"`
	TotalLeaves       int     `json:"total_leaves"`
	Pending           int     `json:"pending"`
	Approved          int     `json:"approved"`
	Rejected          int     `json:"rejected"`
	Cancelled         int     `json:"cancelled"`
	TotalApprovedDays float64 `json:"total_approved_days"`
	AvgLeaveDuration  float64 `json:"avg_leave_duration"`
}

// LeaveTypeStat summarizes requests for one leave type.
type LeaveTypeStat struct {
	LeaveTypeID   string  `json:"leave_type_id"`
	LeaveTypeName string  `json:"leave_type_name"`
	TotalRequests int     `json:"total_requests"`
	Pending       int     `json:"pending"`
	Approved      int     `json:"approved"`
	Rejected      int     `json:"rejected"`
	TotalDays     float64 `json:"total_days"`
	AvgDaysPerReq float64 `json:"avg_days_per_request"`
}

// MonthlyTrend is one calendar month of the current year. The snapshot always
// carries exactly twelve entries, January through December.
type MonthlyTrend struct {
	Month        int     `json:"month"`
	Label        string  `json:"label"`
	Requests     int     `json:"requests"`
	ApprovedDays float64 `json:"approved_days"`
}

// TopRequester is one entry in the ranked approved-days list.
type TopRequester struct {
	EmployeeID   string  `json:"employee_id"`
	Name         string  `json:"name"`
	Department   string  `json:"department"`
	ApprovedDays float64 `json:"approved_days"`
	Requests     int     `json:"requests"`
}

// DepartmentLeave summarizes leave activity per department.
type DepartmentLeave struct {
	Department         string  `json:"department"`
	TotalRequests      int     `json:"total_requests"`
	ApprovedRequests   int     `json:"approved_requests"`
	AvgDaysPerEmployee float64 `json:"avg_days_per_employee"`
}

// ApprovalMetrics summarizes the approval pipeline across all requests.
type ApprovalMetrics struct {
	TotalProcessed     int     `json:"total_processed"`
	Approved           int     `json:"approved"`
	Rejected           int     `json:"rejected"`
	ApprovalRate       float64 `json:"approval_rate"`
	AvgApprovalTimeHrs float64 `json:"avg_approval_time_hours"`
	StalePending       int     `json:"stale_pending"`
}

/*
aggregate.go - Snapshot recomputation

PURPOSE:
  Recomputes the full statistics snapshot from the current contents of the
  source tables. The computation is side-effect free: it reads the store,
  builds a new Snapshot value, and returns it. Publication is the caller's
  job (see refresher.go).

NUMERIC SEMANTICS:
  Day totals and averages use decimal arithmetic and are rounded to two
  places at the boundary. Every average and rate is defined as 0 when its
  contributing set is empty; the aggregator never divides by zero.

ORDERING:
  All list statistics are sorted deterministically so that two computations
  over identical source state produce identical snapshots (idempotence).

SEE ALSO:
  - snapshot.go: Output shape
  - store/sqlite: Source implementation
*/
package stats

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/warp/leave-engine/store/sqlite"
)

// Source provides read access to the watched source tables.
// *sqlite.Store satisfies it.
type Source interface {
	ListProfiles(ctx context.Context) ([]sqlite.Profile, error)
	ListLeaveTypes(ctx context.Context) ([]sqlite.LeaveType, error)
	ListLeaveRequests(ctx context.Context) ([]sqlite.LeaveRequest, error)
}

// Options tunes the bounded statistics.
type Options struct {
	// TopRequestersLimit bounds the top_requesters list. Default 5.
	TopRequestersLimit int

	// StalePendingAfter is how old a pending request must be before it counts
	// as stale in approval_metrics. Default 7 days.
	StalePendingAfter time.Duration
}

const (
	defaultTopRequesters = 5
	defaultStalePending  = 7 * 24 * time.Hour
)

// Aggregator computes snapshots from a Source.
type Aggregator struct {
	source Source
	opts   Options
}

// NewAggregator creates an aggregator over the given source.
func NewAggregator(source Source, opts Options) *Aggregator {
	if opts.TopRequestersLimit <= 0 {
		opts.TopRequestersLimit = defaultTopRequesters
	}
	if opts.StalePendingAfter <= 0 {
		opts.StalePendingAfter = defaultStalePending
	}
	return &Aggregator{source: source, opts: opts}
}

// Compute builds a complete snapshot from current source state. Empty source
// tables produce a snapshot of zero statistics, not an error.
func (a *Aggregator) Compute(ctx context.Context, now time.Time) (*Snapshot, error) {
	var (
		profiles []sqlite.Profile
		types    []sqlite.LeaveType
		requests []sqlite.LeaveRequest
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profiles, err = a.source.ListProfiles(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		types, err = a.source.ListLeaveTypes(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		requests, err = a.source.ListLeaveRequests(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	year := now.Year()
	yearRequests := filterYear(requests, year)

	snap := &Snapshot{
		LastRefreshed:        now.UTC(),
		EmployeeStats:        computeEmployeeStats(profiles),
		DepartmentStats:      computeDepartmentStats(profiles),
		CurrentYearLeave:     computeCurrentYearLeave(yearRequests, year),
		LeaveTypeStats:       computeLeaveTypeStats(requests, types),
		MonthlyTrends:        computeMonthlyTrends(yearRequests),
		TopRequesters:        computeTopRequesters(yearRequests, profiles, a.opts.TopRequestersLimit),
		DepartmentLeaveStats: computeDepartmentLeave(requests, profiles),
		ApprovalMetrics:      computeApprovalMetrics(requests, now, a.opts.StalePendingAfter),
	}
	return snap, nil
}

func filterYear(requests []sqlite.LeaveRequest, year int) []sqlite.LeaveRequest {
	var out []sqlite.LeaveRequest
	for _, r := range requests {
		if r.StartDate.Year() == year {
			out = append(out, r)
		}
	}
	return out
}

func computeEmployeeStats(profiles []sqlite.Profile) EmployeeStats {
	es := EmployeeStats{ByRole: make(map[string]int)}
	for _, p := range profiles {
		es.Total++
		if p.Active {
			es.Active++
		} else {
			es.Inactive++
		}
		es.ByRole[p.Role]++
	}
	return es
}

func computeDepartmentStats(profiles []sqlite.Profile) []DepartmentStat {
	byDept := make(map[string]*DepartmentStat)
	for _, p := range profiles {
		d, ok := byDept[p.Department]
		if !ok {
			d = &DepartmentStat{Department: p.Department}
			byDept[p.Department] = d
		}
		d.EmployeeCount++
		if p.Role == sqlite.RoleManager {
			d.ManagerCount++
		}
	}

	out := make([]DepartmentStat, 0, len(byDept))
	for _, d := range byDept {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Department < out[j].Department })
	return out
}

func computeCurrentYearLeave(requests []sqlite.LeaveRequest, year int) CurrentYearLeave {
	cy := CurrentYearLeave{Year: year}
	approvedDays := decimal.Zero
	for _, r := range requests {
		cy.TotalLeaves++
		switch r.Status {
		case sqlite.StatusPending:
			cy.Pending++
		case sqlite.StatusApproved:
			cy.Approved++
			approvedDays = approvedDays.Add(decimal.NewFromFloat(r.Days))
		case sqlite.StatusRejected:
			cy.Rejected++
		case sqlite.StatusCancelled:
			cy.Cancelled++
		}
	}
	cy.TotalApprovedDays = round2(approvedDays)
	cy.AvgLeaveDuration = avg(approvedDays, cy.Approved)
	return cy
}

func computeLeaveTypeStats(requests []sqlite.LeaveRequest, types []sqlite.LeaveType) []LeaveTypeStat {
	names := make(map[string]string, len(types))
	for _, lt := range types {
		names[lt.ID] = lt.Name
	}

	byType := make(map[string]*LeaveTypeStat)
	totalDays := make(map[string]decimal.Decimal)
	allDays := make(map[string]decimal.Decimal)

	for _, r := range requests {
		st, ok := byType[r.LeaveTypeID]
		if !ok {
			name := names[r.LeaveTypeID]
			if name == "" {
				name = r.LeaveTypeID
			}
			st = &LeaveTypeStat{LeaveTypeID: r.LeaveTypeID, LeaveTypeName: name}
			byType[r.LeaveTypeID] = st
			totalDays[r.LeaveTypeID] = decimal.Zero
			allDays[r.LeaveTypeID] = decimal.Zero
		}
		st.TotalRequests++
		allDays[r.LeaveTypeID] = allDays[r.LeaveTypeID].Add(decimal.NewFromFloat(r.Days))
		switch r.Status {
		case sqlite.StatusPending:
			st.Pending++
		case sqlite.StatusApproved:
			st.Approved++
			totalDays[r.LeaveTypeID] = totalDays[r.LeaveTypeID].Add(decimal.NewFromFloat(r.Days))
		case sqlite.StatusRejected:
			st.Rejected++
		}
	}

	out := make([]LeaveTypeStat, 0, len(byType))
	for id, st := range byType {
		st.TotalDays = round2(totalDays[id])
		st.AvgDaysPerReq = avg(allDays[id], st.TotalRequests)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeaveTypeName < out[j].LeaveTypeName })
	return out
}

func computeMonthlyTrends(requests []sqlite.LeaveRequest) []MonthlyTrend {
	trends := make([]MonthlyTrend, 12)
	days := make([]decimal.Decimal, 12)
	for i := range trends {
		m := time.Month(i + 1)
		trends[i] = MonthlyTrend{Month: i + 1, Label: m.String()[:3]}
		days[i] = decimal.Zero
	}

	for _, r := range requests {
		i := int(r.StartDate.Month()) - 1
		trends[i].Requests++
		if r.Status == sqlite.StatusApproved {
			days[i] = days[i].Add(decimal.NewFromFloat(r.Days))
		}
	}
	for i := range trends {
		trends[i].ApprovedDays = round2(days[i])
	}
	return trends
}

func computeTopRequesters(requests []sqlite.LeaveRequest, profiles []sqlite.Profile, limit int) []TopRequester {
	byID := make(map[string]sqlite.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	byEmployee := make(map[string]*TopRequester)
	approvedDays := make(map[string]decimal.Decimal)
	for _, r := range requests {
		if r.Status != sqlite.StatusApproved {
			continue
		}
		tr, ok := byEmployee[r.EmployeeID]
		if !ok {
			p := byID[r.EmployeeID]
			name := p.Name
			if name == "" {
				name = r.EmployeeID
			}
			tr = &TopRequester{EmployeeID: r.EmployeeID, Name: name, Department: p.Department}
			byEmployee[r.EmployeeID] = tr
			approvedDays[r.EmployeeID] = decimal.Zero
		}
		tr.Requests++
		approvedDays[r.EmployeeID] = approvedDays[r.EmployeeID].Add(decimal.NewFromFloat(r.Days))
	}

	out := make([]TopRequester, 0, len(byEmployee))
	for id, tr := range byEmployee {
		tr.ApprovedDays = round2(approvedDays[id])
		out = append(out, *tr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ApprovedDays != out[j].ApprovedDays {
			return out[i].ApprovedDays > out[j].ApprovedDays
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func computeDepartmentLeave(requests []sqlite.LeaveRequest, profiles []sqlite.Profile) []DepartmentLeave {
	deptOf := make(map[string]string, len(profiles))
	headcount := make(map[string]int)
	for _, p := range profiles {
		deptOf[p.ID] = p.Department
		headcount[p.Department]++
	}

	byDept := make(map[string]*DepartmentLeave)
	approvedDays := make(map[string]decimal.Decimal)
	for _, r := range requests {
		dept, ok := deptOf[r.EmployeeID]
		if !ok {
			// Request from a deleted profile; no department to attribute it to.
			continue
		}
		dl, ok := byDept[dept]
		if !ok {
			dl = &DepartmentLeave{Department: dept}
			byDept[dept] = dl
			approvedDays[dept] = decimal.Zero
		}
		dl.TotalRequests++
		if r.Status == sqlite.StatusApproved {
			dl.ApprovedRequests++
			approvedDays[dept] = approvedDays[dept].Add(decimal.NewFromFloat(r.Days))
		}
	}

	out := make([]DepartmentLeave, 0, len(byDept))
	for dept, dl := range byDept {
		dl.AvgDaysPerEmployee = avg(approvedDays[dept], headcount[dept])
		out = append(out, *dl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Department < out[j].Department })
	return out
}

func computeApprovalMetrics(requests []sqlite.LeaveRequest, now time.Time, staleAfter time.Duration) ApprovalMetrics {
	var m ApprovalMetrics
	totalHours := decimal.Zero
	timed := 0
	staleBefore := now.Add(-staleAfter)

	for _, r := range requests {
		switch r.Status {
		case sqlite.StatusApproved:
			m.Approved++
		case sqlite.StatusRejected:
			m.Rejected++
		case sqlite.StatusPending:
			if r.CreatedAt.Before(staleBefore) {
				m.StalePending++
			}
			continue
		default:
			continue
		}
		if r.ReviewedAt != nil {
			hours := r.ReviewedAt.Sub(r.CreatedAt).Hours()
			totalHours = totalHours.Add(decimal.NewFromFloat(hours))
			timed++
		}
	}

	m.TotalProcessed = m.Approved + m.Rejected
	if m.TotalProcessed > 0 {
		rate := decimal.NewFromInt(int64(m.Approved)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(m.TotalProcessed)))
		m.ApprovalRate = round2(rate)
	}
	m.AvgApprovalTimeHrs = avg(totalHours, timed)
	return m
}

// avg returns sum/count rounded to two places, or 0 for an empty count.
func avg(sum decimal.Decimal, count int) float64 {
	if count == 0 {
		return 0
	}
	return round2(sum.Div(decimal.NewFromInt(int64(count))))
}

func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

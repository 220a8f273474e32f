package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"storeops/backend/internal/domain"
	"storeops/backend/internal/store"
	"storeops/backend/internal/xid"
)

const maxSummaryRangeDays = 366

// ClockIn opens an attendance record for the acting user. At most one open
// record per user per day; a second clock-in on the same day fails with
// ErrAlreadyClockedIn.
func (s *Service) ClockIn(ctx context.Context, req domain.ClockInRequest) (domain.ClockInResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Username == "" {
		return domain.ClockInResponse{}, store.ErrValidation
	}
	if !actor.Role.AttendanceEligible() {
		return domain.ClockInResponse{}, store.ErrValidation
	}

	st, err := s.requireStore(ctx, req.StoreID)
	if err != nil {
		return domain.ClockInResponse{}, err
	}

	at := s.now()
	if req.At != nil {
		at = req.At.UTC()
	}

	record, err := s.repo.CreateAttendance(ctx, domain.AttendanceRecord{
		ID:       xid.New("att"),
		Username: actor.Username,
		StoreID:  st.ID,
		Date:     at.Format(domain.DateLayout),
		LoginAt:  at,
		LoginLat: req.Lat,
		LoginLng: req.Lng,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.ClockInResponse{}, ErrAlreadyClockedIn
		}
		return domain.ClockInResponse{}, fmt.Errorf("clock in user=%s: %w", actor.Username, err)
	}

	s.invalidateMatrices(ctx)
	s.logAudit(ctx, st.ID, "clock_in", "attendance", record.ID, "at="+at.Format(time.RFC3339))

	return domain.ClockInResponse{AttendanceID: record.ID, LoginAt: record.LoginAt}, nil
}

// ClockOut closes the acting user's open record for today. Exactly one
// clock-out per open record; with no open record it fails with
// ErrNoOpenSession.
func (s *Service) ClockOut(ctx context.Context, req domain.ClockOutRequest) (domain.ClockOutResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Username == "" {
		return domain.ClockOutResponse{}, store.ErrValidation
	}

	at := s.now()
	if req.At != nil {
		at = req.At.UTC()
	}
	date := at.Format(domain.DateLayout)

	open, err := s.repo.GetOpenAttendance(ctx, actor.Username, date)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ClockOutResponse{}, ErrNoOpenSession
		}
		return domain.ClockOutResponse{}, fmt.Errorf("clock out user=%s: %w", actor.Username, err)
	}

	minutes := int(math.Round(at.Sub(open.LoginAt).Minutes()))
	if minutes < 0 {
		return domain.ClockOutResponse{}, store.ErrValidation
	}

	closed, err := s.repo.CloseAttendance(ctx, actor.Username, date, at, req.Lat, req.Lng, minutes)
	if err != nil {
		if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
			return domain.ClockOutResponse{}, ErrNoOpenSession
		}
		return domain.ClockOutResponse{}, fmt.Errorf("clock out user=%s: %w", actor.Username, err)
	}

	s.invalidateMatrices(ctx)
	s.logAudit(ctx, closed.StoreID, "clock_out", "attendance", closed.ID,
		fmt.Sprintf("at=%s,minutes=%d", at.Format(time.RFC3339), minutes))

	return domain.ClockOutResponse{
		LoginAt:         closed.LoginAt,
		LogoutAt:        at,
		DurationMinutes: minutes,
	}, nil
}

func (s *Service) invalidateMatrices(ctx context.Context) {
	if err := s.matrices.Invalidate(ctx); err != nil {
		log.Printf("[service] WARN: failed to invalidate attendance matrix cache: %v", err)
	}
}

// AttendanceSummary builds the date-by-user matrix for a range. Every
// eligible user gets a row and every date in the range gets a cell, absent
// days included, so the grid is always |dates| x |users|. Results are served
// from the matrix cache when fresh.
func (s *Service) AttendanceSummary(ctx context.Context, q domain.AttendanceSummaryQuery) (*domain.AttendanceMatrix, error) {
	start, err := time.Parse(domain.DateLayout, q.StartDate)
	if err != nil {
		return nil, store.ErrValidation
	}
	end, err := time.Parse(domain.DateLayout, q.EndDate)
	if err != nil {
		return nil, store.ErrValidation
	}
	if end.Before(start) {
		return nil, store.ErrValidation
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > maxSummaryRangeDays {
		return nil, store.ErrValidation
	}

	if q.StoreID != "" {
		if _, err := s.requireStore(ctx, q.StoreID); err != nil {
			return nil, err
		}
	}

	cacheKey := strings.Join([]string{q.StoreID, q.Username, q.StartDate, q.EndDate}, "|")
	if cached, ok, err := s.matrices.Get(ctx, cacheKey); err != nil {
		log.Printf("[service] WARN: attendance matrix cache read failed: %v", err)
	} else if ok {
		return cached, nil
	}

	users, err := s.eligibleUsers(ctx, q)
	if err != nil {
		return nil, err
	}

	// Records are fetched across all stores; the user filter above decides
	// whose rows appear, and a user's days at other stores still count.
	records, err := s.repo.ListAttendance(ctx, "", q.Username, q.StartDate, q.EndDate)
	if err != nil {
		return nil, fmt.Errorf("attendance summary %s..%s: %w", q.StartDate, q.EndDate, err)
	}

	// A user can close a session and clock in again on the same day, so a
	// user-day may hold several records. Closed durations are summed and a
	// still-open session marks the whole day open.
	byUserDate := make(map[string]dayTotals, len(records))
	for _, rec := range records {
		key := rec.Username + "|" + rec.Date
		totals := byUserDate[key]
		totals.found = true
		if rec.Open() {
			totals.open = true
		} else if rec.DurationMinutes != nil {
			totals.minutes += *rec.DurationMinutes
		}
		byUserDate[key] = totals
	}

	columns := make([]string, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		columns = append(columns, d.Format(domain.DateLayout))
	}

	matrix := &domain.AttendanceMatrix{
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
		Columns:   columns,
		Rows:      make([]domain.AttendanceMatrixRow, 0, len(users)),
	}

	for _, user := range users {
		row := domain.AttendanceMatrixRow{
			Username: user.Username,
			StoreID:  user.StoreID,
			Cells:    make([]domain.AttendanceDayCell, 0, len(columns)),
		}
		for _, date := range columns {
			cell := classifyDay(date, byUserDate[user.Username+"|"+date])
			row.Cells = append(row.Cells, cell)
		}
		row.Summary = summarizeRow(row.Cells)
		matrix.Rows = append(matrix.Rows, row)
	}

	if err := s.matrices.Set(ctx, cacheKey, matrix, s.matrixTTL); err != nil {
		log.Printf("[service] WARN: attendance matrix cache write failed: %v", err)
	}
	return matrix, nil
}

// eligibleUsers returns the active staff and manager accounts that belong in
// the matrix, narrowed by the query's store and username filters.
func (s *Service) eligibleUsers(ctx context.Context, q domain.AttendanceSummaryQuery) ([]domain.UserAccount, error) {
	all, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("attendance summary: list users: %w", err)
	}

	users := make([]domain.UserAccount, 0, len(all))
	for _, u := range all {
		if !u.Active || !u.Role.AttendanceEligible() {
			continue
		}
		if q.StoreID != "" && u.StoreID != q.StoreID {
			continue
		}
		if q.Username != "" && u.Username != q.Username {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// dayTotals folds one user-day's records: the sum of closed session minutes
// plus whether any session is still open.
type dayTotals struct {
	minutes int
	open    bool
	found   bool
}

// classifyDay buckets one user-day by worked minutes:
//
//	>= 540 present, [480, 540) short hours, (0, 480) very short.
//
// A day with a session still open is clocked-in-only regardless of elapsed
// time, and no record at all is absent.
func classifyDay(date string, totals dayTotals) domain.AttendanceDayCell {
	cell := domain.AttendanceDayCell{Date: date, Status: domain.AttendanceAbsent}
	if totals.found {
		cell.Hours = roundHours(totals.minutes)
		switch {
		case totals.open:
			cell.Status = domain.AttendanceClockedInOnly
		case totals.minutes >= domain.FullDayMinutes:
			cell.Status = domain.AttendancePresent
		case totals.minutes >= domain.ShortDayMinutes:
			cell.Status = domain.AttendanceShortHours
		default:
			cell.Status = domain.AttendanceVeryShort
		}
	}
	cell.Color = domain.AttendanceCellColor(cell.Status)
	return cell
}

// summarizeRow totals a row's cells. Missing hours count the shortfall
// against a full day only for days the user actually worked; absent days add
// nothing.
func summarizeRow(cells []domain.AttendanceDayCell) domain.AttendanceUserSummary {
	summary := domain.AttendanceUserSummary{TotalDays: len(cells)}
	for _, cell := range cells {
		if cell.Status == domain.AttendanceAbsent {
			summary.AbsentDays++
			continue
		}
		summary.PresentDays++
		summary.TotalHours += cell.Hours
		if deficit := float64(domain.FullDayMinutes)/60 - cell.Hours; deficit > 0 {
			summary.MissingHours += deficit
		}
	}
	if summary.PresentDays > 0 {
		summary.AverageHours = round2(summary.TotalHours / float64(summary.PresentDays))
	}
	summary.TotalHours = round2(summary.TotalHours)
	summary.MissingHours = round2(summary.MissingHours)
	return summary
}

func roundHours(minutes int) float64 {
	return round2(float64(minutes) / 60)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

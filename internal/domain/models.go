package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dates are passed around as YYYY-MM-DD strings; DateLayout is the only
// accepted format.
const DateLayout = "2006-01-02"

const (
	StoreTypeArcade    = "arcade"
	StoreTypeDreamcube = "dreamcube"
	StoreTypeToys      = "toys"
	StoreTypeBooking   = "booking"
)

func ValidStoreType(t string) bool {
	switch t {
	case StoreTypeArcade, StoreTypeDreamcube, StoreTypeToys, StoreTypeBooking:
		return true
	}
	return false
}

type Store struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type StoreCreateRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// CashRegisterEntry tracks one store's cash drawer for one calendar day.
// ClosingBalance, ExpectedCash, Variance, CashSales and ClosedAt stay nil
// until the register is closed; closing is write-once.
type CashRegisterEntry struct {
	ID             string           `json:"id"`
	StoreID        string           `json:"store_id"`
	Date           string           `json:"date"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	ClosingBalance *decimal.Decimal `json:"closing_balance,omitempty"`
	ExpectedCash   *decimal.Decimal `json:"expected_cash,omitempty"`
	Variance       *decimal.Decimal `json:"variance,omitempty"`
	CashSales      *decimal.Decimal `json:"cash_sales,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	OpenedAt       time.Time        `json:"opened_at"`
	ClosedAt       *time.Time       `json:"closed_at,omitempty"`
}

func (e CashRegisterEntry) Closed() bool {
	return e.ClosingBalance != nil
}

type RegisterOpenRequest struct {
	StoreID        string          `json:"store_id"`
	Date           string          `json:"date"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Notes          string          `json:"notes"`
}

type RegisterOpenResponse struct {
	RegisterID     string          `json:"register_id"`
	StoreID        string          `json:"store_id"`
	StoreName      string          `json:"store_name"`
	Date           string          `json:"date"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	// Reopened is set when the register already existed for this store and
	// date and the call updated the existing row instead of creating one.
	Reopened bool `json:"reopened"`
}

type RegisterCloseRequest struct {
	StoreID        string          `json:"store_id"`
	Date           string          `json:"date"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Notes          string          `json:"notes"`
}

type RegisterCloseResponse struct {
	StoreID        string          `json:"store_id"`
	Date           string          `json:"date"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	CashSales      decimal.Decimal `json:"cash_sales"`
	ExpectedCash   decimal.Decimal `json:"expected_cash"`
	Variance       decimal.Decimal `json:"variance"`
}

// RegisterStatus is the read-only view of one store's register on one day.
// LiveCashSales and LiveExpected are computed at read time so a closer can
// preview the expected drawer before committing a close.
type RegisterStatus struct {
	StoreID        string           `json:"store_id"`
	StoreName      string           `json:"store_name"`
	StoreType      string           `json:"store_type"`
	Date           string           `json:"date"`
	Opened         bool             `json:"opened"`
	Closed         bool             `json:"closed"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	LiveCashSales  decimal.Decimal  `json:"live_cash_sales"`
	LiveExpected   decimal.Decimal  `json:"live_expected"`
	ClosingBalance *decimal.Decimal `json:"closing_balance,omitempty"`
	Variance       *decimal.Decimal `json:"variance,omitempty"`
	Notes          string           `json:"notes,omitempty"`
}

type RegisterStatusResponse struct {
	Date      string           `json:"date"`
	Registers []RegisterStatus `json:"registers"`
}

// RegisterAggregate is an immutable fold of register entries: no shared
// accumulator survives the request that built it.
type RegisterAggregate struct {
	DaysOpened      int             `json:"days_opened"`
	DaysClosed      int             `json:"days_closed"`
	PerfectMatches  int             `json:"perfect_matches"`
	VarianceDays    int             `json:"variance_days"`
	TotalOpening    decimal.Decimal `json:"total_opening"`
	TotalClosing    decimal.Decimal `json:"total_closing"`
	TotalExpected   decimal.Decimal `json:"total_expected"`
	TotalVariance   decimal.Decimal `json:"total_variance"`
	TotalCashSales  decimal.Decimal `json:"total_cash_sales"`
	AverageOpening  decimal.Decimal `json:"average_opening"`
	AverageVariance decimal.Decimal `json:"average_variance"`
}

type MonthlyRegisterSummary struct {
	Year        int                          `json:"year"`
	Month       int                          `json:"month"`
	ByStoreType map[string]RegisterAggregate `json:"by_store_type"`
	Overall     RegisterAggregate            `json:"overall"`
}

// SaleRecord is one point-of-sale entry. TotalAmount is always derived from
// the four method amounts, never accepted from the caller.
type SaleRecord struct {
	ID            string          `json:"id"`
	StoreID       string          `json:"store_id"`
	Date          string          `json:"date"`
	Time          string          `json:"time,omitempty"`
	CashAmount    decimal.Decimal `json:"cash_amount"`
	UPIAmount     decimal.Decimal `json:"upi_amount"`
	CardAmount    decimal.Decimal `json:"card_amount"`
	BookingAmount decimal.Decimal `json:"booking_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	CustomerCount int             `json:"customer_count"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type SaleCreateRequest struct {
	StoreID       string          `json:"store_id"`
	Date          string          `json:"date"`
	Time          string          `json:"time"`
	CashAmount    decimal.Decimal `json:"cash_amount"`
	UPIAmount     decimal.Decimal `json:"upi_amount"`
	CardAmount    decimal.Decimal `json:"card_amount"`
	BookingAmount decimal.Decimal `json:"booking_amount"`
	CustomerCount int             `json:"customer_count"`
	Notes         string          `json:"notes"`
}

type SaleUpdateRequest struct {
	CashAmount    *decimal.Decimal `json:"cash_amount,omitempty"`
	UPIAmount     *decimal.Decimal `json:"upi_amount,omitempty"`
	CardAmount    *decimal.Decimal `json:"card_amount,omitempty"`
	BookingAmount *decimal.Decimal `json:"booking_amount,omitempty"`
	CustomerCount *int             `json:"customer_count,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
}

type ExpenseRecord struct {
	ID        string          `json:"id"`
	StoreID   string          `json:"store_id"`
	Date      string          `json:"date"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	PaidVia   string          `json:"paid_via"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type ExpenseCreateRequest struct {
	StoreID  string          `json:"store_id"`
	Date     string          `json:"date"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	PaidVia  string          `json:"paid_via"`
	Notes    string          `json:"notes"`
}

// AttendanceRecord is one user's workday. Logout fields and DurationMinutes
// are nil until clock-out; an open record is the only state that accepts a
// clock-out, and it accepts exactly one.
type AttendanceRecord struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	StoreID         string     `json:"store_id"`
	Date            string     `json:"date"`
	LoginAt         time.Time  `json:"login_at"`
	LoginLat        float64    `json:"login_lat"`
	LoginLng        float64    `json:"login_lng"`
	LogoutAt        *time.Time `json:"logout_at,omitempty"`
	LogoutLat       *float64   `json:"logout_lat,omitempty"`
	LogoutLng       *float64   `json:"logout_lng,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
}

func (r AttendanceRecord) Open() bool {
	return r.LogoutAt == nil
}

type ClockInRequest struct {
	StoreID string     `json:"store_id"`
	Lat     float64    `json:"lat"`
	Lng     float64    `json:"lng"`
	At      *time.Time `json:"at,omitempty"`
}

type ClockInResponse struct {
	AttendanceID string    `json:"attendance_id"`
	LoginAt      time.Time `json:"login_at"`
}

type ClockOutRequest struct {
	Lat float64    `json:"lat"`
	Lng float64    `json:"lng"`
	At  *time.Time `json:"at,omitempty"`
}

type ClockOutResponse struct {
	LoginAt         time.Time `json:"login_at"`
	LogoutAt        time.Time `json:"logout_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

// Attendance day classification. FullDayMinutes is the 9-hour target;
// ShortDayMinutes the 8-hour floor below which a day counts as very short.
const (
	FullDayMinutes  = 9 * 60
	ShortDayMinutes = 8 * 60
)

const (
	AttendanceAbsent        = "absent"
	AttendanceClockedInOnly = "clocked_in_only"
	AttendanceVeryShort     = "very_short"
	AttendanceShortHours    = "short_hours"
	AttendancePresent       = "present"
)

// AttendanceCellColor maps a day classification to its review color.
func AttendanceCellColor(status string) string {
	switch status {
	case AttendancePresent:
		return "green"
	case AttendanceShortHours:
		return "orange"
	case AttendanceClockedInOnly:
		return "yellow"
	default:
		return "red"
	}
}

type AttendanceDayCell struct {
	Date   string  `json:"date"`
	Status string  `json:"status"`
	Color  string  `json:"color"`
	Hours  float64 `json:"hours"`
}

type AttendanceUserSummary struct {
	TotalDays    int     `json:"total_days"`
	PresentDays  int     `json:"present_days"`
	AbsentDays   int     `json:"absent_days"`
	TotalHours   float64 `json:"total_hours"`
	MissingHours float64 `json:"missing_hours"`
	AverageHours float64 `json:"average_hours"`
}

type AttendanceMatrixRow struct {
	Username string                `json:"username"`
	StoreID  string                `json:"store_id"`
	Cells    []AttendanceDayCell   `json:"cells"`
	Summary  AttendanceUserSummary `json:"summary"`
}

type AttendanceMatrix struct {
	StartDate string                `json:"start_date"`
	EndDate   string                `json:"end_date"`
	Columns   []string              `json:"columns"`
	Rows      []AttendanceMatrixRow `json:"rows"`
}

type AttendanceSummaryQuery struct {
	StoreID   string
	Username  string
	StartDate string
	EndDate   string
}

const (
	ProblemStatusOpen       = "open"
	ProblemStatusInProgress = "in_progress"
	ProblemStatusResolved   = "resolved"
)

func ValidProblemStatus(s string) bool {
	switch s {
	case ProblemStatusOpen, ProblemStatusInProgress, ProblemStatusResolved:
		return true
	}
	return false
}

const (
	ProblemSeverityLow    = "low"
	ProblemSeverityMedium = "medium"
	ProblemSeverityHigh   = "high"
)

type ProblemReport struct {
	ID          string    `json:"id"`
	StoreID     string    `json:"store_id"`
	Equipment   string    `json:"equipment"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	Status      string    `json:"status"`
	ReportedBy  string    `json:"reported_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProblemCreateRequest struct {
	StoreID     string `json:"store_id"`
	Equipment   string `json:"equipment"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

type ProblemStatusUpdateRequest struct {
	Status string `json:"status"`
}

// DailyReport composes ledger reads for one store and day.
type DailyReport struct {
	StoreID       string          `json:"store_id"`
	Date          string          `json:"date"`
	SaleCount     int             `json:"sale_count"`
	CustomerCount int             `json:"customer_count"`
	CashTotal     decimal.Decimal `json:"cash_total"`
	UPITotal      decimal.Decimal `json:"upi_total"`
	CardTotal     decimal.Decimal `json:"card_total"`
	BookingTotal  decimal.Decimal `json:"booking_total"`
	SalesTotal    decimal.Decimal `json:"sales_total"`
	ExpenseTotal  decimal.Decimal `json:"expense_total"`
	OpenProblems  int             `json:"open_problems"`
	Register      *RegisterStatus `json:"register,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        Role   `json:"role"`
	StoreID     string `json:"store_id,omitempty"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     Role
	StoreID  string
}

// UserAccount is the persistence model for auth credentials. Password holds
// a bcrypt hash.
type UserAccount struct {
	Username  string
	Password  string
	Role      Role
	StoreID   string
	Active    bool
	CreatedAt time.Time
}

// StaffUser is the public view of an account (no credentials).
type StaffUser struct {
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	StoreID   string    `json:"store_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
	StoreID  string `json:"store_id"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	StoreID       string    `json:"store_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     Role      `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

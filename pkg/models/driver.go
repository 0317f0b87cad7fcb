package models

import "time"

type Driver struct {
	ID         int64     `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	FullName   string    `json:"full_name"`
	Phone      *string   `json:"phone"`
	Status     string    `json:"status"` // pending, onboarding, pending_review, active, blocked
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const (
	DriverStatusPending       = "pending"
	DriverStatusOnboarding    = "onboarding"
	DriverStatusPendingReview = "pending_review"
	DriverStatusActive        = "active"
	DriverStatusBlocked       = "blocked"
)

type DriverProfile struct {
	ID            int64      `json:"id"`
	DriverID      int64      `json:"driver_id"`
	FullName      string     `json:"full_name"`
	DateOfBirth   *time.Time `json:"date_of_birth"`
	LicenseNumber string     `json:"license_number"`
	Address       string     `json:"address"`
	CreatedAt     time.Time  `json:"created_at"`
}

type VehicleProfile struct {
	ID              int64     `json:"id"`
	DriverID        int64     `json:"driver_id"`
	DriverProfileID int64     `json:"driver_profile_id"`
	Brand           string    `json:"brand"`
	Model           string    `json:"model"`
	Year            int       `json:"year"`
	Color           string    `json:"color"`
	LicensePlate    string    `json:"license_plate"`
	CreatedAt       time.Time `json:"created_at"`
}

type BankProfile struct {
	ID            int64     `json:"id"`
	DriverID      int64     `json:"driver_id"`
	AccountHolder string    `json:"account_holder"`
	AccountNumber string    `json:"account_number"`
	IFSC          string    `json:"ifsc"`
	BankName      string    `json:"bank_name"`
	CreatedAt     time.Time `json:"created_at"`
}

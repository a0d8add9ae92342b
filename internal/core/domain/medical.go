package domain

import "time"

// DoctorInfo is the doctor card attached to accounts with the doctor role.
type DoctorInfo struct {
	DoctorID       int64
	Education      string
	Qualification  string
	Specialization string
	PhotoURL       string
}

// ClinicSummary is the short clinic view embedded into appointments.
type ClinicSummary struct {
	ID      int64
	Name    string
	Address string
}

// DoctorSummary is the short doctor view embedded into appointments.
type DoctorSummary struct {
	ID             int64
	Name           string
	Surname        string
	Patronymic     string
	Specialization string
}

// Appointment is a patient's booked visit.
type Appointment struct {
	ID     int64
	Date   time.Time
	Status string
	Clinic ClinicSummary
	Doctor DoctorSummary
}

// Profile aggregates everything returned to the account owner.
type Profile struct {
	Account      Account
	Role         *Role
	Doctor       *DoctorInfo
	Appointments []Appointment
}

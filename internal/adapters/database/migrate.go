package database

import (
	"context"
	"fmt"

	"github.com/Zubair-mohamed/myclinic-backend/internal/infrastructure/clients/postgres"
)

// migrations are applied in order on boot. Statements are idempotent so a
// restart against an existing database is a no-op.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS hospitals (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		refund_policy_percentage INT NOT NULL DEFAULT 100
			CHECK (refund_policy_percentage BETWEEN 0 AND 100),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS service_types (
		id TEXT PRIMARY KEY,
		hospital_id TEXT NOT NULL REFERENCES hospitals(id),
		name TEXT NOT NULL,
		duration_minutes INT NOT NULL,
		cost NUMERIC(12,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		disabled BOOLEAN NOT NULL DEFAULT FALSE,
		specialty_id TEXT,
		language TEXT NOT NULL DEFAULT 'en',
		push_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		sms_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		email_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		reminders_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		reminder_24h_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		reminder_1h_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS user_hospitals (
		user_id TEXT NOT NULL REFERENCES users(id),
		hospital_id TEXT NOT NULL REFERENCES hospitals(id),
		PRIMARY KEY (user_id, hospital_id)
	)`,

	`CREATE TABLE IF NOT EXISTS doctor_availability (
		doctor_id TEXT NOT NULL REFERENCES users(id),
		weekday INT NOT NULL CHECK (weekday BETWEEN 0 AND 6),
		available BOOLEAN NOT NULL DEFAULT FALSE,
		start_time TEXT,
		end_time TEXT,
		hospital_id TEXT,
		PRIMARY KEY (doctor_id, weekday)
	)`,

	`CREATE TABLE IF NOT EXISTS doctor_unavailability (
		id TEXT PRIMARY KEY,
		doctor_id TEXT NOT NULL REFERENCES users(id),
		from_date TEXT NOT NULL,
		to_date TEXT NOT NULL,
		reason TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS appointments (
		id TEXT PRIMARY KEY,
		doctor_id TEXT NOT NULL REFERENCES users(id),
		patient_id TEXT NOT NULL REFERENCES users(id),
		hospital_id TEXT NOT NULL REFERENCES hospitals(id),
		service_type_id TEXT NOT NULL REFERENCES service_types(id),
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		cost NUMERIC(12,2) NOT NULL,
		status TEXT NOT NULL,
		cancellation_resolution TEXT NOT NULL DEFAULT '',
		is_refunded BOOLEAN NOT NULL DEFAULT FALSE,
		reminder_set BOOLEAN NOT NULL DEFAULT FALSE,
		reminder_24h_sent BOOLEAN NOT NULL DEFAULT FALSE,
		reminder_24h_sent_at TIMESTAMPTZ,
		reminder_1h_sent BOOLEAN NOT NULL DEFAULT FALSE,
		reminder_1h_sent_at TIMESTAMPTZ,
		queue_number TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	// Two concurrent bookings for the same doctor+date+time: the loser gets
	// a unique violation mapped to Conflict.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_appointments_doctor_slot
		ON appointments (doctor_id, date, time)
		WHERE status = 'upcoming'`,

	`CREATE INDEX IF NOT EXISTS ix_appointments_patient_date
		ON appointments (patient_id, date)`,

	`CREATE INDEX IF NOT EXISTS ix_appointments_reminders
		ON appointments (status, reminder_24h_sent, reminder_1h_sent)`,

	`CREATE TABLE IF NOT EXISTS queue_items (
		id TEXT PRIMARY KEY,
		doctor_id TEXT NOT NULL REFERENCES users(id),
		hospital_id TEXT NOT NULL REFERENCES hospitals(id),
		patient_id TEXT REFERENCES users(id),
		visitor_name TEXT NOT NULL DEFAULT '',
		appointment_id TEXT REFERENCES appointments(id),
		ticket_number TEXT NOT NULL,
		status TEXT NOT NULL,
		check_in_time TIMESTAMPTZ NOT NULL,
		served_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	// At most one active line membership per registered patient, anywhere.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_queue_active_patient
		ON queue_items (patient_id)
		WHERE status IN ('waiting','serving','held') AND patient_id IS NOT NULL`,

	`CREATE INDEX IF NOT EXISTS ix_queue_doctor_status
		ON queue_items (doctor_id, status, check_in_time)`,

	`CREATE TABLE IF NOT EXISTS wallets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE REFERENCES users(id),
		balance NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		currency TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		wallet_id TEXT NOT NULL REFERENCES wallets(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		hospital_id TEXT REFERENCES hospitals(id),
		direction TEXT NOT NULL CHECK (direction IN ('credit','debit')),
		amount NUMERIC(12,2) NOT NULL CHECK (amount > 0),
		category TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'completed',
		description TEXT NOT NULL DEFAULT '',
		reference_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS ix_transactions_user
		ON transactions (user_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS ticket_sequences (
		doctor_id TEXT NOT NULL,
		day TEXT NOT NULL,
		last_value INT NOT NULL DEFAULT 0,
		PRIMARY KEY (doctor_id, day)
	)`,

	`CREATE TABLE IF NOT EXISTS notification_log (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		channel TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error TEXT,
		sent_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate applies the schema to the connected database
func Migrate(ctx context.Context, client *postgres.Client) error {
	for i, stmt := range migrations {
		if _, err := client.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}

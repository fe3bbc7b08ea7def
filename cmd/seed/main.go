package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/Zubair-mohamed/myclinic-backend/internal/adapters/database"
	"github.com/Zubair-mohamed/myclinic-backend/internal/application/services"
	"github.com/Zubair-mohamed/myclinic-backend/internal/infrastructure/clients/postgres"
	"github.com/Zubair-mohamed/myclinic-backend/pkg/config"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Seeds a development database with two clinic sites, a set of doctors with
// weekly schedules, and demo patients holding funded wallets.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	ctx := context.Background()

	if err := database.Migrate(ctx, pgClient); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				notification_log,
				ticket_sequences,
				transactions,
				wallets,
				queue_items,
				appointments,
				doctor_unavailability,
				doctor_availability,
				user_hospitals,
				users,
				service_types,
				hospitals
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	db := goqu.New("postgres", pgClient.DB())
	now := time.Now()

	// 1. Hospitals
	type hospitalSeed struct {
		id     string
		name   string
		refund int
	}
	hospitals := []hospitalSeed{
		{id: uuid.New().String(), name: "Nile Valley Clinic", refund: 80},
		{id: uuid.New().String(), name: "Garden City Medical Center", refund: 100},
	}
	for _, h := range hospitals {
		insert(ctx, pgClient, db, "hospitals", goqu.Record{
			"id":                       h.id,
			"name":                     h.name,
			"refund_policy_percentage": h.refund,
			"created_at":               now,
			"updated_at":               now,
		})
	}
	log.Printf("Seeded %d hospitals", len(hospitals))

	// 2. Service types per hospital
	type serviceSeed struct {
		name     string
		duration int
		cost     int64
	}
	serviceTypes := []serviceSeed{
		{name: "General Consultation", duration: 15, cost: 50},
		{name: "Follow-up Visit", duration: 10, cost: 25},
		{name: "Specialist Consultation", duration: 30, cost: 120},
	}
	serviceCount := 0
	for _, h := range hospitals {
		for _, s := range serviceTypes {
			insert(ctx, pgClient, db, "service_types", goqu.Record{
				"id":               uuid.New().String(),
				"hospital_id":      h.id,
				"name":             s.name,
				"duration_minutes": s.duration,
				"cost":             decimal.NewFromInt(s.cost),
				"created_at":       now,
				"updated_at":       now,
			})
			serviceCount++
		}
	}
	log.Printf("Seeded %d service types", serviceCount)

	// 3. Doctors with weekly schedules (Sunday through Thursday)
	type doctorSeed struct {
		name      string
		specialty string
		hospital  hospitalSeed
		start     string
		end       string
	}
	doctors := []doctorSeed{
		{name: "Ahmed Hassan", specialty: "cardiology", hospital: hospitals[0], start: "09:00", end: "15:00"},
		{name: "Basma Khalil", specialty: "cardiology", hospital: hospitals[0], start: "10:00", end: "16:00"},
		{name: "Mona Farouk", specialty: "dermatology", hospital: hospitals[0], start: "09:00", end: "13:00"},
		{name: "Karim Mostafa", specialty: "pediatrics", hospital: hospitals[1], start: "08:00", end: "14:00"},
		{name: "Laila Nasser", specialty: "orthopedics", hospital: hospitals[1], start: "12:00", end: "20:00"},
	}
	for _, d := range doctors {
		doctorID := uuid.New().String()
		insert(ctx, pgClient, db, "users", goqu.Record{
			"id":           doctorID,
			"name":         d.name,
			"role":         "doctor",
			"specialty_id": d.specialty,
			"language":     "ar",
			"created_at":   now,
			"updated_at":   now,
		})
		insert(ctx, pgClient, db, "user_hospitals", goqu.Record{
			"user_id":     doctorID,
			"hospital_id": d.hospital.id,
		})
		for weekday := 0; weekday <= 6; weekday++ {
			// Friday (5) and Saturday (6) off
			available := weekday <= 4
			record := goqu.Record{
				"doctor_id": doctorID,
				"weekday":   weekday,
				"available": available,
			}
			if available {
				record["start_time"] = d.start
				record["end_time"] = d.end
				record["hospital_id"] = d.hospital.id
			}
			insert(ctx, pgClient, db, "doctor_availability", record)
		}
	}
	log.Printf("Seeded %d doctors", len(doctors))

	// 4. Staff and admin accounts
	staff := []struct {
		name string
		role string
	}{
		{name: "Front Desk", role: "staff"},
		{name: "Clinic Manager", role: "manager"},
		{name: "System Admin", role: "admin"},
	}
	for _, s := range staff {
		insert(ctx, pgClient, db, "users", goqu.Record{
			"id":         uuid.New().String(),
			"name":       s.name,
			"role":       s.role,
			"language":   "en",
			"created_at": now,
			"updated_at": now,
		})
	}
	log.Printf("Seeded %d staff accounts", len(staff))

	// 5. Demo patients with funded wallets
	ledger := services.NewLedgerService(
		database.NewWalletAdapter(pgClient),
		database.NewTxManager(pgClient),
		cfg.Clinic.Currency,
	)

	gofakeit.Seed(42)
	patientCount := 20
	for i := 0; i < patientCount; i++ {
		patientID := uuid.New().String()
		language := "ar"
		if i%3 == 0 {
			language = "en"
		}
		insert(ctx, pgClient, db, "users", goqu.Record{
			"id":          patientID,
			"name":        gofakeit.Name(),
			"role":        "patient",
			"language":    language,
			"sms_enabled": i%2 == 0,
			"created_at":  now,
			"updated_at":  now,
		})

		balance := decimal.NewFromInt(int64(gofakeit.Number(50, 500)))
		if _, err := ledger.EnsureWallet(ctx, patientID, balance); err != nil {
			log.Printf("Failed to fund wallet for patient %s: %v", patientID, err)
		}
	}
	log.Printf("Seeded %d patients with funded wallets", patientCount)

	log.Println("Seeding complete")
}

func insert(ctx context.Context, client *postgres.Client, db *goqu.Database, table string, record goqu.Record) {
	query, args, err := db.Insert(table).Rows(record).ToSQL()
	if err != nil {
		log.Fatalf("Failed to build insert for %s: %v", table, err)
	}
	if _, err := client.DB().ExecContext(ctx, query, args...); err != nil {
		log.Fatalf("Failed to insert into %s: %v", table, err)
	}
}

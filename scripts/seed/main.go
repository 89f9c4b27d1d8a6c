// Command seed loads a small demo roster and schedule into the configured
// database so the board has something to lay out locally.
package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/fieldvue/dispatch-api/internal/models"
	"github.com/fieldvue/dispatch-api/internal/repository"
	"github.com/fieldvue/dispatch-api/pkg/config"
	"github.com/fieldvue/dispatch-api/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	resources := []struct {
		id, name string
		lat, lng float64
	}{
		{"tech-alice", "Alice Moreno", 40.7357, -74.1724},
		{"tech-bram", "Bram Okafor", 40.7282, -74.0776},
		{"tech-cleo", "Cleo Tanaka", 40.7440, -74.0324},
	}
	for _, r := range resources {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO resources (id, display_name, lat, lng, active, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, true, now(), now())
			 ON CONFLICT (id) DO NOTHING`,
			r.id, r.name, r.lat, r.lng); err != nil {
			log.Fatalf("seed resource %s: %v", r.id, err)
		}
	}

	repo := repository.NewAppointmentRepository(db)
	today := time.Now().Truncate(24 * time.Hour)
	at := func(h, m int) time.Time { return today.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	appts := []models.Appointment{
		{Title: "Furnace inspection", ResourceID: ns("tech-alice"), StartTime: at(9, 0), EndTime: at(10, 0), Status: models.StatusScheduled, Priority: models.PriorityMedium, Lat: nf(40.7335), Lng: nf(-74.1650)},
		{Title: "Water heater swap", ResourceID: ns("tech-alice"), StartTime: at(9, 30), EndTime: at(10, 30), Status: models.StatusScheduled, Priority: models.PriorityHigh, Lat: nf(40.7405), Lng: nf(-74.1530)},
		{Title: "Thermostat wiring", ResourceID: ns("tech-alice"), StartTime: at(9, 45), EndTime: at(10, 15), Status: models.StatusScheduled, Priority: models.PriorityLow},
		{Title: "Duct cleaning", ResourceID: ns("tech-bram"), StartTime: at(11, 0), EndTime: at(12, 30), Status: models.StatusScheduled, Priority: models.PriorityMedium, Lat: nf(40.7190), Lng: nf(-74.0805)},
		{Title: "Compressor diagnosis", ResourceID: ns("tech-bram"), StartTime: at(14, 0), EndTime: at(15, 0), Status: models.StatusScheduled, Priority: models.PriorityUrgent, Lat: nf(40.7620), Lng: nf(-74.0110)},
		{Title: "Weekly filter route", ResourceID: ns("tech-cleo"), StartTime: at(8, 0), EndTime: at(9, 0), Status: models.StatusScheduled, Priority: models.PriorityLow, Recurrence: ns("FREQ=WEEKLY;COUNT=8")},
		{Title: "Leak callback", Status: models.StatusScheduled, Priority: models.PriorityHigh},
		{Title: "Annual maintenance", Status: models.StatusScheduled, Priority: models.PriorityLow},
	}
	for i := range appts {
		if err := repo.Create(ctx, &appts[i]); err != nil {
			log.Fatalf("seed appointment %q: %v", appts[i].Title, err)
		}
	}

	log.Printf("seeded %d resources and %d appointments", len(resources), len(appts))
}

func ns(s string) sql.NullString   { return sql.NullString{String: s, Valid: true} }
func nf(f float64) sql.NullFloat64 { return sql.NullFloat64{Float64: f, Valid: true} }

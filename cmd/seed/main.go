package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"github.com/hackgods/assistance-scheduling/internal/appointment"
	"github.com/hackgods/assistance-scheduling/internal/availability"
	"github.com/hackgods/assistance-scheduling/internal/backend"
	"github.com/hackgods/assistance-scheduling/internal/config"
	"github.com/hackgods/assistance-scheduling/internal/logger"
	redisclient "github.com/hackgods/assistance-scheduling/internal/redis"
	"github.com/hackgods/assistance-scheduling/internal/store"
)

var professions = []string{
	"Psicologia",
	"Servico Social",
	"Direito",
	"Nutricao",
	"Fisioterapia",
	"Pedagogia",
	"Fonoaudiologia",
	"Terapia Ocupacional",
}

var modalities = []string{
	string(appointment.ModalityOnline),
	string(appointment.ModalityInPerson),
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewZapLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.APIToken == "" {
		log.Fatal("API_TOKEN is required")
	}
	if len(cfg.SyncVolunteers) == 0 {
		log.Fatal("SYNC_VOLUNTEER_IDS lists the volunteers to seed")
	}
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn("STORE_DRIVER=memory, seeded profiles and calendars die with this process")
	}

	slotsPerVolunteer := getInt("SEED_SLOTS_PER_VOLUNTEER", 20)
	days := getInt("SEED_DAYS_AHEAD", 30)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	st, rdb, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal("store connection error", zap.Error(err))
	}
	defer st.Close()

	var locker availability.Locker = availability.NewLocalLocker().WithTTL(cfg.LockTTL)
	if rdb != nil {
		locker = redisclient.NewVolunteerLocker(rdb, cfg.LockTTL, redisclient.WithAcquireWait(cfg.LockWait))
	}

	client := backend.NewClient(cfg.APIBaseURL,
		backend.WithTimeout(cfg.APITimeout),
		backend.WithTokenSource(backend.StaticToken(cfg.APIToken)),
		backend.WithLogger(log.Named("backend")),
	)
	calendar := availability.NewManager(availability.NewHTTPRepository(client), st, locker, log.Named("calendar"))

	gofakeit.Seed(time.Now().UnixNano())

	log.Info("seed starting",
		zap.Int("volunteers", len(cfg.SyncVolunteers)),
		zap.Int("slots_per_volunteer", slotsPerVolunteer),
	)

	for _, id := range cfg.SyncVolunteers {
		if err := seedProfile(ctx, st, id); err != nil {
			log.Fatal("seed profile", zap.Int64("volunteer_id", id), zap.Error(err))
		}
		created, err := seedSlots(ctx, calendar, id, slotsPerVolunteer, days)
		if err != nil {
			log.Fatal("seed slots", zap.Int64("volunteer_id", id), zap.Error(err))
		}
		log.Info("volunteer seeded", zap.Int64("volunteer_id", id), zap.Int("slots", created))
	}

	log.Info("seed complete")
}

func seedProfile(ctx context.Context, st store.Store, volunteerID int64) error {
	return st.SaveProfile(ctx, store.Profile{
		UserID:     volunteerID,
		Name:       gofakeit.Name(),
		Email:      gofakeit.Email(),
		UserType:   string(appointment.UserVolunteer),
		Profession: gofakeit.RandomString(professions),
		Address:    gofakeit.Street() + ", " + gofakeit.City(),
		UpdatedAt:  time.Now().UTC(),
	})
}

// seedSlots books random half-hour slots between 08:00 and 17:30 on the
// next weekdays. Times the volunteer already offers are skipped.
func seedSlots(ctx context.Context, calendar *availability.Manager, volunteerID int64, count, daysAhead int) (int, error) {
	if _, err := calendar.Resync(ctx, volunteerID); err != nil {
		return 0, fmt.Errorf("resync before seeding: %w", err)
	}

	today := time.Now()
	created := 0
	for attempts := 0; created < count && attempts < count*4; attempts++ {
		d := today.AddDate(0, 0, gofakeit.Number(1, daysAhead))
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		day := d.Format(backend.DayLayout)
		clock := fmt.Sprintf("%02d:%02d", gofakeit.Number(8, 17), 30*gofakeit.Number(0, 1))
		modality := appointment.Modality(gofakeit.RandomString(modalities))

		_, err := calendar.AddSlot(ctx, volunteerID, day, clock, modality)
		if errors.Is(err, availability.ErrSlotExists) {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"villa/internal/availability"
	"villa/internal/config"
	"villa/internal/database"
	"villa/internal/domain"
	"villa/internal/email"
	"villa/internal/events"
	"villa/internal/models"
	"villa/internal/pricing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var tokyo = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		panic(err)
	}
	return loc
}()

// testNow is 2026-07-01 10:00 in Tokyo.
var testNow = time.Date(2026, 7, 1, 10, 0, 0, 0, tokyo)

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []domain.EmailMessage
}

func (m *fakeMailer) Send(_ context.Context, msg domain.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, msg.Subject)
	}
	return out
}

type fakeGateway struct {
	createErr error
	status    string
	created   []int64
}

func (g *fakeGateway) CreateIntent(_ context.Context, amount int64, currency string, _ map[string]string) (*domain.PaymentIntent, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, amount)
	return &domain.PaymentIntent{ID: "pi_test", ClientSecret: "pi_test_secret", Amount: amount, Currency: currency, Status: domain.IntentRequiresMethod}, nil
}

func (g *fakeGateway) UpdateIntentAmount(_ context.Context, id string, amount int64) (*domain.PaymentIntent, error) {
	return &domain.PaymentIntent{ID: id, Amount: amount}, nil
}

func (g *fakeGateway) GetIntent(_ context.Context, id string) (*domain.PaymentIntent, error) {
	return &domain.PaymentIntent{ID: id, Status: g.status}, nil
}

type fakeDispatcher struct {
	err    error
	queued []string
}

func (d *fakeDispatcher) EnqueueReservation(_ context.Context, r *models.Reservation) error {
	if d.err != nil {
		return d.err
	}
	d.queued = append(d.queued, r.ReservationNumber)
	return nil
}

type harness struct {
	db         *database.DB
	res        *ReservationService
	aff        *AffiliateService
	mailer     *fakeMailer
	gateway    *fakeGateway
	dispatcher *fakeDispatcher
	events     []string
}

func testConfig() (config.PricingConfig, config.BookingConfig, []config.MealPlanConfig) {
	return config.PricingConfig{
			BaseRate:             20000,
			HighSeasonMultiplier: 1.5,
			HighSeasons:          []config.SeasonWindow{{Start: "07-15", End: "08-31"}},
		},
		config.BookingConfig{
			Timezone:    "Asia/Tokyo",
			WindowStart: "2026-04-01",
			WindowEnd:   "2027-03-31",
			Inventory:   2,
		},
		[]config.MealPlanConfig{{ID: "bbq", Name: "BBQ dinner", Price: 4500, Menus: []string{"beef", "seafood"}}}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "villa.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	pricingCfg, bookingCfg, meals := testConfig()
	prices := pricing.NewPriceTable(pricingCfg, bookingCfg)
	catalog := pricing.NewMealCatalog(meals)
	avail := availability.NewService(db, prices, nil, bookingCfg.Inventory, &logger)

	composer, err := email.NewComposer("admin@villa.test", "ops@villa.test", map[string]string{"bbq": "BBQ dinner"})
	require.NoError(t, err)

	h := &harness{
		db:         db,
		mailer:     &fakeMailer{},
		gateway:    &fakeGateway{status: domain.IntentSucceeded},
		dispatcher: &fakeDispatcher{},
	}
	bus := events.NewEventBus()
	bus.Subscribe(func(e *events.Event) error {
		h.events = append(h.events, e.Type)
		return nil
	}, events.AllReservationEvents...)

	notifier := NewNotifier(h.mailer, db, &logger)
	h.res = NewReservationService(db, avail, prices, catalog, h.gateway, h.dispatcher, notifier, composer, bus,
		ReservationSettings{Inventory: 2, CouponDiscount: 5000, Currency: "jpy", Location: tokyo}, &logger)
	h.res.now = func() time.Time { return testNow }

	h.aff = NewAffiliateService(db, db, notifier, composer, 3000, tokyo, &logger)
	h.aff.now = func() time.Time { return testNow }
	return h
}

// stayInput books units for nights from checkIn with two guests per unit and night.
func stayInput(checkIn string, nights, units int, method string) CreateReservationInput {
	start, _ := models.ParseDate(checkIn)
	guests := models.GuestCounts{}
	for i := 0; i < nights; i++ {
		date := models.FormatDate(start.AddDate(0, 0, i))
		guests[date] = map[int]models.Guests{}
		for unit := 1; unit <= units; unit++ {
			guests[date][unit] = models.Guests{Male: 1, Female: 1}
		}
	}
	return CreateReservationInput{
		GuestName:     "Hanako Yamada",
		Email:         "hanako@example.com",
		Phone:         "090-0000-0000",
		CheckInDate:   checkIn,
		NumNights:     nights,
		NumUnits:      units,
		Guests:        guests,
		PaymentMethod: method,
	}
}

func hasSubject(subjects []string, part string) bool {
	for _, s := range subjects {
		if strings.Contains(s, part) {
			return true
		}
	}
	return false
}

var errBoom = errors.New("boom")

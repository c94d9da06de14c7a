package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"
	"strconv"
	"strings"

	"villa/internal/domain"
	"villa/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// Composer renders every transactional message the system sends.
type Composer struct {
	tmpl       *template.Template
	adminEmail string
	opsEmail   string
	planNames  map[string]string
}

// NewComposer parses the embedded templates. planNames maps meal plan ids to
// display names; unknown ids are shown as-is.
func NewComposer(adminEmail, opsEmail string, planNames map[string]string) (*Composer, error) {
	tmpl, err := template.New("email").Funcs(template.FuncMap{
		"yen": FormatYen,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	if opsEmail == "" {
		opsEmail = adminEmail
	}
	return &Composer{tmpl: tmpl, adminEmail: adminEmail, opsEmail: opsEmail, planNames: planNames}, nil
}

func (c *Composer) AdminEmail() string { return c.adminEmail }

type mealView struct {
	Name      string
	Count     int
	UnitPrice float64
	Menus     string
}

type unitView struct {
	Unit   int
	Guests models.Guests
	Meals  []mealView
}

type nightView struct {
	Date  string
	Units []unitView
}

type reservationView struct {
	R          *models.Reservation
	CheckIn    string
	CheckOut   string
	Nights     []nightView
	DaysBefore int
	Fee        float64
}

func (c *Composer) view(r *models.Reservation) reservationView {
	v := reservationView{
		R:        r,
		CheckIn:  models.FormatDate(r.CheckInDate),
		CheckOut: models.FormatDate(r.CheckOutDate()),
		Fee:      r.CancellationFee,
	}
	for _, night := range r.NightDates() {
		date := models.FormatDate(night)
		nv := nightView{Date: date}
		for unit := 1; unit <= r.NumUnits; unit++ {
			uv := unitView{Unit: unit, Guests: r.Guests.For(date, unit)}
			plans := r.MealPlans[date][unit]
			ids := make([]string, 0, len(plans))
			for id := range plans {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				sel := plans[id]
				uv.Meals = append(uv.Meals, mealView{
					Name:      c.planName(id),
					Count:     sel.Count,
					UnitPrice: sel.UnitPrice,
					Menus:     formatMenus(sel.Menus),
				})
			}
			nv.Units = append(nv.Units, uv)
		}
		v.Nights = append(v.Nights, nv)
	}
	return v
}

func (c *Composer) planName(id string) string {
	if name, ok := c.planNames[id]; ok && name != "" {
		return name
	}
	return id
}

func formatMenus(menus map[string]int) string {
	if len(menus) == 0 {
		return ""
	}
	names := make([]string, 0, len(menus))
	for name := range menus {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s x%d", name, menus[name]))
	}
	return strings.Join(parts, ", ")
}

func (c *Composer) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := c.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (c *Composer) message(to, subject, name string, data any) (domain.EmailMessage, error) {
	html, err := c.render(name, data)
	if err != nil {
		return domain.EmailMessage{}, err
	}
	return domain.EmailMessage{To: []string{to}, Subject: subject, HTML: html}, nil
}

func (c *Composer) Confirmation(r *models.Reservation) (domain.EmailMessage, error) {
	return c.message(r.Email, "Reservation confirmed "+r.ReservationNumber, "confirmation_guest.html", c.view(r))
}

func (c *Composer) ConfirmationAdmin(r *models.Reservation) (domain.EmailMessage, error) {
	return c.message(c.adminEmail, "New reservation "+r.ReservationNumber, "confirmation_admin.html", c.view(r))
}

// Reminder renders the tier reminder. The one-day tier carries the full stay breakdown.
func (c *Composer) Reminder(r *models.Reservation, daysBefore int) (domain.EmailMessage, error) {
	v := c.view(r)
	v.DaysBefore = daysBefore
	if daysBefore == 1 {
		return c.message(r.Email, "Your stay starts tomorrow "+r.ReservationNumber, "reminder_final.html", v)
	}
	subject := fmt.Sprintf("%d days until your stay %s", daysBefore, r.ReservationNumber)
	return c.message(r.Email, subject, "reminder.html", v)
}

func (c *Composer) ThankYou(r *models.Reservation) (domain.EmailMessage, error) {
	return c.message(r.Email, "Thank you for staying with us", "thank_you.html", c.view(r))
}

func (c *Composer) Cancellation(r *models.Reservation) (domain.EmailMessage, error) {
	return c.message(r.Email, "Reservation cancelled "+r.ReservationNumber, "cancellation_guest.html", c.view(r))
}

func (c *Composer) CancellationAdmin(r *models.Reservation) (domain.EmailMessage, error) {
	return c.message(c.adminEmail, "Guest cancelled "+r.ReservationNumber, "cancellation_admin.html", c.view(r))
}

// PendingAlert tells ops that a reservation never reached the PMS.
func (c *Composer) PendingAlert(r *models.Reservation) (domain.EmailMessage, error) {
	return c.message(c.opsEmail, "PMS sync pending "+r.ReservationNumber, "pending_alert.html", c.view(r))
}

func (c *Composer) AffiliateWelcome(a *models.Affiliate) (domain.EmailMessage, error) {
	return c.message(a.Email, "Welcome to the affiliate program", "affiliate_welcome.html", a)
}

// FormatYen renders an amount with thousands separators, e.g. "¥1,234,500".
func FormatYen(amount float64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatFloat(amount, 'f', 0, 64)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	if neg {
		return "-¥" + b.String()
	}
	return "¥" + b.String()
}

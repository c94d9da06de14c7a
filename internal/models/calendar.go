package models

// CalendarDay is the derived availability of one date.
type CalendarDay struct {
	Date      string   `json:"date"`
	Total     int      `json:"total"`
	Available int      `json:"available"`
	Price     *float64 `json:"price"`
	Bookable  bool     `json:"bookable"`
}

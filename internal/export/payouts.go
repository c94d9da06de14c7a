// Package export renders administrative spreadsheets.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"villa/internal/models"

	"github.com/xuri/excelize/v2"
)

const payoutSheet = "Payouts"

var payoutHeaders = []string{
	"Affiliate code", "Name", "Email", "Coupon",
	"Month count", "Month reward", "Year count", "Year reward",
	"Lifetime reward", "Paid out", "Outstanding",
	"Bank", "Branch", "Account type", "Account number", "Account holder",
}

// PayoutFileName is the download name for a period's report.
func PayoutFileName(year int, month time.Month) string {
	return fmt.Sprintf("affiliate_payouts_%04d-%02d.xlsx", year, int(month))
}

// WritePayouts renders one row per affiliate for the period and streams the
// workbook to w.
func WritePayouts(w io.Writer, year int, month time.Month, rows []models.AffiliateStats) error {
	f, err := buildPayouts(year, month, rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SavePayouts writes the report into dir and returns the file path.
func SavePayouts(dir string, year int, month time.Month, rows []models.AffiliateStats) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	f, err := buildPayouts(year, month, rows)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, PayoutFileName(year, month))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func buildPayouts(year int, month time.Month, rows []models.AffiliateStats) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(payoutSheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	_ = f.SetCellValue(payoutSheet, "A1", fmt.Sprintf("Affiliate payouts %04d-%02d", year, int(month)))
	lastCol, _ := excelize.ColumnNumberToName(len(payoutHeaders))
	_ = f.MergeCell(payoutSheet, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(payoutSheet, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range payoutHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(payoutSheet, cell, header)
		_ = f.SetCellStyle(payoutSheet, cell, cell, headerStyle)
	}

	for i, st := range rows {
		a := st.Affiliate
		values := []interface{}{
			a.AffiliateCode, a.Name, a.Email, a.CouponCode,
			st.MonthCount, st.MonthReward, st.YearCount, st.YearReward,
			st.LifetimeReward, st.PaidOut, st.Outstanding,
			a.BankName, a.BankBranch, a.AccountType, a.AccountNumber, a.AccountHolder,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		if err := f.SetSheetRow(payoutSheet, cell, &values); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+3, err)
		}
	}

	_ = f.SetColWidth(payoutSheet, "A", "D", 20)
	_ = f.SetColWidth(payoutSheet, "E", "K", 14)
	_ = f.SetColWidth(payoutSheet, "L", lastCol, 18)
	return f, nil
}

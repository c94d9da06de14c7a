package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"villa/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRows() []models.AffiliateStats {
	return []models.AffiliateStats{
		{
			Affiliate:      models.Affiliate{AffiliateCode: "AFF1", Name: "Kenji", Email: "kenji@example.com", CouponCode: "KENJI5", BankName: "Mizuho"},
			MonthCount:     2,
			MonthReward:    6000,
			YearCount:      3,
			YearReward:     9000,
			LifetimeReward: 12000,
			PaidOut:        3000,
			Outstanding:    9000,
		},
		{Affiliate: models.Affiliate{AffiliateCode: "AFF2", Name: "Yui"}},
	}
}

func TestWritePayouts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePayouts(&buf, 2026, time.July, sampleRows()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{payoutSheet}, f.GetSheetList())

	title, err := f.GetCellValue(payoutSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Affiliate payouts 2026-07", title)

	rows, err := f.GetRows(payoutSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, payoutHeaders, rows[1])
	assert.Equal(t, "AFF1", rows[2][0])
	assert.Equal(t, "6000", rows[2][5])
	assert.Equal(t, "9000", rows[2][10])
	assert.Equal(t, "Mizuho", rows[2][11])
	assert.Equal(t, "AFF2", rows[3][0])
}

func TestSavePayouts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	path, err := SavePayouts(dir, 2026, time.March, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "affiliate_payouts_2026-03.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(payoutSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

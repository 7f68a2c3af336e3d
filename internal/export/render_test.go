package export

import (
	"bytes"
	"testing"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func openRendered(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestRenderSpreadsheet_Deterministic(t *testing.T) {
	doc := domain.DefaultDocument()

	first, err := RenderSpreadsheet(doc)
	require.NoError(t, err)
	second, err := RenderSpreadsheet(doc)
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.True(t, bytes.Equal(first, second), "two renders of the same ledger differ")

	doc.Transactions[0].Amount++
	third, err := RenderSpreadsheet(doc)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(first, third))
}

func TestRenderSpreadsheet_Layout(t *testing.T) {
	doc := domain.DefaultDocument()
	doc.Transactions = append(doc.Transactions, domain.Transaction{
		ID: "x", Date: "05/10/2023", Description: "Bán hàng", Amount: 1234567,
	})

	data, err := RenderSpreadsheet(doc)
	require.NoError(t, err)
	f := openRendered(t, data)

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	get := func(c string) string {
		v, err := f.GetCellValue(SheetName, c)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "Mẫu số S1a-HKD", get("A1"))
	assert.Equal(t, "Hộ, cá nhân kinh doanh:", get("A4"))
	assert.Equal(t, "Nguyễn Văn A", get("B4"))
	assert.Equal(t, "Mã số thuế:", get("A6"))
	assert.Equal(t, "0312345678", get("B6"))
	assert.Equal(t, "Kỳ kê khai:", get("A8"))
	assert.Equal(t, "Quý 3/2023", get("B8"))
	assert.Equal(t, ledgerTitle, get("A10"))

	assert.Equal(t, "Ngày tháng", get("A12"))
	assert.Equal(t, "Giao dịch", get("B12"))
	assert.Equal(t, "Số tiền", get("C12"))

	assert.Equal(t, "01/07/2023", get("A13"))
	assert.Equal(t, "Bán hàng tạp hóa", get("B13"))
	assert.Equal(t, "1500000", get("C13"))
	assert.Equal(t, "05/10/2023", get("A15"))
	assert.Equal(t, "1234567", get("C15"))

	assert.Equal(t, totalLabel, get("B16"))
	assert.Equal(t, "3484567", get("C16"))

	typ, err := f.GetCellType(SheetName, "C15")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ, "amounts must be numeric cells")
	assert.NotEqual(t, excelize.CellTypeInlineString, typ)
}

func TestRenderSpreadsheet_EmptyLedger(t *testing.T) {
	data, err := RenderSpreadsheet(domain.LedgerDocument{})
	require.NoError(t, err)
	f := openRendered(t, data)

	v, err := f.GetCellValue(SheetName, "B13")
	require.NoError(t, err)
	assert.Equal(t, totalLabel, v)
	v, err = f.GetCellValue(SheetName, "C13")
	require.NoError(t, err)
	assert.Equal(t, "0", v)
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Nguyễn Văn A", "so-doanh-thu-nguyen-van-a.xlsx"},
		{"  Trần Thị Bích  ", "so-doanh-thu-tran-thi-bich.xlsx"},
		{"Cửa hàng ABC / chi nhánh 2", "so-doanh-thu-cua-hang-abc-chi-nhanh-2.xlsx"},
		{"", "so-doanh-thu-ho-kinh-doanh.xlsx"},
		{"!!!", "so-doanh-thu-ho-kinh-doanh.xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FileName(tt.name))
		})
	}
}

func TestFileName_Truncated(t *testing.T) {
	long := "Hộ kinh doanh có một cái tên rất rất rất rất rất rất rất rất rất dài"
	got := FileName(long)
	assert.LessOrEqual(t, len(got), len(fileNamePrefix)+maxSlugLength+len(fileNameSuffix))
	assert.NotContains(t, got, "-.xlsx")
}

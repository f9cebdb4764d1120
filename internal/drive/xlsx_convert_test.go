package drive

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestConvertXLSXToCSV(t *testing.T) {
	book := excelize.NewFile()
	require.NoError(t, book.SetSheetRow("Sheet1", "A1", &[]interface{}{"Id", "Subject"}))
	require.NoError(t, book.SetSheetRow("Sheet1", "A2", &[]interface{}{"02s1", "Hello, world"}))
	src, err := book.WriteToBuffer()
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, ConvertXLSXToCSV(src, &out))

	assert.Equal(t, "Id,Subject\n02s1,\"Hello, world\"\n", out.String())
}

func TestConvertXLSXToCSV_NotAWorkbook(t *testing.T) {
	err := ConvertXLSXToCSV(bytes.NewBufferString("a,b\n"), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestFileHelpers(t *testing.T) {
	assert.True(t, IsXLSX("Stock.XLSX"))
	assert.False(t, IsXLSX("stock.csv"))
	assert.Equal(t, "reports/stock.csv", CSVName("reports/stock.xlsx"))

	assert.True(t, File{MimeType: "text/csv"}.Downloadable())
	assert.False(t, File{MimeType: folderMimeType}.Downloadable())
	assert.False(t, File{MimeType: "application/vnd.google-apps.spreadsheet"}.Downloadable())
}

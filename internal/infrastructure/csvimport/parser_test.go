package csvimport

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParser(t *testing.T) {
	t.Run("UTF-8 BOM is stripped", func(t *testing.T) {
		p, err := NewParser(strings.NewReader("\xEF\xBB\xBFsku,variant_id\nA,1"))
		require.NoError(t, err)
		require.NoError(t, p.ParseHeader())
		assert.Equal(t, []string{"sku", "variant_id"}, p.Headers())
	})

	t.Run("Empty file returns error", func(t *testing.T) {
		p, err := NewParser(strings.NewReader(""))
		assert.ErrorIs(t, err, ErrEmptyFile)
		assert.Nil(t, p)
	})

	t.Run("Invalid encoding returns error", func(t *testing.T) {
		_, err := NewParser(strings.NewReader("sku\n\xff\xfe"))
		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})

	t.Run("Rune split at the check window is accepted", func(t *testing.T) {
		content := "sku\n" + strings.Repeat("a", 4096-4-1) + "é\n"
		_, err := NewParser(strings.NewReader(content))
		assert.NoError(t, err)
	})

	t.Run("Custom delimiter", func(t *testing.T) {
		p, err := NewParser(strings.NewReader("sku;variant_id\nA;1"), WithDelimiter(';'))
		require.NoError(t, err)
		require.NoError(t, p.ParseHeader())
		assert.Equal(t, []string{"sku", "variant_id"}, p.Headers())
	})
}

func TestParser_ParseHeader(t *testing.T) {
	t.Run("Headers are normalized", func(t *testing.T) {
		p, _ := NewParser(strings.NewReader("  SKU , Variant_ID ,\nA,1,"))
		require.NoError(t, p.ParseHeader())
		assert.Equal(t, []string{"sku", "variant_id"}, p.Headers())
		assert.True(t, p.HasHeader("Sku"))
		assert.Equal(t, []string{"inventory_item_id"}, p.MissingHeaders("sku", "inventory_item_id"))
	})

	t.Run("Duplicate header is rejected", func(t *testing.T) {
		p, _ := NewParser(strings.NewReader("sku,SKU\nA,B"))
		assert.ErrorIs(t, p.ParseHeader(), ErrDuplicateHeader)
	})

	t.Run("Blank header row is rejected", func(t *testing.T) {
		p, _ := NewParser(strings.NewReader(" , \nA,B"))
		assert.ErrorIs(t, p.ParseHeader(), ErrMissingHeader)
	})

	t.Run("Rows cannot be read before the header", func(t *testing.T) {
		p, _ := NewParser(strings.NewReader("sku\nA"))
		_, err := p.ReadRow()
		assert.ErrorIs(t, err, ErrMissingHeader)
	})
}

func TestParser_ReadRow(t *testing.T) {
	t.Run("Values are keyed by header with line numbers", func(t *testing.T) {
		p, _ := NewParser(strings.NewReader("sku,variant_id\n  A-1 , 101\nB-2"))
		require.NoError(t, p.ParseHeader())

		row, err := p.ReadRow()
		require.NoError(t, err)
		assert.Equal(t, 2, row.Line)
		assert.Equal(t, "A-1", row.Get("SKU"))
		assert.Equal(t, "101", row.Get("variant_id"))

		short, err := p.ReadRow()
		require.NoError(t, err)
		assert.Equal(t, 3, short.Line)
		assert.Equal(t, "", short.Get("variant_id"))

		_, err = p.ReadRow()
		assert.Equal(t, io.EOF, err)
	})

	t.Run("ReadAll skips empty rows", func(t *testing.T) {
		p, _ := NewParser(strings.NewReader("sku,variant_id\nA,1\n,\nB,2\n"))
		require.NoError(t, p.ParseHeader())

		rows, err := p.ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, 4, rows[1].Line)
	})

	t.Run("Row cap is enforced", func(t *testing.T) {
		p, _ := NewParser(strings.NewReader("sku\nA\nB\nC"), WithMaxRows(2))
		require.NoError(t, p.ParseHeader())

		_, err := p.ReadAll()
		assert.ErrorIs(t, err, ErrTooManyRows)
	})
}

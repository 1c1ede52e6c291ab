package olap

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/billing-olap/internal/snapshot"
)

func TestWriteCSV_FactInvoices(t *testing.T) {
	table, _, err := FactInvoicesTable(fixtureSnapshot(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(FactInvoiceColumns, ","), lines[0])
	assert.Equal(t,
		"in_1,cus_1,ana@example.com,1200,eur,paid,2024-05-01 10:00:00,2024-05-01 10:00:00,2024-06-01 10:00:00,"+
			"prod_1,Pro,price_1,1200,month,sub_1,card,2072-1714,false,visa",
		lines[1])
	// Nulls are empty fields.
	assert.True(t, strings.HasSuffix(lines[2], ",,,false,"))
}

func TestReadCSV(t *testing.T) {
	in := "id,amount,ratio,live,created,note,meta\n" +
		"a,12,0.5,true,2024-05-01 10:00:00,2072-1714,\"{\"\"k\"\":1}\"\n" +
		"b,,,,,007,\n"

	table, err := ReadCSV("t", strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	assert.True(t, snapshot.Int(12).Equal(table.Value(0, "amount")))
	assert.True(t, snapshot.Float(0.5).Equal(table.Value(0, "ratio")))
	assert.True(t, snapshot.Bool(true).Equal(table.Value(0, "live")))
	assert.True(t, snapshot.Timestamp(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)).Equal(table.Value(0, "created")))
	assert.True(t, snapshot.String("2072-1714").Equal(table.Value(0, "note")))
	assert.True(t, snapshot.String(`{"k":1}`).Equal(table.Value(0, "meta")))

	assert.True(t, table.Value(1, "amount").IsNull())
	assert.True(t, snapshot.String("007").Equal(table.Value(1, "note")))
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV("empty", strings.NewReader(""))
	assert.Error(t, err)

	_, err = ReadCSV("ragged", strings.NewReader("a,b\n1\n"))
	assert.Error(t, err)
}

func TestWriteCSV_RowWidth(t *testing.T) {
	table := NewTable("t", []string{"a", "b"})
	table.Rows = append(table.Rows, []snapshot.Value{snapshot.Int(1)})
	assert.Error(t, WriteCSV(&bytes.Buffer{}, table))
}

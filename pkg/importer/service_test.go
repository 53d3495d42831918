package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/leadboard/leadboard/pkg/logger"
	"github.com/leadboard/leadboard/pkg/mapping"
	"github.com/leadboard/leadboard/pkg/notify"
	"github.com/leadboard/leadboard/pkg/optimistic"
	"github.com/leadboard/leadboard/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return NewService(mem, logger.New("error"), "US"), mem
}

var testMapping = mapping.Mapping{
	"Name":    "title",
	"Phone":   "phone_number",
	"Address": "address",
	"Hours":   "metadata",
}

func testRecords() []map[string]any {
	return []map[string]any{
		{"Name": "Acme Bakery", "Phone": "(212) 555-2368", "Address": "1 Main St", "Hours": "9-5"},
		{"Name": "Beta Gym", "Address": "2 Oak Ave"},
		{"Name": "Gamma Spa", "Address": "3 Pine Rd"},
	}
}

func TestImportMapped(t *testing.T) {
	s, mem := setupService(t)
	ctx := context.Background()

	result, err := s.ImportMapped(ctx, "user-1", testMapping, testRecords())
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 3, result.SuccessCount)
	assert.Zero(t, result.FailureCount)

	rows, err := mem.Select(ctx, "leads", store.Where(store.Eq("user_id", "user-1")), nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	for _, row := range rows {
		assert.Equal(t, "new", row["status"])
		assert.NotNil(t, row["metadata"])
		if row["title"] == "Acme Bakery" {
			assert.Equal(t, "+12125552368", row["phone_number"])
			assert.Equal(t, "9-5", row["metadata"].(map[string]any)["Hours"])
		}
	}
}

func TestImportMapped_Idempotent(t *testing.T) {
	s, mem := setupService(t)
	ctx := context.Background()

	_, err := s.ImportMapped(ctx, "user-1", testMapping, testRecords())
	require.NoError(t, err)
	_, err = s.ImportMapped(ctx, "user-1", testMapping, testRecords())
	require.NoError(t, err)

	// Same (title, address) pairs: the second import updates in place
	count, err := mem.Count(ctx, "leads", store.Where(store.Eq("user_id", "user-1")))
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestImportMapped_SameTitleDifferentAddress(t *testing.T) {
	s, mem := setupService(t)
	ctx := context.Background()

	records := []map[string]any{
		{"Name": "Acme Bakery", "Address": "1 Main St"},
		{"Name": "Acme Bakery", "Address": "99 Branch Rd"},
	}
	_, err := s.ImportMapped(ctx, "user-1", testMapping, records)
	require.NoError(t, err)

	// Two branches of the same business stay distinct leads
	count, err := mem.Count(ctx, "leads", store.Where(store.Eq("user_id", "user-1")))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestImportMapped_ScopedToUser(t *testing.T) {
	s, mem := setupService(t)
	ctx := context.Background()

	_, err := s.ImportMapped(ctx, "user-1", testMapping, testRecords())
	require.NoError(t, err)
	_, err = s.ImportMapped(ctx, "user-2", testMapping, testRecords())
	require.NoError(t, err)

	count, err := mem.Count(ctx, "leads", nil)
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestImportMapped_TitlelessRowsFail(t *testing.T) {
	s, mem := setupService(t)
	ctx := context.Background()

	records := []map[string]any{
		{"Name": "Acme", "Address": "1 Main St"},
		{"Address": "2 Oak Ave"},
		{"Name": "", "Address": "3 Pine Rd"},
	}
	result, err := s.ImportMapped(ctx, "user-1", testMapping, records)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 2, result.FailureCount)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, "title", result.Errors[0].Field)

	count, err := mem.Count(ctx, "leads", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestImportMapped_NoRecords(t *testing.T) {
	s, _ := setupService(t)
	_, err := s.ImportMapped(context.Background(), "user-1", testMapping, nil)
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	csv := "Name, Phone,Address\nAcme,555-0100,1 Main St\nBeta,,2 Oak Ave\n"
	records, err := ReadCSV(strings.NewReader(csv), DefaultFileConfig())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Acme", records[0]["Name"])
	assert.Equal(t, "555-0100", records[0]["Phone"])
	assert.Equal(t, "2 Oak Ave", records[1]["Address"])
}

func TestReadCSV_RowLimit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Name\n")
	for i := 0; i < 20; i++ {
		sb.WriteString("Lead\n")
	}

	records, err := ReadCSV(strings.NewReader(sb.String()), FileConfig{MaxRows: 5})
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestImportMapped_ResyncsAttachedBoard(t *testing.T) {
	s, mem := setupService(t)
	ctx := context.Background()

	boards := optimistic.NewManager(mem, &notify.Collector{}, logger.New("error"))
	s.AttachBoards(boards)

	board, err := boards.Board(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, board.Leads())

	result, err := s.ImportMapped(ctx, "user-1", testMapping, testRecords())
	require.NoError(t, err)
	require.Equal(t, 3, result.SuccessCount)

	assert.Len(t, board.Leads(), 3)
}

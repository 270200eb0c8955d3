package registrations

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/google/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chapter/internal/models"
)

func TestMain(m *testing.M) {
	l := logger.Init("registrations_test", false, false, io.Discard)
	code := m.Run()
	l.Close()
	os.Exit(code)
}

func TestImportCSV(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	input := strings.Join([]string{
		"name,email",
		"Alice,alice@example.org",
		"Bob",
		"Carol,carol@example.org,extra",
		",nobody@example.org",
		"Alice Twin,alice@example.org",
		"Dan, dan@example.org",
	}, "\n")

	added, err := ImportCSV(ctx, store, "gala", strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	got, err := store.List(ctx, "gala")
	require.NoError(t, err)
	assert.Equal(t, []models.Participant{
		{Name: "Alice", Email: "alice@example.org"},
		{Name: "Bob"},
		{Name: "Dan", Email: "dan@example.org"},
	}, got)
}

func TestImportCSV_NoHeader(t *testing.T) {
	store := NewMemoryStore()
	added, err := ImportCSV(context.Background(), store, "gala", strings.NewReader("Alice,alice@example.org\nBob,\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, added)
}

func TestImportCSV_BadQuoting(t *testing.T) {
	store := NewMemoryStore()
	_, err := ImportCSV(context.Background(), store, "gala", strings.NewReader("Alice,\"unterminated\n"))
	assert.Error(t, err)
}

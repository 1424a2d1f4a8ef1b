package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendmillion/internal/models"
)

func TestNewRepositoryValidates(t *testing.T) {
	tests := []struct {
		name  string
		items []models.Item
	}{
		{"empty catalog", nil},
		{"empty item name", []models.Item{{Name: "", UnitPrice: 100}}},
		{"zero price", []models.Item{{Name: "Freebie", UnitPrice: 0}}},
		{"negative price", []models.Item{{Name: "Refund", UnitPrice: -5}}},
		{"duplicate name", []models.Item{{Name: "Diamonds", UnitPrice: 100}, {Name: "Diamonds", UnitPrice: 200}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRepository(tt.items)
			assert.Error(t, err)
		})
	}
}

func TestLookup(t *testing.T) {
	repo, err := NewRepository(DefaultItems())
	require.NoError(t, err)

	item, ok := repo.Lookup("Supercar")
	require.True(t, ok)
	assert.Equal(t, int64(250_000), item.UnitPrice)

	_, ok = repo.Lookup("Moon base")
	assert.False(t, ok)
}

func TestItemsReturnsCopy(t *testing.T) {
	repo, err := NewRepository(DefaultItems())
	require.NoError(t, err)

	items := repo.Items()
	require.Equal(t, repo.Len(), len(items))

	items[0].Name = "mutated"
	fresh := repo.Items()
	assert.NotEqual(t, "mutated", fresh[0].Name)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
- name: Supercar
  price: 250000
- name: Diamonds
  price: 50000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	repo, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.Len())

	item, ok := repo.Lookup("Diamonds")
	require.True(t, ok)
	assert.Equal(t, int64(50_000), item.UnitPrice)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

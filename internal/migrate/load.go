package migrate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yz4230/shipd/internal/entity"
)

// Load reads *.sql files from dir in lexical order; filenames are the
// migration identifiers (the goose convention, NNN_description.sql).
func Load(dir string) ([]entity.Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var set []entity.Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		set = append(set, entity.Migration{
			ID:       strings.TrimSuffix(e.Name(), ".sql"),
			SQL:      string(content),
			Checksum: Checksum(content),
		})
	}
	sort.Slice(set, func(i, j int) bool { return set[i].ID < set[j].ID })
	return set, nil
}

// Checksum fingerprints migration content.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

package migrate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/yz4230/shipd/internal/entity"
	"github.com/yz4230/shipd/internal/repository"
)

type fakeRecords struct {
	records map[string]*entity.MigrationRecord
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{records: make(map[string]*entity.MigrationRecord)}
}

func (f *fakeRecords) key(envID entity.ID, migrationID string) string {
	return envID.String() + "/" + migrationID
}

func (f *fakeRecords) Get(ctx context.Context, envID entity.ID, migrationID string) (*entity.MigrationRecord, error) {
	rec, ok := f.records[f.key(envID, migrationID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRecords) Create(ctx context.Context, rec *entity.MigrationRecord) (*entity.MigrationRecord, error) {
	f.records[f.key(rec.EnvironmentID, rec.MigrationID)] = rec
	return rec, nil
}

func (f *fakeRecords) ListByEnvironment(ctx context.Context, envID entity.ID) ([]*entity.MigrationRecord, error) {
	var res []*entity.MigrationRecord
	for _, rec := range f.records {
		if rec.EnvironmentID == envID {
			res = append(res, rec)
		}
	}
	return res, nil
}

type fakeApplier struct {
	stmts   []string
	failOn  string
	failErr error
}

func (f *fakeApplier) Exec(ctx context.Context, stmt string) error {
	if f.failOn != "" && stmt == f.failOn {
		return f.failErr
	}
	f.stmts = append(f.stmts, stmt)
	return nil
}

func newTestRunner(records repository.MigrationRecordRepository, applier Applier) *Runner {
	r := NewRunner(records, "")
	r.openTarget = func(dsn string) (Applier, error) { return applier, nil }
	return r
}

func testEnv() *entity.Environment {
	return &entity.Environment{ID: entity.NewID("1"), Name: "production"}
}

func migrationSet(stmts ...string) []entity.Migration {
	set := make([]entity.Migration, len(stmts))
	for i, s := range stmts {
		set[i] = entity.Migration{
			ID:       fmt.Sprintf("%03d_step", i+1),
			SQL:      s,
			Checksum: Checksum([]byte(s)),
		}
	}
	return set
}

func TestApplySetIdempotent(t *testing.T) {
	ctx := context.Background()
	applier := &fakeApplier{}
	runner := newTestRunner(newFakeRecords(), applier)
	set := migrationSet("CREATE TABLE a (id INTEGER)", "CREATE TABLE b (id INTEGER)")

	applied, err := runner.ApplySet(ctx, testEnv(), set)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if applied != 2 {
		t.Fatalf("first apply count = %d; want 2", applied)
	}

	applied, err = runner.ApplySet(ctx, testEnv(), set)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if applied != 0 {
		t.Fatalf("second apply count = %d; want 0", applied)
	}
	if len(applier.stmts) != 2 {
		t.Fatalf("statements executed = %d; want 2", len(applier.stmts))
	}
}

func TestApplySetPreservesOrder(t *testing.T) {
	ctx := context.Background()
	applier := &fakeApplier{}
	runner := newTestRunner(newFakeRecords(), applier)
	set := migrationSet("one", "two", "three")

	if _, err := runner.ApplySet(ctx, testEnv(), set); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := []string{"one", "two", "three"}
	for i, stmt := range applier.stmts {
		if stmt != want[i] {
			t.Errorf("stmt[%d] = %q; want %q", i, stmt, want[i])
		}
	}
}

func TestApplySetChecksumConflict(t *testing.T) {
	ctx := context.Background()
	runner := newTestRunner(newFakeRecords(), &fakeApplier{})
	set := migrationSet("CREATE TABLE a (id INTEGER)")

	if _, err := runner.ApplySet(ctx, testEnv(), set); err != nil {
		t.Fatalf("apply: %v", err)
	}

	// same identifier, different content
	set[0].SQL = "DROP TABLE a"
	set[0].Checksum = Checksum([]byte(set[0].SQL))
	_, err := runner.ApplySet(ctx, testEnv(), set)
	if !errors.Is(err, entity.ErrChecksumConflict) {
		t.Fatalf("err = %v; want ErrChecksumConflict", err)
	}
}

func TestApplySetStopsOnFailure(t *testing.T) {
	ctx := context.Background()
	applier := &fakeApplier{failOn: "two", failErr: errors.New("syntax error")}
	records := newFakeRecords()
	runner := newTestRunner(records, applier)
	set := migrationSet("one", "two", "three")

	applied, err := runner.ApplySet(ctx, testEnv(), set)
	if !errors.Is(err, entity.ErrMigrationFailed) {
		t.Fatalf("err = %v; want ErrMigrationFailed", err)
	}
	if applied != 1 {
		t.Fatalf("applied = %d; want 1", applied)
	}
	// the failed migration must not be recorded
	if _, err := records.Get(ctx, testEnv().ID, set[1].ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("failed migration recorded: %v", err)
	}
}

func TestApplySetScopedPerEnvironment(t *testing.T) {
	ctx := context.Background()
	runner := newTestRunner(newFakeRecords(), &fakeApplier{})
	set := migrationSet("CREATE TABLE a (id INTEGER)")

	if _, err := runner.ApplySet(ctx, testEnv(), set); err != nil {
		t.Fatalf("apply: %v", err)
	}

	other := &entity.Environment{ID: entity.NewID("2"), Name: "staging"}
	applied, err := runner.ApplySet(ctx, other, set)
	if err != nil {
		t.Fatalf("apply to other env: %v", err)
	}
	if applied != 1 {
		t.Fatalf("applied = %d; want 1 for a fresh environment", applied)
	}
}

func TestLoadOrdersByFilename(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"002_add_index.sql":    "CREATE INDEX i ON a (id)",
		"001_create_table.sql": "CREATE TABLE a (id INTEGER)",
		"ignore.txt":           "not a migration",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	set, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(set) != 2 {
		t.Fatalf("len(set) = %d; want 2", len(set))
	}
	if set[0].ID != "001_create_table" || set[1].ID != "002_add_index" {
		t.Fatalf("order = [%s %s]; want [001_create_table 002_add_index]", set[0].ID, set[1].ID)
	}
	if set[0].Checksum != Checksum([]byte(files["001_create_table.sql"])) {
		t.Error("checksum does not match file content")
	}
}

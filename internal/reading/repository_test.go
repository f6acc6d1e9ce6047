package reading

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-radio/migrations"
)

// setupTestRepo opens a migrated database in a temp dir.
func setupTestRepo(t *testing.T, history bool) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "radiogw.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	return NewSQLiteRepository(db.DB, history)
}

func sample(address, kind string, at time.Time, temp float64) Reading {
	return Reading{
		Address:    address,
		Kind:       kind,
		RSSI:       -70,
		Data:       map[string]any{"temperature": temp, "valid": true},
		ReceivedAt: at,
	}
}

func TestSaveAndLatest(t *testing.T) {
	repo := setupTestRepo(t, false)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := repo.Save(ctx, sample("bc:02:6e:c3:ce:cc", "bparasite", at, 25.6)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Latest(ctx, "bc:02:6e:c3:ce:cc")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Latest() returned %d readings, want 1", len(got))
	}
	rd := got[0]
	if rd.Kind != "bparasite" || rd.RSSI != -70 {
		t.Errorf("Latest() = %+v", rd)
	}
	if rd.Data["temperature"] != 25.6 || rd.Data["valid"] != true {
		t.Errorf("Data = %v", rd.Data)
	}
	if !rd.ReceivedAt.Equal(at) {
		t.Errorf("ReceivedAt = %v, want %v", rd.ReceivedAt, at)
	}
}

func TestSaveUpserts(t *testing.T) {
	repo := setupTestRepo(t, false)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, temp := range []float64{20.0, 21.5, 23.0} {
		if err := repo.Save(ctx, sample("aa:bb:cc:dd:ee:ff", "bthome", at.Add(time.Duration(i)*time.Minute), temp)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	got, err := repo.Latest(ctx, "aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if len(got) != 1 || got[0].Data["temperature"] != 23.0 {
		t.Errorf("Latest() = %+v, want single reading with temperature 23", got)
	}

	// History disabled: nothing recorded.
	history, err := repo.History(ctx, "aa:bb:cc:dd:ee:ff", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Errorf("History() = %d rows, want 0 with history disabled", len(history))
	}
}

func TestLatestPerKind(t *testing.T) {
	repo := setupTestRepo(t, false)
	ctx := context.Background()
	now := time.Now()

	repo.Save(ctx, sample("aa:bb:cc:dd:ee:ff", "ruuvi", now, 21))  //nolint:errcheck // Setup
	repo.Save(ctx, sample("aa:bb:cc:dd:ee:ff", "bthome", now, 22)) //nolint:errcheck // Setup

	got, err := repo.Latest(ctx, "aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if len(got) != 2 || got[0].Kind != "bthome" || got[1].Kind != "ruuvi" {
		t.Errorf("Latest() = %+v, want bthome then ruuvi", got)
	}
}

func TestLatestNotFound(t *testing.T) {
	repo := setupTestRepo(t, false)

	_, err := repo.Latest(context.Background(), "00:00:00:00:00:00")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest() error = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	repo := setupTestRepo(t, false)
	ctx := context.Background()

	empty, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("List() on empty table = %v, want empty non-nil slice", empty)
	}

	now := time.Now()
	repo.Save(ctx, sample("cc:00:00:00:00:01", "mopeka", now, 10))    //nolint:errcheck // Setup
	repo.Save(ctx, sample("aa:00:00:00:00:01", "ptm215b", now, 0))    //nolint:errcheck // Setup
	repo.Save(ctx, sample("bb:00:00:00:00:01", "bparasite", now, 19)) //nolint:errcheck // Setup

	got, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"aa:00:00:00:00:01", "bb:00:00:00:00:01", "cc:00:00:00:00:01"}
	if len(got) != len(want) {
		t.Fatalf("List() returned %d readings, want %d", len(got), len(want))
	}
	for i, addr := range want {
		if got[i].Address != addr {
			t.Errorf("List()[%d].Address = %s, want %s", i, got[i].Address, addr)
		}
	}
}

func TestSaveValidation(t *testing.T) {
	repo := setupTestRepo(t, true)
	ctx := context.Background()

	tests := []struct {
		name string
		rd   Reading
	}{
		{"missing address", Reading{Kind: "bthome"}},
		{"missing kind", Reading{Address: "aa:bb:cc:dd:ee:ff"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Save(ctx, tt.rd); !errors.Is(err, ErrInvalidReading) {
				t.Errorf("Save() error = %v, want ErrInvalidReading", err)
			}
		})
	}
}

func TestSaveNilDataAndZeroTime(t *testing.T) {
	repo := setupTestRepo(t, false)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	if err := repo.Save(ctx, Reading{Address: "aa:bb:cc:dd:ee:ff", Kind: "mopeka"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Latest(ctx, "aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if got[0].Data == nil || len(got[0].Data) != 0 {
		t.Errorf("Data = %v, want empty map", got[0].Data)
	}
	if got[0].ReceivedAt.Before(before) {
		t.Errorf("ReceivedAt = %v, want stamped with now", got[0].ReceivedAt)
	}
}

func TestHistory(t *testing.T) {
	repo := setupTestRepo(t, true)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		if err := repo.Save(ctx, sample("aa:bb:cc:dd:ee:ff", "bthome", base.Add(time.Duration(i)*time.Minute), float64(i))); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	repo.Save(ctx, sample("11:22:33:44:55:66", "bthome", base, 99)) //nolint:errcheck // Setup

	got, err := repo.History(ctx, "aa:bb:cc:dd:ee:ff", 3)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("History() returned %d rows, want 3", len(got))
	}
	for i, want := range []float64{4, 3, 2} {
		if got[i].Data["temperature"] != want {
			t.Errorf("History()[%d] temperature = %v, want %v", i, got[i].Data["temperature"], want)
		}
	}

	all, err := repo.History(ctx, "aa:bb:cc:dd:ee:ff", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(all) != 5 {
		t.Errorf("History(limit 0) returned %d rows, want 5", len(all))
	}
}

func TestPrune(t *testing.T) {
	repo := setupTestRepo(t, true)
	ctx := context.Background()
	now := time.Now()

	repo.Save(ctx, sample("aa:bb:cc:dd:ee:ff", "bthome", now.Add(-48*time.Hour), 1)) //nolint:errcheck // Setup
	repo.Save(ctx, sample("aa:bb:cc:dd:ee:ff", "bthome", now.Add(-30*time.Hour), 2)) //nolint:errcheck // Setup
	repo.Save(ctx, sample("aa:bb:cc:dd:ee:ff", "bthome", now.Add(-time.Hour), 3))    //nolint:errcheck // Setup

	n, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Prune() deleted %d rows, want 2", n)
	}

	// The latest reading is never pruned.
	if _, err := repo.Latest(ctx, "aa:bb:cc:dd:ee:ff"); err != nil {
		t.Errorf("Latest() after Prune error = %v", err)
	}

	if _, err := repo.Prune(ctx, 0); err == nil {
		t.Error("Prune(0) error = nil, want error")
	}
}

package twin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wondertwin-ai/lotterykit/internal/logging"
	"github.com/wondertwin-ai/lotterykit/internal/twin/api"
	"github.com/wondertwin-ai/lotterykit/pkg/twincore"
)

func TestNewSeedsDemoCatalog(t *testing.T) {
	srv, err := New(&twincore.Config{Name: "t"}, logging.Discard(), true, api.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if srv.Store.Lotteries.Len() == 0 || srv.Store.Retailers.Len() == 0 {
		t.Error("expected demo catalog")
	}
}

func TestNewFromSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	seed := `{"lotteries":{"weekly":{"id":"weekly","name":"Weekly","price":25}}}`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}
	srv, err := New(&twincore.Config{Name: "t", SeedFile: path}, logging.Discard(), true, api.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if srv.Store.Lotteries.Len() != 1 || srv.Store.Retailers.Len() != 0 {
		t.Errorf("seed file should replace the demo catalog: lotteries=%d retailers=%d",
			srv.Store.Lotteries.Len(), srv.Store.Retailers.Len())
	}
}

func TestNewBadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	os.WriteFile(path, []byte("{"), 0o600)
	if _, err := New(&twincore.Config{Name: "t", SeedFile: path}, logging.Discard(), false, api.Options{}); err == nil {
		t.Error("expected error for invalid seed file")
	}
	if _, err := New(&twincore.Config{Name: "t", SeedFile: path + ".missing"}, logging.Discard(), false, api.Options{}); err == nil {
		t.Error("expected error for missing seed file")
	}
}

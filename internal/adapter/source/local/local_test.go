package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"startuplens/internal/domain/catalog"
)

func TestCSVSourceCreatesSampleData(t *testing.T) {
	dir := t.TempDir()
	src := NewCSVSource(dir)

	records, err := src.Fetch(context.Background(), 0, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 5 {
		t.Fatalf("got %d records, want the 5 seed startups", len(records))
	}
	if _, err := os.Stat(filepath.Join(dir, "startups.csv")); err != nil {
		t.Errorf("sample csv not written: %v", err)
	}

	first := records[0]
	if first.Name != "TechFlow" || first.Founded != 2021 || first.TeamSize != 45 {
		t.Errorf("seed row mapped wrong: %+v", first)
	}
	if first.Source != catalog.SourceCSV {
		t.Errorf("source = %q", first.Source)
	}
	if first.ContentHash == "" {
		t.Error("content hash not computed")
	}
}

func TestCSVSourceReadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	csv := "name,description,industry,funding,location,founded,team_size\n" +
		"Acme,Test rockets,Aerospace,$1M Seed,\"El Paso, TX\",2023,7\n" +
		",missing name row,,,,,\n" +
		"Bare,No optional fields,,,,notayear,\n"
	if err := os.WriteFile(filepath.Join(dir, "startups.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := NewCSVSource(dir).Fetch(context.Background(), 0, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (nameless row skipped)", len(records))
	}
	if records[0].Location != "El Paso, TX" || records[0].TeamSize != 7 {
		t.Errorf("quoted fields mishandled: %+v", records[0])
	}
	bare := records[1]
	if bare.Industry != catalog.IndustryUnknown || bare.Funding != catalog.FundingUnknown {
		t.Errorf("sentinels not filled: %+v", bare)
	}
	if bare.Founded != 0 {
		t.Errorf("bad year should fall back to 0, got %d", bare.Founded)
	}
}

func TestCSVSourceHonorsLimit(t *testing.T) {
	records, err := NewCSVSource(t.TempDir()).Fetch(context.Background(), 2, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}

func TestCSVSourceMissingColumns(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "startups.csv"), []byte("foo,bar\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCSVSource(dir).Fetch(context.Background(), 0, time.Time{}); err == nil {
		t.Fatal("csv without name column must fail")
	}
}

func TestSeedSourceNeverEmpty(t *testing.T) {
	src := NewSeedSource()
	records, err := src.Fetch(context.Background(), 0, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) == 0 {
		t.Fatal("seed source returned no records")
	}
	for _, rec := range records {
		if rec.Source != catalog.SourceSeed {
			t.Errorf("%s: source = %q", rec.Name, rec.Source)
		}
	}

	limited, err := src.Fetch(context.Background(), 3, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 3 {
		t.Errorf("limit=3: got %d records", len(limited))
	}
}

package local

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"startuplens/internal/domain/catalog"
	applog "startuplens/internal/platform/log"
)

var csvHeader = []string{"name", "description", "industry", "funding", "location", "founded", "team_size"}

// CSVSource 本地 CSV 回退源,读取 data/startups.csv。
// 文件不存在时先用种子数据生成样例文件再读,保证该源总有产出。
// updatedSince 对静态文件无意义,忽略。
type CSVSource struct {
	path string
}

// NewCSVSource 创建 CSV 源,文件位于 dataDir/startups.csv。
func NewCSVSource(dataDir string) *CSVSource {
	return &CSVSource{path: filepath.Join(dataDir, "startups.csv")}
}

// Name 返回来源标识。
func (s *CSVSource) Name() string { return catalog.SourceCSV }

// Fetch 读取 CSV 中的全部记录,limit 为正时截断。
func (s *CSVSource) Fetch(ctx context.Context, limit int, _ time.Time) ([]catalog.StartupRecord, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		if err := s.writeSampleData(); err != nil {
			return nil, fmt.Errorf("create sample data: %w", err)
		}
		applog.Info("[Source/CSV] sample data created", "path", s.path)
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.path, err)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"name", "description"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("csv missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	now := time.Now()
	var records []catalog.StartupRecord
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			applog.Warn("[Source/CSV] skipping malformed row", "line", line, "error", err)
			continue
		}

		rec := catalog.StartupRecord{
			Name:        field(row, "name"),
			Description: field(row, "description"),
			Industry:    field(row, "industry"),
			Funding:     field(row, "funding"),
			Location:    field(row, "location"),
			Founded:     atoiOrZero(field(row, "founded")),
			TeamSize:    atoiOrZero(field(row, "team_size")),
			Source:      catalog.SourceCSV,
		}
		if rec.Name == "" {
			applog.Warn("[Source/CSV] skipping row without name", "line", line)
			continue
		}
		rec.Normalize(now)
		records = append(records, rec)
		if limit > 0 && len(records) == limit {
			break
		}
	}
	return records, nil
}

// writeSampleData 用种子集生成样例 CSV,对应首次启动没有任何数据的场景。
func (s *CSVSource) writeSampleData() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range catalog.SeedRecords(time.Now()) {
		row := []string{
			rec.Name, rec.Description, rec.Industry, rec.Funding, rec.Location,
			strconv.Itoa(rec.Founded), strconv.Itoa(rec.TeamSize),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

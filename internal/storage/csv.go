package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"ArticleRelay/internal/domain"
)

// ImportStats summarizes one CSV feed import.
type ImportStats struct {
	Total      int
	Successful int
	Failed     int
}

// ImportFeedsCSV loads feeds from a CSV with columns url,name. Rows
// without a URL or with an already-known URL count as failed; the rest
// of the file still imports.
func (s *Store) ImportFeedsCSV(ctx context.Context, path string) (ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportStats{}, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return ImportStats{}, fmt.Errorf("read csv header: %w", err)
	}
	urlCol, nameCol := columnIndexes(header)
	if urlCol < 0 {
		return ImportStats{}, fmt.Errorf("csv has no url column")
	}

	var stats ImportStats
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read csv row: %w", err)
		}

		stats.Total++
		url := strings.TrimSpace(field(record, urlCol))
		if url == "" {
			s.logger.Warn("skipping csv row without url", "row", stats.Total)
			stats.Failed++
			continue
		}
		name := strings.TrimSpace(field(record, nameCol))

		if _, err := s.AddFeed(ctx, url, name, domain.FeedKindRSS); err != nil {
			s.logger.Warn("csv feed not added", "url", url, "error", err)
			stats.Failed++
			continue
		}
		stats.Successful++
	}

	return stats, nil
}

// ExportFeedsCSV writes all feeds as url,name rows.
func (s *Store) ExportFeedsCSV(ctx context.Context, path string) error {
	feeds, err := s.ListFeeds(ctx, true)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write([]string{"url", "name"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, feed := range feeds {
		if err := writer.Write([]string{feed.URL, feed.Name}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func columnIndexes(header []string) (urlCol, nameCol int) {
	urlCol, nameCol = -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "url":
			urlCol = i
		case "name":
			nameCol = i
		}
	}
	return urlCol, nameCol
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

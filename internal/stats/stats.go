// Package stats provides structured observability for xx.
// It tracks per-request streaming metrics (time to first text, total
// latency, deltas, mode, failures) and persists them to ~/.xx-cli/stats.json.
package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/enoch-sit/project-1-xx/internal/ai"
	"github.com/enoch-sit/project-1-xx/internal/config"
	"github.com/enoch-sit/project-1-xx/internal/stream"
)

const (
	fileName   = "stats.json"
	maxRecords = 1000
)

// Record is a single instrumented chat request.
type Record struct {
	Timestamp  time.Time     `json:"timestamp"`
	Subcommand string        `json:"subcommand,omitempty"` // "chat", "ask"
	Model      string        `json:"model"`
	Mode       string        `json:"mode"`
	FirstText  time.Duration `json:"first_text_ms"`
	Total      time.Duration `json:"total_ms"`
	Deltas     int           `json:"deltas"`
	Chars      int           `json:"chars"`
	Tokens     int           `json:"tokens,omitempty"`
	Success    bool          `json:"success"`
	ErrorKind  string        `json:"error_kind,omitempty"`
}

// Summary is the aggregated stats dashboard.
type Summary struct {
	TotalRequests   int            `json:"total_requests"`
	SuccessRate     float64        `json:"success_rate"`
	AvgFirstTextMs  int64          `json:"avg_first_text_ms"`
	AvgTotalMs      int64          `json:"avg_total_ms"`
	TotalTokens     int            `json:"total_tokens"`
	ModeBreakdown   map[string]int `json:"mode_breakdown"`
	SubcmdBreakdown map[string]int `json:"subcmd_breakdown"`
	ErrorBreakdown  map[string]int `json:"error_breakdown"`
	TopModels       []ModelCount   `json:"top_models"`
	TodayCount      int            `json:"today_count"`
	ThisWeekCount   int            `json:"this_week_count"`
}

// ModelCount pairs a model with its usage count.
type ModelCount struct {
	Model string `json:"model"`
	Count int    `json:"count"`
}

var fileMu sync.Mutex

func statsPath() string {
	return filepath.Join(config.Dir(), fileName)
}

// Save appends a new record to the stats file.
func Save(r Record) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	r.Timestamp = time.Now()
	// Store durations as milliseconds for readability.
	r.FirstText = r.FirstText / time.Millisecond
	r.Total = r.Total / time.Millisecond

	records, _ := loadAll()
	records = append(records, r)

	if len(records) > maxRecords {
		records = records[len(records)-maxRecords:]
	}

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statsPath(), data, 0o600)
}

// LoadAll returns all stored records.
func LoadAll() ([]Record, error) {
	return loadAll()
}

func loadAll() ([]Record, error) {
	data, err := os.ReadFile(statsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Summarize computes aggregated stats from all records.
func Summarize() (*Summary, error) {
	records, err := loadAll()
	if err != nil {
		return nil, err
	}

	s := &Summary{
		TotalRequests:   len(records),
		ModeBreakdown:   map[string]int{},
		SubcmdBreakdown: map[string]int{},
		ErrorBreakdown:  map[string]int{},
	}
	if len(records) == 0 {
		return s, nil
	}

	var totalFirst, totalAll int64
	var firstCount, successCount int
	modelFreq := map[string]int{}
	now := time.Now()
	today := now.Truncate(24 * time.Hour)
	weekAgo := now.AddDate(0, 0, -7)

	for _, r := range records {
		if r.Success {
			successCount++
			totalAll += int64(r.Total)
		} else if r.ErrorKind != "" {
			s.ErrorBreakdown[r.ErrorKind]++
		}
		// Only requests that produced text have a first-text latency.
		if r.Deltas > 0 {
			totalFirst += int64(r.FirstText)
			firstCount++
		}
		s.TotalTokens += r.Tokens
		if r.Mode != "" {
			s.ModeBreakdown[r.Mode]++
		}
		if r.Subcommand != "" {
			s.SubcmdBreakdown[r.Subcommand]++
		}
		if r.Model != "" {
			modelFreq[r.Model]++
		}
		if r.Timestamp.After(today) {
			s.TodayCount++
		}
		if r.Timestamp.After(weekAgo) {
			s.ThisWeekCount++
		}
	}

	s.SuccessRate = float64(successCount) / float64(len(records)) * 100
	if successCount > 0 {
		s.AvgTotalMs = totalAll / int64(successCount)
	}
	if firstCount > 0 {
		s.AvgFirstTextMs = totalFirst / int64(firstCount)
	}
	s.TopModels = topN(modelFreq, 5)

	return s, nil
}

func topN(freq map[string]int, n int) []ModelCount {
	all := make([]ModelCount, 0, len(freq))
	for model, count := range freq {
		all = append(all, ModelCount{Model: model, Count: count})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Model < all[j].Model
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// FromReply builds a record for one chat request. reply may be nil when the
// request failed before a session ran.
func FromReply(subcommand, model string, reply *ai.Reply, err error) Record {
	r := Record{
		Subcommand: subcommand,
		Model:      model,
		Success:    err == nil,
	}
	if err != nil {
		r.ErrorKind = stream.KindOf(err).String()
	}
	if reply == nil {
		return r
	}
	r.Mode = string(reply.Mode)
	r.FirstText = reply.Metrics.FirstDelta
	r.Total = reply.Metrics.Elapsed
	r.Deltas = reply.Metrics.Deltas
	r.Chars = utf8.RuneCountInString(reply.Text)
	if reply.Usage != nil {
		r.Tokens = reply.Usage.TotalTokens
	}
	return r
}

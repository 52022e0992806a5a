// Package fasc reads the docking engine's tabular score file: a header line
// declaring the column order, then one marker-prefixed row per completed
// replicate, whitespace-separated, with the model identifier last.
package fasc

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/proteindock/api/internal/model"
)

// Marker prefixes both the header and every data row.
const Marker = "SCORE:"

// Column holding the total score; rows without it are malformed.
const totalScoreColumn = "total_score"

const descriptionColumn = "description"

var indexSuffix = regexp.MustCompile(`_(\d+)$`)

// CountCompleted counts valid data rows in the score table. It returns 0
// when the file does not exist or cannot be read: during a run the table is
// written by the engine and absence only means no replicate has finished.
func CountCompleted(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if isDataLine(scanner.Text()) {
			count++
		}
	}
	return count
}

func isDataLine(line string) bool {
	if !strings.HasPrefix(line, Marker) ||
		strings.Contains(line, totalScoreColumn) ||
		strings.Contains(line, descriptionColumn) {
		return false
	}
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return false
	}
	_, err := strconv.ParseFloat(parts[1], 64)
	return err == nil
}

// ParseScoreLine parses a single marker-prefixed data line without header
// context, as seen on the engine's stdout. Only the total score and the
// model identifier are recoverable; sub-metrics need the table header.
func ParseScoreLine(line string) (model.ScoreRecord, bool) {
	if !isDataLine(line) {
		return model.ScoreRecord{}, false
	}
	parts := strings.Fields(line)
	score, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return model.ScoreRecord{}, false
	}
	desc := "unknown"
	if len(parts) > 2 {
		desc = parts[len(parts)-1]
	}
	return model.ScoreRecord{Score: score, Desc: desc, Index: extractIndex(desc)}, true
}

// ParseAll reads the full table into ScoreRecords. Malformed rows are skipped
// and counted, never fatal. pdbGlob, when non-empty, matches each record's
// numeric suffix to a model coordinate file.
func ParseAll(path, pdbGlob string) (records []model.ScoreRecord, skipped int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	lines := strings.Split(string(data), "\n")

	columns, headerIdx := parseHeader(lines)
	if columns == nil {
		return nil, 0, fmt.Errorf("no %s header line in %s", Marker, path)
	}

	pdbByIndex := indexModelFiles(pdbGlob)

	for _, line := range lines[headerIdx+1:] {
		if !strings.HasPrefix(line, Marker) || strings.Contains(line, totalScoreColumn) {
			continue
		}
		rec, ok := parseRow(line, columns)
		if !ok {
			skipped++
			continue
		}
		if p, found := pdbByIndex[rec.Index]; found {
			rec.PDBPath = p
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// parseHeader returns the column names between the marker and the
// description column, and the header's line index.
func parseHeader(lines []string) ([]string, int) {
	for i, line := range lines {
		if !strings.HasPrefix(line, Marker) || !strings.Contains(line, totalScoreColumn) {
			continue
		}
		parts := strings.Fields(line)
		descIdx := len(parts)
		for j, p := range parts {
			if p == descriptionColumn {
				descIdx = j
				break
			}
		}
		return parts[1:descIdx], i
	}
	return nil, 0
}

// parseRow maps the row's values onto the header columns. Trailing columns an
// engine configuration omits stay absent from Metrics; a row whose total
// score is missing or unparseable is rejected.
func parseRow(line string, columns []string) (model.ScoreRecord, bool) {
	parts := strings.Fields(line)
	if len(parts) < 3 { // marker, at least one value, description
		return model.ScoreRecord{}, false
	}
	values := parts[1 : len(parts)-1]
	desc := parts[len(parts)-1]

	metrics := make(map[string]float64, len(columns))
	for i, col := range columns {
		if i >= len(values) {
			break
		}
		v, err := strconv.ParseFloat(values[i], 64)
		if err != nil {
			continue
		}
		metrics[col] = v
	}

	total, ok := metrics[totalScoreColumn]
	if !ok {
		return model.ScoreRecord{}, false
	}

	rec := model.ScoreRecord{
		Score:   total,
		Desc:    desc,
		Index:   extractIndex(desc),
		Metrics: metrics,
	}
	return rec, true
}

// extractIndex pulls the numeric suffix from a model identifier such as
// complex_input_full_0003. Returns -1 when absent.
func extractIndex(desc string) int {
	m := indexSuffix.FindStringSubmatch(desc)
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return n
}

func indexModelFiles(pdbGlob string) map[int]string {
	out := map[int]string{}
	if pdbGlob == "" {
		return out
	}
	matches, err := filepath.Glob(pdbGlob)
	if err != nil {
		return out
	}
	sort.Strings(matches)
	for _, p := range matches {
		stem := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		if idx := extractIndex(stem); idx >= 0 {
			out[idx] = p
		}
	}
	return out
}

// BuildResultSet ranks records ascending by total score and selects the
// first as best. An empty input yields an empty set with no best.
func BuildResultSet(records []model.ScoreRecord) model.ResultSet {
	sorted := make([]model.ScoreRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })

	rs := model.ResultSet{AllModels: sorted}
	if len(sorted) > 0 {
		best := sorted[0]
		rs.Best = &best
	}
	return rs
}

// Results re-reads the final table and builds the ranked ResultSet.
func Results(path, pdbGlob string) (model.ResultSet, int, error) {
	records, skipped, err := ParseAll(path, pdbGlob)
	if err != nil {
		return model.ResultSet{AllModels: []model.ScoreRecord{}}, 0, err
	}
	return BuildResultSet(records), skipped, nil
}

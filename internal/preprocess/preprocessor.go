package preprocess

import (
	"sort"
	"strings"

	"abtest/domain/core"
	"abtest/domain/experiment"
	"abtest/internal"
)

// Options configures the cleaning pass
type Options struct {
	Groups          experiment.GroupPair
	ExtendedColumns []string
}

// Result is the cleaned record set plus an account of what was removed
type Result struct {
	Records           []experiment.UserRecord `json:"-"`
	RowsIn            int                     `json:"rows_in"`
	DroppedIncomplete int                     `json:"dropped_incomplete"`
	DuplicateRows     int                     `json:"duplicate_rows"`
	ExcludedUsers     []string                `json:"excluded_users"`
}

// Preprocessor drops incomplete rows, coerces required fields and removes
// users that appear under more than one group label.
type Preprocessor struct {
	opts   Options
	logger *internal.Logger
}

// New creates a preprocessor
func New(opts Options, logger *internal.Logger) *Preprocessor {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	extended := make([]string, len(opts.ExtendedColumns))
	for i, c := range opts.ExtendedColumns {
		extended[i] = experiment.NormalizeHeader(c)
	}
	opts.ExtendedColumns = extended
	return &Preprocessor{opts: opts, logger: logger}
}

// Process cleans table. It is a pure function of its input.
func (p *Preprocessor) Process(table experiment.RawTable) (*Result, error) {
	if err := p.opts.Groups.Validate(); err != nil {
		return nil, err
	}

	columns, err := p.resolveColumns(table.Headers)
	if err != nil {
		return nil, err
	}

	result := &Result{RowsIn: len(table.Rows)}
	parsed := make([]experiment.UserRecord, 0, len(table.Rows))

	for i, raw := range table.Rows {
		row := normalizeRow(raw)
		if !p.complete(row, columns) {
			result.DroppedIncomplete++
			continue
		}
		rec, err := p.coerce(row, columns, i+1)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, rec)
	}

	// An identifier seen under both labels cannot be attributed to either arm
	groupsByUser := make(map[string]experiment.GroupLabel, len(parsed))
	conflicting := make(map[string]bool)
	for _, rec := range parsed {
		if g, seen := groupsByUser[rec.UserID]; seen && g != rec.Group {
			conflicting[rec.UserID] = true
			continue
		}
		groupsByUser[rec.UserID] = rec.Group
	}

	kept := make(map[string]bool, len(groupsByUser))
	for _, rec := range parsed {
		if conflicting[rec.UserID] {
			continue
		}
		if kept[rec.UserID] {
			result.DuplicateRows++
			continue
		}
		kept[rec.UserID] = true
		result.Records = append(result.Records, rec)
	}

	result.ExcludedUsers = make([]string, 0, len(conflicting))
	for id := range conflicting {
		result.ExcludedUsers = append(result.ExcludedUsers, id)
	}
	sort.Strings(result.ExcludedUsers)

	p.logger.Debug("preprocess: %d rows in, %d incomplete, %d duplicate, %d users in both groups, %d records kept",
		result.RowsIn, result.DroppedIncomplete, result.DuplicateRows, len(result.ExcludedUsers), len(result.Records))

	return result, nil
}

type columnMap struct {
	exposure string
	extended []string
}

func (p *Preprocessor) resolveColumns(headers []string) (columnMap, error) {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[experiment.NormalizeHeader(h)] = true
	}

	for _, c := range []string{experiment.ColumnUserID, experiment.ColumnGroup, experiment.ColumnConverted} {
		if !present[c] {
			return columnMap{}, core.NewMissingColumnError(c)
		}
	}

	cm := columnMap{exposure: experiment.ColumnExposure}
	if !present[experiment.ColumnExposure] {
		if !present[experiment.ColumnExposureAlias] {
			return columnMap{}, core.NewMissingColumnError(experiment.ColumnExposure + " (or " + experiment.ColumnExposureAlias + ")")
		}
		cm.exposure = experiment.ColumnExposureAlias
	}

	for _, c := range p.opts.ExtendedColumns {
		if !present[c] {
			return columnMap{}, core.NewMissingColumnError(c)
		}
	}
	cm.extended = p.opts.ExtendedColumns

	return cm, nil
}

func normalizeRow(raw experiment.RawRow) experiment.RawRow {
	row := make(experiment.RawRow, len(raw))
	for k, v := range raw {
		row[experiment.NormalizeHeader(k)] = strings.TrimSpace(v)
	}
	return row
}

func (p *Preprocessor) complete(row experiment.RawRow, cm columnMap) bool {
	for _, c := range []string{experiment.ColumnUserID, experiment.ColumnGroup, experiment.ColumnConverted, cm.exposure} {
		if isMissing(row[c]) {
			return false
		}
	}
	return true
}

func (p *Preprocessor) coerce(row experiment.RawRow, cm columnMap, line int) (experiment.UserRecord, error) {
	group := experiment.GroupLabel(row[experiment.ColumnGroup])
	if !p.opts.Groups.Contains(group) {
		return experiment.UserRecord{}, core.NewUnknownGroupError(string(group), p.opts.Groups.Treatment.String(), p.opts.Groups.Control.String())
	}

	converted, ok := parseBool(row[experiment.ColumnConverted])
	if !ok {
		return experiment.UserRecord{}, core.NewUnparseableError(experiment.ColumnConverted, line, row[experiment.ColumnConverted])
	}

	exposure, ok := parseCount(row[cm.exposure])
	if !ok {
		return experiment.UserRecord{}, core.NewUnparseableError(cm.exposure, line, row[cm.exposure])
	}

	rec := experiment.UserRecord{
		UserID:        row[experiment.ColumnUserID],
		Group:         group,
		Converted:     converted,
		ExposureCount: exposure,
	}

	for _, c := range cm.extended {
		raw := row[c]
		if isMissing(raw) {
			continue
		}
		v, ok := parseNumeric(raw)
		if !ok {
			return experiment.UserRecord{}, core.NewUnparseableError(c, line, raw)
		}
		if rec.Extended == nil {
			rec.Extended = make(map[string]float64, len(cm.extended))
		}
		rec.Extended[c] = v
	}

	return rec, nil
}

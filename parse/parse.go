package parse

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spkg/bom"

	"seikabus.dev/shuttle/model"
)

// One row of the timetable asset. Hours without a row have no bus.
type TimetableCSV struct {
	Variant     string `csv:"variant"`
	Direction   string `csv:"direction"`
	Hour        string `csv:"hour"`
	Kind        string `csv:"kind"`
	Text        string `csv:"text"`
	StartMinute string `csv:"start_minute"`
	Minutes     string `csv:"minutes"`
}

func init() {
	// LazyCSVReader required (at least) to survive sloppy use of
	// quotes. The BOM reader strips unicode BOMs if present.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})
}

func parseMinute(s string) (int, error) {
	m, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("non-integer minute '%s'", s)
	}
	if m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute '%s'", s)
	}
	return m, nil
}

// Fails if any of the named columns is set. Columns that don't apply
// to a row's kind must be empty.
func unexpected(row *TimetableCSV, columns ...string) error {
	for _, column := range columns {
		var value string
		switch column {
		case "text":
			value = row.Text
		case "start_minute":
			value = row.StartMinute
		case "minutes":
			value = row.Minutes
		}
		if strings.TrimSpace(value) != "" {
			return fmt.Errorf("%s given for kind '%s': '%s'", column, row.Kind, value)
		}
	}
	return nil
}

func parseEntry(row *TimetableCSV) (model.HourEntry, error) {
	switch strings.ToLower(strings.TrimSpace(row.Kind)) {
	case "none", "nobus", "":
		if err := unexpected(row, "text", "start_minute", "minutes"); err != nil {
			return nil, err
		}
		return model.NoBus{}, nil

	case "interval":
		if row.Text == "" {
			return nil, fmt.Errorf("interval without text")
		}
		if err := unexpected(row, "minutes"); err != nil {
			return nil, err
		}
		entry := model.Interval{Description: row.Text}
		if strings.TrimSpace(row.StartMinute) != "" {
			m, err := parseMinute(row.StartMinute)
			if err != nil {
				return nil, fmt.Errorf("parsing start_minute: %w", err)
			}
			entry.StartMinute = m
			entry.HasStart = true
		}
		return entry, nil

	case "specific":
		if err := unexpected(row, "text", "start_minute"); err != nil {
			return nil, err
		}
		fields := strings.Fields(row.Minutes)
		if len(fields) == 0 {
			return nil, fmt.Errorf("specific without minutes")
		}
		minutes := make([]int, 0, len(fields))
		for _, f := range fields {
			m, err := parseMinute(f)
			if err != nil {
				return nil, fmt.Errorf("parsing minutes: %w", err)
			}
			if len(minutes) > 0 && m <= minutes[len(minutes)-1] {
				return nil, fmt.Errorf("minutes not strictly ascending: '%s'", row.Minutes)
			}
			minutes = append(minutes, m)
		}
		return model.Specific{Minutes: minutes}, nil
	}

	return nil, fmt.Errorf("unknown kind '%s'", row.Kind)
}

// Parses a timetable asset. Any malformed row is an error: a broken
// asset must never be served as if it were a valid schedule.
func ParseTimetable(data io.Reader) (*model.Timetable, error) {
	tt := model.NewTimetable()

	seen := map[string]bool{}

	i := -1
	err := gocsv.UnmarshalToCallbackWithError(data, func(row *TimetableCSV) error {
		i += 1

		variant, err := model.ParseVariant(row.Variant)
		if err != nil {
			return errors.Wrapf(err, "parsing variant (row %d)", i+1)
		}
		if variant == model.VariantNoService {
			return fmt.Errorf("rows given for variant '%s' (row %d)", row.Variant, i+1)
		}

		direction, err := model.ParseDirection(row.Direction)
		if err != nil {
			return errors.Wrapf(err, "parsing direction (row %d)", i+1)
		}

		hour, err := strconv.Atoi(strings.TrimSpace(row.Hour))
		if err != nil || hour < 0 || hour >= model.HoursPerDay {
			return fmt.Errorf("invalid hour '%s' (row %d)", row.Hour, i+1)
		}

		key := fmt.Sprintf("%s-%s-%d", variant, direction, hour)
		if seen[key] {
			return fmt.Errorf("duplicate variant/direction/hour: '%s' (row %d)", key, i+1)
		}
		seen[key] = true

		entry, err := parseEntry(row)
		if err != nil {
			return errors.Wrapf(err, "parsing entry (row %d)", i+1)
		}

		tt.Ensure(variant, direction)[hour] = entry

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "unmarshaling timetable csv")
	}

	if len(tt.Tables) == 0 {
		return nil, fmt.Errorf("timetable has no rows")
	}

	if err := tt.Validate(); err != nil {
		return nil, fmt.Errorf("validating timetable: %w", err)
	}

	return tt, nil
}

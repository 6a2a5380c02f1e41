package data

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"seikabus.dev/shuttle/model"
	"seikabus.dev/shuttle/parse"
)

// Timetable is the published schedule of the Kokusai Kaikan ⇄ Kyoto
// Seika University shuttle, in the CSV format read by
// parse.ParseTimetable.
//
//go:embed timetable.csv
var Timetable []byte

// LoadTimetable parses the timetable at path, or the embedded one if
// path is empty.
func LoadTimetable(path string) (*model.Timetable, error) {
	buf := Timetable
	if path != "" {
		var err error
		buf, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading timetable: %w", err)
		}
	}

	tt, err := parse.ParseTimetable(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("parsing timetable: %w", err)
	}

	return tt, nil
}

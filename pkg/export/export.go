// Package export writes tariff audit records for offline analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/retailmarket/core/audit"
)

// WriteJSON writes one JSON document per record.
func WriteJSON(w io.Writer, recs []audit.Record) error {
	enc := json.NewEncoder(w)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes the records with a header row.
func WriteCSV(w io.Writer, recs []audit.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "tariff_id", "broker", "command", "outcome", "timestamp", "timeslot"}); err != nil {
		return err
	}
	for _, r := range recs {
		rec := []string{
			r.ID,
			strconv.FormatInt(r.TariffID, 10),
			r.Broker,
			string(r.Command),
			string(r.Outcome),
			r.Timestamp.Format(time.RFC3339Nano),
			strconv.FormatInt(r.Timeslot, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write dispatches on format: "json" or "csv".
func Write(w io.Writer, format string, recs []audit.Record) error {
	switch format {
	case "", "json":
		return WriteJSON(w, recs)
	case "csv":
		return WriteCSV(w, recs)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

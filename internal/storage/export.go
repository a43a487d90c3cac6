package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/cartpoles/internal/dynamo"
	"github.com/san-kum/cartpoles/internal/sim"
)

// Header returns the export columns for n poles:
// s, d_s, theta_1, d_theta_1, …, theta_n, d_theta_n, u, time, T.
func Header(n int) []string {
	h := []string{"s", "d_s"}
	for i := 1; i <= n; i++ {
		h = append(h, fmt.Sprintf("theta_%d", i), fmt.Sprintf("d_theta_%d", i))
	}
	return append(h, "u", "time", "T")
}

// WriteCSV writes one row per history entry, index-aligned with the history.
func WriteCSV(w io.Writer, h *sim.History, numPoles int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(numPoles)); err != nil {
		return err
	}
	dim := 2 + 2*numPoles
	for i, e := range h.Entries() {
		if len(e.State) != dim {
			return fmt.Errorf("%w: history entry %d has %d components, want %d", dynamo.ErrDimensionMismatch, i, len(e.State), dim)
		}
		row := make([]string, 0, dim+3)
		for _, v := range e.State {
			row = append(row, formatFloat(v))
		}
		u := 0.0
		if len(e.Control) > 0 {
			u = e.Control[0]
		}
		row = append(row, formatFloat(u), formatFloat(e.Time), formatFloat(e.Torque))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file written by WriteCSV back into a history.
func ReadCSV(r io.Reader) (*sim.History, int, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 7 || (len(header)-5)%2 != 0 {
		return nil, 0, fmt.Errorf("%w: unexpected header %v", dynamo.ErrDimensionMismatch, header)
	}
	numPoles := (len(header) - 5) / 2
	dim := 2 + 2*numPoles
	cr.FieldsPerRecord = len(header)

	h := sim.NewHistory(0)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		vals := make([]float64, len(rec))
		for j, field := range rec {
			if vals[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, 0, fmt.Errorf("line %d column %s: %w", line, header[j], err)
			}
		}
		h.Append(sim.Entry{
			State:   dynamo.State(vals[:dim]),
			Control: dynamo.Control{vals[dim]},
			Time:    vals[dim+1],
			Torque:  vals[dim+2],
		})
	}
	return h, numPoles, nil
}

type exportData struct {
	Poles    int                `json:"poles"`
	Steps    int                `json:"steps"`
	Times    []float64          `json:"times"`
	States   [][]float64        `json:"states"`
	Controls [][]float64        `json:"controls"`
	Torques  []float64          `json:"torques"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
}

// WriteJSON writes the history as parallel arrays.
func WriteJSON(w io.Writer, h *sim.History, numPoles int, metrics map[string]float64) error {
	data := exportData{
		Poles:   numPoles,
		Steps:   h.Len(),
		Times:   h.Times(),
		Torques: h.Torques(),
		Metrics: metrics,
	}
	for _, s := range h.States() {
		data.States = append(data.States, s)
	}
	for _, c := range h.Controls() {
		data.Controls = append(data.Controls, c)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

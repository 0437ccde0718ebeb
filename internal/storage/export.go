package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/crnsim/internal/dynamo"
)

type ExportData struct {
	RunMetadata
	Times  []float64   `json:"times"`
	States [][]float64 `json:"states"`
}

// ExportJSON writes metadata and the full trajectory as indented JSON.
func ExportJSON(w io.Writer, meta RunMetadata, times []float64, states []dynamo.State) error {
	data := ExportData{
		RunMetadata: meta,
		Times:       times,
		States:      make([][]float64, len(states)),
	}
	for i, s := range states {
		data.States[i] = s
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// WriteCSV writes one row per sample: the time, then one column per species.
// Columns are named x0, x1, ... when species is empty.
func WriteCSV(out io.Writer, species []string, times []float64, states []dynamo.State) error {
	w := csv.NewWriter(out)

	if len(states) == 0 {
		w.Flush()
		return w.Error()
	}

	header := []string{"time"}
	for i := range states[0] {
		if i < len(species) {
			header = append(header, species[i])
		} else {
			header = append(header, fmt.Sprintf("x%d", i))
		}
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range states {
		row := []string{strconv.FormatFloat(times[i], 'g', -1, 64)}
		for _, val := range states[i] {
			row = append(row, strconv.FormatFloat(val, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

package domain

import "time"

// Case is one assessed AML case. Typology and Rationale are derived once by
// the classifier when the case is loaded and are not changed afterwards.
type Case struct {
	// Row is the 1-based data row in the source file.
	Row          int      `json:"row"`
	Scenario     string   `json:"scenario"`
	Level        string   `json:"level"`
	OverallScore float64  `json:"overallScore"`
	SAR          bool     `json:"sar"`
	Typology     Typology `json:"typology"`
	Rationale    string   `json:"typologyRationale"`
}

// Dataset is an immutable, classified snapshot of the case file.
type Dataset struct {
	ID       string    `json:"id"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loadedAt"`
	Cases    []Case    `json:"-"`
}

// DatasetLoad is the audit record written each time a dataset is loaded.
type DatasetLoad struct {
	ID             string           `json:"id"`
	Source         string           `json:"source"`
	RowCount       int              `json:"rowCount"`
	SARCount       int              `json:"sarCount"`
	TypologyCounts map[Typology]int `json:"typologyCounts"`
	LoadedAt       time.Time        `json:"loadedAt"`
}

// NewDatasetLoad summarizes a dataset into its audit record.
func NewDatasetLoad(ds *Dataset) *DatasetLoad {
	load := &DatasetLoad{
		ID:             ds.ID,
		Source:         ds.Source,
		RowCount:       len(ds.Cases),
		TypologyCounts: make(map[Typology]int),
		LoadedAt:       ds.LoadedAt,
	}
	for _, c := range ds.Cases {
		if c.SAR {
			load.SARCount++
		}
		load.TypologyCounts[c.Typology]++
	}
	return load
}

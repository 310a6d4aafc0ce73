package model

import "sort"

// RowStatus records how far enrichment got for a single case row.
type RowStatus string

const (
	RowStatusOK       RowStatus = "ok"
	RowStatusNoDetail RowStatus = "no_detail" // listing row had no detail link
	RowStatusNoPDF    RowStatus = "no_pdf"    // detail page had no PDF attachment
	RowStatusPartial  RowStatus = "partial"   // PDF known but download or extraction failed
	RowStatusFailed   RowStatus = "failed"    // detail page could not be fetched
)

// CacheStatus reports whether a PDF was served from the local cache.
type CacheStatus string

const (
	CacheStatusCached     CacheStatus = "cached"
	CacheStatusDownloaded CacheStatus = "downloaded"
)

// CaseRow is one row of the court notice board listing table.
type CaseRow struct {
	FinalDecisionDate string `json:"final_decision_date"`
	IncidentNumber    string `json:"incident_number"`
	DetailURL         string `json:"detail_url,omitempty"` // empty when the row has no link
}

// HasDetail reports whether the listing row links to a detail page.
func (r CaseRow) HasDetail() bool {
	return r.DetailURL != ""
}

// EnrichedCase is a CaseRow plus the fields mined from its judgment PDF.
type EnrichedCase struct {
	CaseRow

	PDFURL               string    `json:"pdf_url,omitempty"`
	PreviousDecisionDate string    `json:"previous_decision_date,omitempty"`
	DecisionText         string    `json:"decision_text,omitempty"`
	Status               RowStatus `json:"status"`
	Err                  string    `json:"error,omitempty"`

	// Page and Index locate the row in scrape order.
	Page  int `json:"page"`
	Index int `json:"index"`
}

// Normalize clears derived text fields when no PDF URL is known.
func (c *EnrichedCase) Normalize() {
	if c.PDFURL == "" {
		c.PreviousDecisionDate = ""
		c.DecisionText = ""
	}
}

// HasPDF reports whether a PDF attachment was resolved for the case.
func (c EnrichedCase) HasPDF() bool {
	return c.PDFURL != ""
}

// OutputTable is the ordered result of a scrape run.
type OutputTable []EnrichedCase

// SortTable orders rows by page, then by position within the page.
func SortTable(t OutputTable) {
	sort.SliceStable(t, func(i, j int) bool {
		if t[i].Page != t[j].Page {
			return t[i].Page < t[j].Page
		}
		return t[i].Index < t[j].Index
	})
}

// Counts tallies rows per status.
func (t OutputTable) Counts() map[RowStatus]int {
	counts := make(map[RowStatus]int)
	for _, c := range t {
		counts[c.Status]++
	}
	return counts
}

package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaseRow_HasDetail(t *testing.T) {
	assert.False(t, CaseRow{IncidentNumber: "2024도1"}.HasDetail())
	assert.True(t, CaseRow{DetailURL: "https://x/d"}.HasDetail())
}

func TestEnrichedCase_Normalize(t *testing.T) {
	c := EnrichedCase{PreviousDecisionDate: "a", DecisionText: "b"}
	c.Normalize()
	assert.Empty(t, c.PreviousDecisionDate)
	assert.Empty(t, c.DecisionText)

	c = EnrichedCase{PDFURL: "https://x/a.pdf", PreviousDecisionDate: "a", DecisionText: "b"}
	c.Normalize()
	assert.Equal(t, "a", c.PreviousDecisionDate)
	assert.Equal(t, "b", c.DecisionText)
	assert.True(t, c.HasPDF())
}

func TestSortTable(t *testing.T) {
	table := OutputTable{
		{CaseRow: CaseRow{IncidentNumber: "c"}, Page: 2, Index: 0},
		{CaseRow: CaseRow{IncidentNumber: "b"}, Page: 1, Index: 1},
		{CaseRow: CaseRow{IncidentNumber: "a"}, Page: 1, Index: 0},
	}
	SortTable(table)

	var got []string
	for _, c := range table {
		got = append(got, c.IncidentNumber)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestOutputTable_Counts(t *testing.T) {
	table := OutputTable{
		{Status: RowStatusOK},
		{Status: RowStatusOK},
		{Status: RowStatusNoPDF},
	}
	counts := table.Counts()
	assert.Equal(t, 2, counts[RowStatusOK])
	assert.Equal(t, 1, counts[RowStatusNoPDF])
	assert.Equal(t, 0, counts[RowStatusFailed])
}

func TestEnrichedCase_JSON(t *testing.T) {
	c := EnrichedCase{
		CaseRow: CaseRow{FinalDecisionDate: "2024. 5. 30.", IncidentNumber: "2023다12345"},
		Status:  RowStatusNoDetail,
		Page:    1,
	}
	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"final_decision_date":"2024. 5. 30.","incident_number":"2023다12345","status":"no_detail","page":1,"index":0}`, string(data))
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("connection reset")
	err := eris.Wrap(FetchError("listing page 1", base), "pipeline: listing page 1")

	assert.Equal(t, KindFetch, KindOf(err))
	assert.True(t, IsKind(err, KindFetch))
	assert.False(t, IsKind(err, KindParse))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "listing page 1")
}

func TestErrorKinds_Constructors(t *testing.T) {
	base := errors.New("x")
	assert.Equal(t, KindParse, ParseError("op", base).Kind)
	assert.Equal(t, KindExtraction, ExtractionError("op", base).Kind)
	assert.Equal(t, KindFilesystem, FilesystemError("op", base).Kind)
	assert.Equal(t, KindConfig, NewError(KindConfig, "op", base).Kind)
}

func TestErrorKinds_Untyped(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, KindFetch))
}

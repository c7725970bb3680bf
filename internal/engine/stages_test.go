package engine

import (
	"errors"
	"testing"
)

func TestStagePlanLengths(t *testing.T) {
	cases := []struct {
		source   Source
		crossRef CrossReferenceMode
		search   SearchMethod
		mode     Mode
		want     int
	}{
		{SourceRaster, CrossRefNone, SearchBBox, ModeURL, 4},
		{SourceRaster, CrossRefNone, SearchList, ModeURL, 5},
		{SourceRaster, CrossRefNone, SearchBBox, ModeLocal, 5},
		{SourceRaster, CrossRefNone, SearchList, ModeLocal, 6},
		{SourceTrackline, CrossRefNone, SearchBBox, ModeURL, 4},
		{SourceTrackline, CrossRefNone, SearchList, ModeURL, 4},
		{SourceTrackline, CrossRefNone, SearchBBox, ModeLocal, 5},
		{SourceTrackline, CrossRefNone, SearchList, ModeLocal, 5},
		{SourceRaster, CrossRefFetchOther, SearchBBox, ModeURL, 8},
		{SourceRaster, CrossRefFetchOther, SearchList, ModeURL, 9},
		{SourceRaster, CrossRefFetchOther, SearchBBox, ModeLocal, 10},
		{SourceRaster, CrossRefFetchOther, SearchList, ModeLocal, 11},
		{SourceTrackline, CrossRefFetchOther, SearchBBox, ModeURL, 10},
		{SourceTrackline, CrossRefFetchOther, SearchBBox, ModeLocal, 12},
		{SourceTrackline, CrossRefFetchBothThenCalculate, SearchList, ModeURL, 10},
		{SourceTrackline, CrossRefFetchBothThenCalculate, SearchList, ModeLocal, 12},
	}
	for _, tc := range cases {
		q := Query{Source: tc.source, CrossRef: tc.crossRef, Search: tc.search, Mode: tc.mode}
		plan, err := buildPlan(q)
		if err != nil {
			t.Errorf("%s/%s/%s/%s: %v", tc.source, tc.crossRef, tc.search, tc.mode, err)
			continue
		}
		if len(plan) != tc.want {
			t.Errorf("%s/%s/%s/%s: plan length %d, want %d", tc.source, tc.crossRef, tc.search, tc.mode, len(plan), tc.want)
		}
	}
}

func TestBuildPlanRejectsUnknownCombination(t *testing.T) {
	q := Query{Source: SourceRaster, Search: SearchBBox, Mode: Mode("stream"), CrossRef: CrossRefNone}
	var confErr *ConfigurationError
	if _, err := buildPlan(q); !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestValidateRejectsImpossibleQueries(t *testing.T) {
	cases := map[string]Query{
		"empty":            {},
		"bbox, no boxes":   {Source: SourceRaster, Mode: ModeLocal, Search: SearchBBox, CrossRef: CrossRefNone},
		"list, no charts":  {Source: SourceRaster, Mode: ModeLocal, Search: SearchList, CrossRef: CrossRefNone},
		"list, no vessels": {Source: SourceTrackline, Mode: ModeURL, Search: SearchList, CrossRef: CrossRefNone},
		"unknown source":   {Source: Source("sonar"), Mode: ModeLocal, Search: SearchList, CrossRef: CrossRefNone, Charts: []string{"US4MA23M"}},
		"unknown crossref": {Source: SourceRaster, Mode: ModeLocal, Search: SearchList, CrossRef: CrossReferenceMode("maybe"), Charts: []string{"US4MA23M"}},
	}
	for name, q := range cases {
		var confErr *ConfigurationError
		if err := q.Validate(); !errors.As(err, &confErr) {
			t.Errorf("%s: expected ConfigurationError, got %v", name, err)
		}
	}
}

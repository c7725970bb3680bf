package engine

// stageID identifies one unit of progress. The plan for a pass is fixed
// before any I/O happens; the progress counter's total is the plan length
// and the counter equals it at every terminal state.
type stageID int

const (
	stagePrimaryInit stageID = iota
	stageOutputRoot
	stageChartScope
	stageCatalogQuery
	stageTrackDiscovery
	stageTileDirs
	stageFetchManifest
	stageURLManifest
	stageSecondaryInit
	stageCellsFromTracks
)

func (s stageID) String() string {
	switch s {
	case stagePrimaryInit:
		return "initialize"
	case stageOutputRoot:
		return "prepare output root"
	case stageChartScope:
		return "resolve chart scope"
	case stageCatalogQuery:
		return "query tile catalog"
	case stageTrackDiscovery:
		return "discover tracklines"
	case stageTileDirs:
		return "prepare download directories"
	case stageFetchManifest:
		return "fetch and write manifest"
	case stageURLManifest:
		return "compile locators and write manifest"
	case stageSecondaryInit:
		return "begin cross-reference"
	case stageCellsFromTracks:
		return "derive charts from tracklines"
	default:
		return "unknown"
	}
}

// buildPlan computes the fixed stage sequence for one pass of q. An
// unmatched combination is a ConfigurationError; no partial plan is ever
// executed.
func buildPlan(q Query) ([]stageID, error) {
	primary, err := primaryLeg(q.Source, q.Search, q.Mode)
	if err != nil {
		return nil, err
	}
	if q.CrossRef == CrossRefNone {
		return primary, nil
	}

	secondary, err := secondaryLeg(q.Source.other(), q.Mode)
	if err != nil {
		return nil, err
	}
	return append(primary, secondary...), nil
}

func primaryLeg(source Source, search SearchMethod, mode Mode) ([]stageID, error) {
	switch source {
	case SourceRaster:
		plan := []stageID{stagePrimaryInit, stageOutputRoot}
		if search == SearchList {
			plan = append(plan, stageChartScope)
		}
		plan = append(plan, stageCatalogQuery)
		switch mode {
		case ModeURL:
			return append(plan, stageURLManifest), nil
		case ModeLocal:
			return append(plan, stageTileDirs, stageFetchManifest), nil
		}
	case SourceTrackline:
		plan := []stageID{stagePrimaryInit, stageOutputRoot, stageTrackDiscovery}
		switch mode {
		case ModeURL:
			return append(plan, stageURLManifest), nil
		case ModeLocal:
			return append(plan, stageTileDirs, stageFetchManifest), nil
		}
	}
	return nil, &ConfigurationError{Problems: []string{
		"no stage plan for source " + string(source) + " mode " + string(mode),
	}}
}

// secondaryLeg plans the cross-reference leg, which enters with the primary
// leg's discoveries as its search scope.
func secondaryLeg(source Source, mode Mode) ([]stageID, error) {
	switch source {
	case SourceTrackline:
		plan := []stageID{stageSecondaryInit, stageOutputRoot, stageTrackDiscovery}
		switch mode {
		case ModeURL:
			return append(plan, stageURLManifest), nil
		case ModeLocal:
			return append(plan, stageTileDirs, stageFetchManifest), nil
		}
	case SourceRaster:
		plan := []stageID{stageSecondaryInit, stageCellsFromTracks, stageOutputRoot, stageChartScope, stageCatalogQuery}
		switch mode {
		case ModeURL:
			return append(plan, stageURLManifest), nil
		case ModeLocal:
			return append(plan, stageTileDirs, stageFetchManifest), nil
		}
	}
	return nil, &ConfigurationError{Problems: []string{
		"no cross-reference plan for source " + string(source) + " mode " + string(mode),
	}}
}

package checks

// Detection thresholds. These are behavioral constants, not tunables: the
// fix-plan builder and downstream tooling assume these exact gates.
const (
	// highCorrThreshold flags near-perfect linear relationships with the
	// target, by |corr| or single-variable R².
	highCorrThreshold = 0.98

	// Categorical purity: categories of at least purityMinGroup rows whose
	// target mean is outside (purityLowerBound, purityUpperBound) are
	// near-perfect predictors.
	purityMinGroup   = 20
	purityLowerBound = 0.02
	purityUpperBound = 0.98
	// Purity only applies to low-cardinality columns: fewer distinct values
	// than max(purityCardinalityFloor, purityCardinalityShare × rows).
	purityCardinalityFloor = 10
	purityCardinalityShare = 0.01

	// Target-encoding suspects: bounded-to-[0,1] or target-mean-adjacent
	// columns correlated with the target at or above encodingCorrThreshold.
	encodingCorrThreshold = 0.7
	encodingMeanTolerance = 0.1

	// Time-window aggregates: almost-flat columns (CoV below
	// windowCoVThreshold) still correlated with the target.
	windowCoVThreshold  = 0.1
	windowCorrThreshold = 0.3

	// Grouping candidates: cardinality strictly below this share of rows.
	groupingCardinalityShare = 0.2

	// Statistical preview: flatter still, any non-trivial correlation.
	statCoVThreshold  = 0.05
	statCorrThreshold = 0.1
)

package sleep

// Stage is one semantic sleep stage resolved from a type-reference row.
type Stage string

const (
	StageInBed       Stage = "inBed"
	StageAwake       Stage = "awake"
	StageREM         Stage = "rem"
	StageCore        Stage = "core"
	StageDeep        Stage = "deep"
	StageUnspecified Stage = "asleepUnspecified"
)

// ParseStage maps a reference-table key to a Stage. Keys not listed here are
// unknown and the caller drops the record.
func ParseStage(key string) (Stage, bool) {
	switch key {
	case "in_bed":
		return StageInBed, true
	case "awake":
		return StageAwake, true
	case "rem":
		return StageREM, true
	case "core":
		return StageCore, true
	case "deep":
		return StageDeep, true
	case "asleep", "unspecified":
		return StageUnspecified, true
	}
	return "", false
}

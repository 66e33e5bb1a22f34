package model

// MaturityLevel is the bucket a total score falls into
type MaturityLevel string

const (
	LevelInitial     MaturityLevel = "Initial"     // 8-13
	LevelEmerging    MaturityLevel = "Emerging"    // 14-20
	LevelEstablished MaturityLevel = "Established" // 21-27
	LevelOptimizing  MaturityLevel = "Optimizing"  // 28-32
)

// MaturityLevels lists every level from least to most mature
var MaturityLevels = []MaturityLevel{LevelInitial, LevelEmerging, LevelEstablished, LevelOptimizing}

// Rank returns the position of the level in MaturityLevels, or -1 if unknown
func (l MaturityLevel) Rank() int {
	for i, lvl := range MaturityLevels {
		if lvl == l {
			return i
		}
	}
	return -1
}

// Known role tags. The set is open; the allowed list comes from config.
const (
	RoleEngineer = "engineer"
	RoleProduct  = "product"
)

// Option is one of the four ordered answers to a question
type Option struct {
	Value int    `json:"value"` // 1-4, higher is more mature
	Label string `json:"label"` // A-D
	Text  string `json:"text"`
}

// Question is one assessment area
type Question struct {
	ID      string   `json:"id"` // e.g., "q1"
	Title   string   `json:"title"`
	Options []Option `json:"options"`
}

// Interpretation describes what a maturity level means for a team
type Interpretation struct {
	Level       MaturityLevel `json:"level"`
	Min         int           `json:"min"`
	Max         int           `json:"max"`
	Description string        `json:"description"`
}

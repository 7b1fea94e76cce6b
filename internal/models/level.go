package models

import "strings"

// Level is a student's skill tier. Levels are totally ordered.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

var levelOrder = []Level{LevelBeginner, LevelIntermediate, LevelAdvanced}

// ParseLevel normalises raw input into a Level.
func ParseLevel(raw string) (Level, bool) {
	level := Level(strings.ToLower(strings.TrimSpace(raw)))
	return level, level.Valid()
}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	return l.Ordinal() >= 0
}

// Ordinal returns the position of l in the level ordering, or -1 when unknown.
func (l Level) Ordinal() int {
	for i, candidate := range levelOrder {
		if candidate == l {
			return i
		}
	}
	return -1
}

// Next returns the level directly above l.
func (l Level) Next() (Level, bool) {
	idx := l.Ordinal()
	if idx < 0 || idx+1 >= len(levelOrder) {
		return "", false
	}
	return levelOrder[idx+1], true
}

// Distance returns the signed number of steps from l to target.
func (l Level) Distance(target Level) int {
	return target.Ordinal() - l.Ordinal()
}

// LevelPtr is a small helper for optional level fields.
func LevelPtr(l Level) *Level {
	return &l
}

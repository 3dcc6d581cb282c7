package models

import "github.com/pkg/errors"

// AuthorizationLevel is an actor's approval authority tier. Levels are
// ordered; a higher level may do everything a lower one may.
type AuthorizationLevel int

const (
	LevelRequester AuthorizationLevel = iota
	LevelStock
	LevelProcurement
	LevelManager
	LevelDirector
	LevelAdmin
)

var levelNames = map[AuthorizationLevel]string{
	LevelRequester:   "requester",
	LevelStock:       "stock",
	LevelProcurement: "procurement",
	LevelManager:     "manager",
	LevelDirector:    "director",
	LevelAdmin:       "admin",
}

func (l AuthorizationLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseAuthorizationLevel converts a wire-level name into a level.
func ParseAuthorizationLevel(name string) (AuthorizationLevel, error) {
	for level, n := range levelNames {
		if n == name {
			return level, nil
		}
	}
	return 0, errors.Errorf("unknown authorization level %q", name)
}

// Actor identifies who performs a stage transition.
type Actor struct {
	Username string             `json:"username"`
	Level    AuthorizationLevel `json:"level"`
}

package enums

// FetchLevel selects how much of an entity is rendered.
type FetchLevel string

const (
	FetchIDOnly   FetchLevel = "id_only"
	FetchCompact  FetchLevel = "compact"
	FetchDefault  FetchLevel = "default"
	FetchDetailed FetchLevel = "detailed"
)

var validFetchLevels = []FetchLevel{
	FetchIDOnly,
	FetchCompact,
	FetchDefault,
	FetchDetailed,
}

func (f FetchLevel) IsValid() bool {
	for _, candidate := range validFetchLevels {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFetchLevel falls back to fallback when value is empty.
func ParseFetchLevel(value string, fallback FetchLevel) (FetchLevel, error) {
	if value == "" {
		return fallback, nil
	}
	for _, candidate := range validFetchLevels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", &DecodeError{Enum: "fetch level", Value: value}
}

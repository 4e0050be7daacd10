package domain

// DefaultMaxElementsInStorage is the default cap on live documents per
// storage segment before a collection starts a new one.
const DefaultMaxElementsInStorage = 50000

// TruthyStrings is the recognized set of CLI/environment boolean
// spellings.
var TruthyStrings = map[string]bool{
	"true": true, "True": true,
	"1":   true,
	"yes": true, "Yes": true,
	"on": true, "On": true,
}

// IsTruthy reports whether s is in TruthyStrings.
func IsTruthy(s string) bool {
	return TruthyStrings[s]
}

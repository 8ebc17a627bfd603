package integrity

// #region integrity-config
// Config holds the tolerances for series integrity checks.
type Config struct {
	MaxNegativeActiveDays int  // fail if more days than this have active < 0
	RequireAttribution    bool // fail when closed incidents fall outside every band
}

// DefaultConfig tolerates no negative active days and treats unattributed
// closures as informational.
func DefaultConfig() Config {
	return Config{
		MaxNegativeActiveDays: 0,
		RequireAttribution:    false,
	}
}
// #endregion integrity-config

// #region integrity-check
// Check captures a single integrity check result. Value is the number of
// offending days, or the offending count for attribution.
type Check struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Pass  bool   `json:"pass"`
}
// #endregion integrity-check

// #region integrity-result
// Result is the output of an integrity run.
type Result struct {
	Passed bool    `json:"passed"`
	Checks []Check `json:"checks"`
	Reason string  `json:"reason"`
}
// #endregion integrity-result

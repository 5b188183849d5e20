package topic

// Filter syntax understood by Match.
const (
	// Wildcard matches exactly one level: "canscope/v1/can/+/rx".
	Wildcard = "+"

	// MultiWildcard matches the rest of the topic and must come last.
	MultiWildcard = "#"

	// SharePrefix marks a shared subscription: "$share/{group}/{filter}".
	SharePrefix = "$share/"

	separator = "/"
)

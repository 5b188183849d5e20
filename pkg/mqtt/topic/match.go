package topic

import "strings"

// Match reports whether topic is selected by filter. Shared subscription
// prefixes are ignored.
func Match(filter, topic string) bool {
	filter = Filter(filter)
	if filter == topic {
		return true
	}
	if !strings.Contains(filter, Wildcard) && !strings.Contains(filter, MultiWildcard) {
		return false
	}

	fp := strings.Split(filter, separator)
	tp := strings.Split(topic, separator)
	for i, part := range fp {
		if part == MultiWildcard {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if part != Wildcard && part != tp[i] {
			return false
		}
	}
	return len(fp) == len(tp)
}

// Filter strips a "$share/{group}/" prefix from a subscription filter.
func Filter(filter string) string {
	if !strings.HasPrefix(filter, SharePrefix) {
		return filter
	}
	parts := strings.SplitN(filter, separator, 3)
	if len(parts) != 3 {
		return filter
	}
	return parts[2]
}

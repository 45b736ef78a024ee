package selection

// Contains reports whether name is in list.
func Contains(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}

// Subtract returns items minus remove, preserving order.
func Subtract(items, remove []string) []string {
	drop := toSet(remove)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := drop[item]; !ok {
			out = append(out, item)
		}
	}
	return out
}

// Intersect returns the items also present in allowed, preserving order.
func Intersect(items, allowed []string) []string {
	keep := toSet(allowed)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := keep[item]; ok {
			out = append(out, item)
		}
	}
	return out
}

// Overlap returns the distinct names of items that appear in other, in
// items order.
func Overlap(items, other []string) []string {
	in := toSet(other)
	seen := make(map[string]struct{})
	var out []string
	for _, item := range items {
		if _, ok := in[item]; !ok {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// IsSubset reports whether every item is in allowed.
func IsSubset(items, allowed []string) bool {
	in := toSet(allowed)
	for _, item := range items {
		if _, ok := in[item]; !ok {
			return false
		}
	}
	return true
}

func toSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, item := range list {
		set[item] = struct{}{}
	}
	return set
}

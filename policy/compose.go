package policy

// ComposePolicies concatenates multiple policy bundles into one,
// preserving each bundle's declaration order. The result contains
// exactly the union of the bundles' rules.
func ComposePolicies(bundles ...[]Policy) []Policy {
	n := 0
	for _, b := range bundles {
		n += len(b)
	}
	out := make([]Policy, 0, n)
	for _, b := range bundles {
		out = append(out, b...)
	}
	return out
}

// ExtendPolicy returns base extended with extra rules appended. The base
// bundle is not modified.
func ExtendPolicy(base []Policy, extra ...Policy) []Policy {
	out := make([]Policy, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

// OverridePolicy returns base with every rule named name replaced by
// replacement, in place. Rules without a matching name are kept as-is;
// when no rule matches, base is returned unchanged (copied).
func OverridePolicy(base []Policy, name string, replacement Policy) []Policy {
	out := make([]Policy, len(base))
	copy(out, base)
	for i := range out {
		if out[i].Name == name {
			out[i] = replacement
		}
	}
	return out
}

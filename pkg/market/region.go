package market

import (
	"sort"
	"strings"
)

// regionAliases maps a region key to the country/region names that may appear
// in a seller's free-text location. Matching is a case-insensitive substring
// test against each alias.
var regionAliases = map[string][]string{
	"US": {"united states", "u.s.a", "u.s."},
	"UK": {"united kingdom", "england", "scotland", "wales", "northern ireland", "great britain"},
	"CA": {"canada"},
	"AU": {"australia"},
	"NZ": {"new zealand"},
	"JP": {"japan"},
	"DE": {"germany", "deutschland"},
	"FR": {"france"},
	"NL": {"netherlands", "holland"},
	"IT": {"italy"},
	"ES": {"spain"},
	"SE": {"sweden"},
	"EU": {
		"austria", "belgium", "bulgaria", "croatia", "cyprus", "czech",
		"denmark", "estonia", "finland", "france", "germany", "greece",
		"hungary", "ireland", "italy", "latvia", "lithuania", "luxembourg",
		"malta", "netherlands", "poland", "portugal", "romania", "slovakia",
		"slovenia", "spain", "sweden",
	},
}

// shadowedBy lists longer place names that contain an alias but name
// somewhere else. They are blanked out before that alias is tested.
var shadowedBy = map[string][]string{
	"ireland": {"northern ireland"},
}

// Regions returns the known region keys, sorted.
func Regions() []string {
	keys := make([]string, 0, len(regionAliases))
	for k := range regionAliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KnownRegion reports whether key has an alias list.
func KnownRegion(key string) bool {
	_, ok := regionAliases[strings.ToUpper(strings.TrimSpace(key))]
	return ok
}

// RegionAliases returns the aliases for a region key. An unknown key is its
// own single alias, so free-form country names still filter sensibly.
func RegionAliases(key string) []string {
	k := strings.TrimSpace(key)
	if aliases, ok := regionAliases[strings.ToUpper(k)]; ok {
		return aliases
	}
	if k == "" {
		return nil
	}
	return []string{strings.ToLower(k)}
}

// InRegion reports whether location mentions any alias of region.
func InRegion(location, region string) bool {
	loc := strings.ToLower(location)
	for _, alias := range RegionAliases(region) {
		text := loc
		for _, other := range shadowedBy[alias] {
			text = strings.ReplaceAll(text, other, " ")
		}
		if strings.Contains(text, alias) {
			return true
		}
	}
	return false
}

// Package resources holds the fixed enumeration of tradeable resources and
// the allow-list mapping from resource name to balance column. Every mutation
// path resolves a column through this package before building SQL, so an
// unknown name is rejected without ever reaching the database.
package resources

// Money is the currency identifier accepted by the ledger alongside the
// resource names. "gold" is a legacy alias for the same column.
const Money = "money"

var names = []string{
	"rations",
	"oil",
	"coal",
	"uranium",
	"bauxite",
	"lead",
	"copper",
	"iron",
	"lumber",
	"components",
	"steel",
	"consumer_goods",
	"aluminium",
	"gasoline",
	"ammunition",
}

var columns = buildColumnSet()

func buildColumnSet() map[string]string {
	set := make(map[string]string, len(names))
	for _, name := range names {
		set[name] = name
	}
	return set
}

// Names returns the tradeable resource names, excluding money.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Valid reports whether name is a known resource (money excluded).
func Valid(name string) bool {
	_, ok := columns[name]
	return ok
}

// IsMoney reports whether name refers to the currency balance.
func IsMoney(name string) bool {
	return name == Money || name == "gold"
}

// Column resolves a resource name to its column identifier in the resources
// table. The second return is false for unknown names and for money, which
// lives in the stats table instead.
func Column(name string) (string, bool) {
	column, ok := columns[name]
	return column, ok
}

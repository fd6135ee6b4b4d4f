package projector

import (
	"strings"

	"github.com/dbsmedya/gosymbol/internal/metadata"
)

// Modifier is one bit of a MethodRecord's AccessModifiers mask.
type Modifier int

const (
	Public       Modifier = 1
	Private      Modifier = 2
	Abstract     Modifier = 4
	Static       Modifier = 8
	Synchronized Modifier = 16
	Final        Modifier = 32
	Protected    Modifier = 64
)

// modifierTable is evaluated in order for every method. Each predicate
// stands alone, so a mask may carry bits the source language would never
// combine.
var modifierTable = []struct {
	flag  Modifier
	name  string
	check func(*metadata.MethodDefinition) bool
}{
	{Public, "public", (*metadata.MethodDefinition).IsPublic},
	{Private, "private", (*metadata.MethodDefinition).IsPrivate},
	{Abstract, "abstract", (*metadata.MethodDefinition).IsAbstract},
	{Static, "static", (*metadata.MethodDefinition).IsStatic},
	{Synchronized, "synchronized", (*metadata.MethodDefinition).IsSynchronized},
	{Final, "final", (*metadata.MethodDefinition).IsFinal},
	{Protected, "protected", (*metadata.MethodDefinition).IsFamily},
}

func (m Modifier) String() string {
	for _, e := range modifierTable {
		if e.flag == m {
			return e.name
		}
	}
	return "unknown"
}

// Modifiers computes the mask for a method.
func Modifiers(md *metadata.MethodDefinition) int {
	mask := 0
	for _, e := range modifierTable {
		if e.check(md) {
			mask |= int(e.flag)
		}
	}
	return mask
}

// Decode lists the modifiers set in mask in table order. Unknown bits are
// ignored.
func Decode(mask int) []Modifier {
	var out []Modifier
	for _, e := range modifierTable {
		if mask&int(e.flag) != 0 {
			out = append(out, e.flag)
		}
	}
	return out
}

// FormatMask renders mask as space-separated modifier names.
func FormatMask(mask int) string {
	mods := Decode(mask)
	names := make([]string, len(mods))
	for i, m := range mods {
		names[i] = m.String()
	}
	return strings.Join(names, " ")
}

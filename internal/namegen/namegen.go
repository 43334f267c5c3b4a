// Package namegen produces memorable display names for senders that
// never configured one. Names are adjective-animal pairs, stable for a
// given seed so the same sender identity keeps the same name.
package namegen

import (
	"hash/fnv"
	"math/rand"
)

var adjectives = []string{
	"amber", "bold", "brisk", "calm", "clever", "daring", "deft",
	"eager", "fleet", "gentle", "keen", "lucid", "merry", "nimble",
	"patient", "quiet", "rapid", "sly", "steady", "swift", "tidy",
	"vivid", "wary", "witty", "zesty",
}

var animals = []string{
	"badger", "bee", "crane", "crow", "fox", "hare", "heron", "ibex",
	"lark", "lemur", "lynx", "marmot", "mole", "newt", "otter", "owl",
	"pike", "raven", "seal", "shrew", "stoat", "swift", "tern",
	"vole", "wren",
}

// ForSeed returns the memorable name for an arbitrary seed string,
// typically a sender identifier. The mapping is deterministic.
func ForSeed(seed string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	r := rand.New(rand.NewSource(int64(h.Sum64()))) // #nosec G404 - naming, not crypto
	return adjectives[r.Intn(len(adjectives))] + "-" + animals[r.Intn(len(animals))]
}

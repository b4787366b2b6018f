package payload

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rulegraph/internal/graph"
)

// Domain prefixes for content hashes. The version suffix allows the
// algorithm to change without colliding with old hashes.
const (
	DomainData  = "rulegraph/data/v1"
	DomainEdges = "rulegraph/edges/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash computes the content hash of a payload object.
// Equal objects hash equally regardless of map iteration order.
func Hash(obj Object) (string, error) {
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("hash payload: %w", err)
	}
	return hashWithDomain(DomainData, canonical), nil
}

// EdgeSetHash fingerprints a set of edges. The hash ignores enumeration
// order, so two graphs with the same edge set hash equally even if they
// were built in a different order.
func EdgeSetHash(edges []graph.Edge) string {
	keys := make([]string, len(edges))
	for i, e := range edges {
		keys[i] = e.From + "\x00" + e.To
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)
	return hashWithDomain(DomainEdges, []byte(strings.Join(keys, "\n")))
}

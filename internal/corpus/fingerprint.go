package corpus

import (
	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the embedding model id together with the content of every
// entry. A vector cache built under a different fingerprint is stale.
func (c *Corpus) Fingerprint(model string) uint64 {
	d := xxhash.New()
	writeField(d, model)
	for _, e := range c.Entries() {
		writeField(d, e.SectionID)
		writeField(d, e.Title)
		writeField(d, e.Description)
	}
	return d.Sum64()
}

// Fields are NUL-terminated so that ("ab","c") and ("a","bc") hash differently.
func writeField(d *xxhash.Digest, s string) {
	_, _ = d.WriteString(s)
	_, _ = d.Write([]byte{0})
}

// Package cache implements the §4.7 tenant-isolated cache-key discipline
// over the KvAdapter boundary. Grounded on
// control_plane/store/keys.go's TenantKey/TenantPrefix helpers, narrowed
// from the resource-typed key space (agents/jobs/states) to the single
// cached-artifact namespace the RAG core needs.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// MaxKeyLength is the point past which a key is hashed instead of carried
// verbatim (§4.7 "Keys longer than 200 characters are hashed").
const MaxKeyLength = 200

// Key builds the fully qualified, tenant-prefixed cache key for the given
// logical key, per the genai:cache:<tenant>:<key> layout in §6's persisted
// state table. No code path elsewhere in the repo may construct a cache
// key without going through this function — the tenant_id prefix is the
// hard isolation boundary §4.7 and the S4/property-3 tests rely on.
func Key(tenantID, logicalKey string) string {
	full := fmt.Sprintf("genai:cache:%s:%s", tenantID, logicalKey)
	if len(full) <= MaxKeyLength {
		return full
	}
	sum := sha256.Sum256([]byte(logicalKey))
	return fmt.Sprintf("genai:cache:%s:%s", tenantID, hex.EncodeToString(sum[:]))
}

// Prefix returns the search pattern for every key belonging to a tenant,
// for clear_tenant's enumerate-then-delete.
func Prefix(tenantID string) string {
	return fmt.Sprintf("genai:cache:%s:", tenantID)
}

package smol

import "github.com/google/uuid"

// BuildID is a random identifier stamped into the metapage at build time,
// adapted from the teacher's storage.ParseUUID/UUIDToBytes helpers.
// Surfaced by cmd/smolinspect for support/debugging; never consulted in
// comparisons or correctness paths. Minted at build time by
// pager.NewBuildID, not here — this file only parses one back.
type BuildID = uuid.UUID

// ParseBuildID parses a string form of a BuildID, as accepted by
// cmd/smolinspect's "meta -expect-build" flag.
func ParseBuildID(s string) (BuildID, error) { return uuid.Parse(s) }

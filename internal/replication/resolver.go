package replication

import (
	"noteenvelope-sync/internal/domain"
)

type Outcome string

const (
	Adopted            Outcome = "adopted"
	FastForwarded      Outcome = "fast_forwarded"
	Stale              Outcome = "stale"
	Converged          Outcome = "converged"
	ResolvedRemoteWins Outcome = "resolved_remote_wins"
	ResolvedLocalWins  Outcome = "resolved_local_wins"

	SelfEcho    Outcome = "self_echo"
	Malformed   Outcome = "malformed"
	Tombstoned  Outcome = "tombstoned"
	Deleted     Outcome = "deleted"
	StaleDelete Outcome = "stale_delete"
	// Requested means a peer asked for a full announce.
	Requested Outcome = "sync_requested"
)

func (o Outcome) IsConflict() bool {
	return o == ResolvedRemoteWins || o == ResolvedLocalWins
}

type Resolution[R any] struct {
	Outcome Outcome
	// Record is the local state after the merge.
	Record R
	// Write reports whether Record differs from what is stored.
	Write bool
}

// Resolve merges remote into the local copy of the same record. self is the
// local device id, used to resolve unknown local origins.
func Resolve[R domain.Record[R]](local R, hasLocal bool, remote R, self string) Resolution[R] {
	if !hasLocal {
		return Resolution[R]{Outcome: Adopted, Record: remote, Write: true}
	}

	lm, rm := local.Metadata(), remote.Metadata()
	switch {
	case lm.Version < rm.Version:
		return Resolution[R]{Outcome: FastForwarded, Record: remote, Write: true}
	case lm.Version > rm.Version:
		return Resolution[R]{Outcome: Stale, Record: local}
	case local.SameContent(remote):
		return Resolution[R]{Outcome: Converged, Record: local}
	case remoteWins(lm, rm, self):
		merged, _ := remote.Archive(local, self)
		return Resolution[R]{Outcome: ResolvedRemoteWins, Record: merged, Write: true}
	default:
		merged, appended := local.Archive(remote, "")
		return Resolution[R]{Outcome: ResolvedLocalWins, Record: merged, Write: appended}
	}
}

// remoteWins applies last-write-wins on updatedAt. Identical timestamps are
// broken by origin device id so every device picks the same winner.
func remoteWins(local, remote domain.Meta, self string) bool {
	if !remote.UpdatedAt.Equal(local.UpdatedAt) {
		return remote.UpdatedAt.After(local.UpdatedAt)
	}
	return remote.Origin.String() > local.Origin.OrSelf(self).String()
}

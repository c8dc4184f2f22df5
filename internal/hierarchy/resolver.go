// Package hierarchy derives who may privately chat with whom from the
// team -> department -> user structure.
package hierarchy

import (
	"github.com/google/uuid"

	"github.com/aura-org/backend/internal/models"
)

// Position is the slice of the hierarchy around one user that the resolver needs.
// Which fields are filled depends on the user's role; see Repository.Position.
type Position struct {
	// team-leader: heads of the departments in the leader's team (may contain duplicates)
	TeamDeptHeadIDs []uuid.UUID
	// dept-head: the department the user heads; nil when they head none
	HeadedDepartmentID *uuid.UUID
	// dept-head: the leader of the user's team
	TeamLeaderID *uuid.UUID
	// dept-head: member-role users of the headed department
	DepartmentMemberIDs []uuid.UUID
	// member: the head of the member's department
	DepartmentHeadID *uuid.UUID
}

// Set is an unordered set of user ids.
type Set map[uuid.UUID]struct{}

// Has reports membership.
func (s Set) Has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// Slice returns the members in unspecified order.
func (s Set) Slice() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

func (s Set) add(id *uuid.UUID) {
	if id != nil && *id != uuid.Nil {
		s[*id] = struct{}{}
	}
}

// AllowedCounterparts returns the users u may hold a hierarchy-derived private chat with.
// It never fails: missing position data yields fewer (or no) counterparts, and u itself is never
// included.
func AllowedCounterparts(u models.User, pos Position) Set {
	allowed := Set{}
	switch u.Role {
	case models.RoleTeamLeader:
		for i := range pos.TeamDeptHeadIDs {
			allowed.add(&pos.TeamDeptHeadIDs[i])
		}
	case models.RoleDeptHead:
		// a dept-head who heads no department has no place in the hierarchy
		if pos.HeadedDepartmentID == nil {
			break
		}
		allowed.add(pos.TeamLeaderID)
		for i := range pos.DepartmentMemberIDs {
			allowed.add(&pos.DepartmentMemberIDs[i])
		}
	case models.RoleMember:
		allowed.add(pos.DepartmentHeadID)
	}
	delete(allowed, u.ID)
	return allowed
}

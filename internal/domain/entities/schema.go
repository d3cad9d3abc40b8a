package entities

// PermittedRelations maps each entity type to the relationship types it may
// appear as the subject of. Pairs absent from this matrix are rejected at
// relationship creation.
var PermittedRelations = map[EntityType][]RelationType{
	EntityPerson: {
		RelationParentOf, RelationChildOf, RelationSiblingOf, RelationMarriedTo,
		RelationFriendOf, RelationAlliedWith, RelationEnemyOf,
		RelationLocatedIn, RelationOwns, RelationMemberOf, RelationLeaderOf,
		RelationCreated,
	},
	EntityCreature: {
		RelationParentOf, RelationChildOf, RelationAlliedWith, RelationEnemyOf,
		RelationLocatedIn, RelationOwns, RelationMemberOf,
	},
	EntityOrganization: {
		RelationAlliedWith, RelationEnemyOf, RelationLocatedIn, RelationOwns,
		RelationMemberOf, RelationCreated,
	},
	EntityPlace: {
		RelationLocatedIn,
	},
	EntityItem: {
		RelationLocatedIn,
	},
	EntityEvent: {
		RelationLocatedIn,
	},
	EntityConcept: {},
}

// ConflictingRelations maps each relationship type to the types it cannot
// coexist with between the same ordered entity pair while both are temporally
// valid.
var ConflictingRelations = map[RelationType][]RelationType{
	RelationEnemyOf:    {RelationAlliedWith, RelationFriendOf, RelationMarriedTo},
	RelationAlliedWith: {RelationEnemyOf},
	RelationFriendOf:   {RelationEnemyOf},
	RelationMarriedTo:  {RelationEnemyOf},
	RelationParentOf:   {RelationChildOf, RelationSiblingOf, RelationMarriedTo},
	RelationChildOf:    {RelationParentOf, RelationSiblingOf, RelationMarriedTo},
	RelationSiblingOf:  {RelationParentOf, RelationChildOf, RelationMarriedTo},
}

// RelationPermitted reports whether an entity of the given type may be the
// subject of the given relationship type.
func RelationPermitted(subject EntityType, rel RelationType) bool {
	for _, allowed := range PermittedRelations[subject] {
		if allowed == rel {
			return true
		}
	}
	return false
}

// RelationsConflict reports whether two relationship types contradict each
// other when held simultaneously between the same ordered pair.
func RelationsConflict(a, b RelationType) bool {
	for _, c := range ConflictingRelations[a] {
		if c == b {
			return true
		}
	}
	return false
}

// ValidEntityType checks whether a type string names a known entity type.
func ValidEntityType(t EntityType) bool {
	_, ok := PermittedRelations[t]
	return ok
}

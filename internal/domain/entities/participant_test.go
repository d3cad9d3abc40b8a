package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPermissions(t *testing.T) {
	dm := DefaultPermissions(RoleDM)
	assert.True(t, dm.CanControlEntities)
	assert.True(t, dm.CanEditWorld)
	assert.True(t, dm.CanResolveConflict)

	player := DefaultPermissions(RolePlayer)
	assert.True(t, player.CanControlEntities)
	assert.True(t, player.CanEditWorld)
	assert.False(t, player.CanResolveConflict)

	spectator := DefaultPermissions(RoleSpectator)
	assert.False(t, spectator.CanControlEntities)
	assert.False(t, spectator.CanEditWorld)
}

func TestSessionParticipant_Eligible(t *testing.T) {
	p := SessionParticipant{
		Status:      ParticipantActive,
		Permissions: DefaultPermissions(RolePlayer),
	}
	assert.True(t, p.Eligible())

	p.Status = ParticipantDisconnected
	assert.False(t, p.Eligible())

	p.Status = ParticipantActive
	p.Permissions = DefaultPermissions(RoleSpectator)
	assert.False(t, p.Eligible())
}

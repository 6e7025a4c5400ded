package membership

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCanTransition checks the status transition table
func TestCanTransition(t *testing.T) {
	tests := []struct {
		name  string
		from  Status
		event Event
		to    Status
		want  bool
	}{
		{"create owner", StatusNone, EventCreate, StatusOwner, true},
		{"create joined", StatusNone, EventCreate, StatusJoined, false},
		{"apply fresh", StatusNone, EventApply, StatusApplied, true},
		{"apply from saved", StatusSaved, EventApply, StatusApplied, true},
		{"apply after leaving", StatusLeft, EventApply, StatusApplied, true},
		{"apply while denied", StatusDenied, EventApply, StatusApplied, false},
		{"admit applicant", StatusApplied, EventAdmit, StatusJoined, true},
		{"admit as admin", StatusApplied, EventAdmit, StatusAdmin, true},
		{"admit joined", StatusJoined, EventAdmit, StatusJoined, false},
		{"deny applicant", StatusApplied, EventDeny, StatusDenied, true},
		{"deny denied", StatusDenied, EventDeny, StatusDenied, true},
		{"deny joined", StatusJoined, EventDeny, StatusDenied, false},
		{"member leaves", StatusJoined, EventLeave, StatusLeft, true},
		{"admin expelled", StatusAdmin, EventLeave, StatusDenied, true},
		{"owner leaves", StatusOwner, EventLeave, StatusLeft, false},
		{"promote member", StatusJoined, EventPromote, StatusProvider, true},
		{"promote applicant", StatusApplied, EventPromote, StatusOwner, false},
		{"drop driver", StatusDriver, EventDropKey, StatusLeft, true},
		{"cancel application", StatusApplied, EventCancel, StatusNone, true},
		{"unsave", StatusSaved, EventUnsave, StatusNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.event, tt.to))
		})
	}
}

// TestStatusClasses checks key, active and admin classification
func TestStatusClasses(t *testing.T) {
	for _, s := range []Status{StatusDriver, StatusProvider, StatusOwner} {
		assert.True(t, s.IsKey(), s)
		assert.True(t, s.IsActive(), s)
		assert.True(t, s.IsAdminEligible(), s)
	}
	assert.True(t, StatusAdmin.IsAdminEligible())
	assert.False(t, StatusAdmin.IsKey())
	assert.True(t, StatusJoined.IsActive())
	assert.False(t, StatusJoined.IsAdminEligible())
	for _, s := range []Status{StatusApplied, StatusSaved, StatusDenied, StatusLeft} {
		assert.False(t, s.IsActive(), s)
	}
	assert.True(t, StatusLeft.IsTerminal())
	assert.False(t, StatusNone.IsValid())
}

// TestTransition_SetsJoinedAt stamps the first activation only
func TestTransition_SetsJoinedAt(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	m := New(uuid.New(), uuid.New(), StatusNone, now)
	assert.Nil(t, m.JoinedAt)

	require.NoError(t, m.Transition(EventApply, StatusApplied, now))
	assert.Nil(t, m.JoinedAt)

	joined := now.Add(time.Minute)
	require.NoError(t, m.Transition(EventAdmit, StatusJoined, joined))
	require.NotNil(t, m.JoinedAt)
	assert.True(t, m.JoinedAt.Equal(joined))

	require.NoError(t, m.Transition(EventPromote, StatusOwner, joined.Add(time.Hour)))
	assert.True(t, m.JoinedAt.Equal(joined))

	err := m.Transition(EventAdmit, StatusJoined, now)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, StatusOwner, m.Status)
}

package notification_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops/internal/core/id"
	"fieldops/internal/core/security"
	"fieldops/internal/domain/events"
	"fieldops/internal/domain/fulfillmenttest"
	"fieldops/internal/domain/notification"
)

func newDispatcher(t *testing.T, store *fulfillmenttest.Store, expr string) *notification.Dispatcher {
	t.Helper()
	rule, err := notification.CompileRule(expr)
	require.NoError(t, err)
	return notification.NewDispatcher(fulfillmenttest.Notifier{Store: store}, store, store, rule)
}

func TestDispatcher_Step4BroadcastsToActiveManagers(t *testing.T) {
	store := fulfillmenttest.New()
	manager := store.AddStaff(fulfillmenttest.Staff{Role: security.RoleManager, Active: true})
	admin := store.AddStaff(fulfillmenttest.Staff{Role: security.RoleAdmin, Active: true})
	store.AddStaff(fulfillmenttest.Staff{Role: security.RoleManager, Active: false})
	store.AddStaff(fulfillmenttest.Staff{Role: security.RoleTechnician, Active: true})
	d := newDispatcher(t, store, "")

	err := d.Handle(context.Background(), events.StatusChanged{
		OrderID: id.New(), EntityType: "flat", EntityID: id.New(), EntityName: "Install",
		From: "step3", To: "step4",
	})

	require.NoError(t, err)
	require.Len(t, store.Transitions, 1)
	recipients := []id.ID{}
	for _, n := range store.Notifications {
		assert.Equal(t, events.NotifyApprovalRequired, n.Type)
		recipients = append(recipients, n.UserID)
	}
	assert.ElementsMatch(t, []id.ID{manager, admin}, recipients)
}

func TestDispatcher_OtherStatusesOnlyAudited(t *testing.T) {
	store := fulfillmenttest.New()
	store.AddStaff(fulfillmenttest.Staff{Role: security.RoleManager, Active: true})
	d := newDispatcher(t, store, "")

	err := d.Handle(context.Background(), events.StatusChanged{EntityType: "flat", From: "assigned", To: "in_progress"})

	require.NoError(t, err)
	assert.Len(t, store.Transitions, 1)
	assert.Empty(t, store.Notifications)
}

func TestDispatcher_SameStatusIgnored(t *testing.T) {
	store := fulfillmenttest.New()
	d := newDispatcher(t, store, "")

	require.NoError(t, d.Handle(context.Background(), events.StatusChanged{From: "step4", To: "step4"}))

	assert.Empty(t, store.Transitions)
}

func TestDispatcher_CustomRule(t *testing.T) {
	store := fulfillmenttest.New()
	store.AddStaff(fulfillmenttest.Staff{Role: security.RoleAdmin, Active: true})
	d := newDispatcher(t, store, `to_status in ["step4", "step5"] && entity_type == "nested_service"`)

	require.NoError(t, d.Handle(context.Background(), events.StatusChanged{EntityType: "nested_service", From: "step4", To: "step5"}))
	require.NoError(t, d.Handle(context.Background(), events.StatusChanged{EntityType: "flat", From: "step3", To: "step4"}))

	assert.Len(t, store.Notifications, 1)
}

func TestDispatcher_DirectNotification(t *testing.T) {
	store := fulfillmenttest.New()
	d := newDispatcher(t, store, "")
	owner := id.New()

	err := d.Handle(context.Background(), events.Notification{
		UserID: owner, Type: events.NotifyItemCompleted, Title: "Work completed", Content: "done",
	})

	require.NoError(t, err)
	require.Len(t, store.Notifications, 1)
	assert.Equal(t, owner, store.Notifications[0].UserID)
	assert.False(t, store.Notifications[0].IsRead)
}

func TestCompileRule_Errors(t *testing.T) {
	_, err := notification.CompileRule(`to_status ==`)
	assert.Error(t, err)

	_, err = notification.CompileRule(`to_status`)
	assert.Error(t, err, "non-bool rule")

	_, err = notification.CompileRule(`unknown_var == "x"`)
	assert.Error(t, err)

	rule, err := notification.CompileRule("")
	require.NoError(t, err)
	assert.Equal(t, notification.DefaultBroadcastRule, rule.String())
}

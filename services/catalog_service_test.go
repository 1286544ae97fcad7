package services

import (
	"testing"

	"backend_panelhub/models"
	"backend_panelhub/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogService_CRUD(t *testing.T) {
	env := newTestEnv(t, date(2026, 1, 1))

	active := &models.Service{Name: "ChatGPT Plus", BasePrice: dec("10"), IsActive: true}
	require.NoError(t, env.catalog.CreateService(active))
	hidden := &models.Service{Name: "Gemini Advanced", BasePrice: dec("8")}
	require.NoError(t, env.catalog.CreateService(hidden))
	assert.False(t, hidden.IsActive)

	all, err := env.catalog.ListServices(false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyActive, err := env.catalog.ListServices(true)
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	assert.Equal(t, "ChatGPT Plus", onlyActive[0].Name)

	updated, err := env.catalog.UpdateService(active.ID, &models.Service{Name: "ChatGPT Plus", BasePrice: dec("12"), IsActive: false})
	require.NoError(t, err)
	assertDecimal(t, "12", updated.BasePrice)
	assert.False(t, updated.IsActive)

	require.NoError(t, env.catalog.DeleteService(hidden.ID))
	_, err = env.catalog.GetService(hidden.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogService_Validation(t *testing.T) {
	env := newTestEnv(t, date(2026, 1, 1))

	err := env.catalog.CreateService(&models.Service{Name: " "})
	assert.True(t, IsValidationError(err))

	err = env.catalog.CreateService(&models.Service{Name: "Canva", BasePrice: dec("-1")})
	assert.True(t, IsValidationError(err))
}

func TestCatalogService_DeleteInUse(t *testing.T) {
	env := newTestEnv(t, date(2026, 1, 1))
	withPanel := testutils.CreateTestService(t, env.db, "ChatGPT Plus", "10")
	testutils.CreateTestPanel(t, env.db, withPanel.ID, 5, "50")

	withSub := testutils.CreateTestService(t, env.db, "Canva Pro", "5")
	client := testutils.CreateTestClient(t, env.db, "Ana", "MX")
	sub := testutils.CreateTestSubscription(t, env.db, client.ID, withSub.ID, nil, models.SubscriptionActive, date(2025, 12, 20))

	assert.True(t, IsValidationError(env.catalog.DeleteService(withPanel.ID)))
	assert.True(t, IsValidationError(env.catalog.DeleteService(withSub.ID)))

	_, _, err := env.subscriptions.Cancel(sub.ID)
	require.NoError(t, err)
	assert.NoError(t, env.catalog.DeleteService(withSub.ID), "отмененные подписки не мешают удалению")
}

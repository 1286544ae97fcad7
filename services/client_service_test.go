package services

import (
	"testing"

	"backend_panelhub/models"
	"backend_panelhub/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientService_CreateWithSubscriptions(t *testing.T) {
	env := newTestEnv(t, date(2026, 1, 1))
	gpt := testutils.CreateTestService(t, env.db, "ChatGPT Plus", "10")
	canva := testutils.CreateTestService(t, env.db, "Canva Pro", "5")
	panel := testutils.CreateTestPanel(t, env.db, gpt.ID, 3, "30")

	client, err := env.clients.CreateClient(CreateClientRequest{
		Client: models.Client{Name: "  María  ", WhatsApp: "+5215555555555", Country: "mx"},
		Subscriptions: []SubscriptionInput{
			{ServiceID: gpt.ID, PanelID: &panel.ID},
			{ServiceID: canva.ID, Email: "maria@example.com", Password: "pw"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "María", client.Name)
	assert.Equal(t, "MX", client.Country)
	assert.Equal(t, "MXN", client.DefaultCurrency)
	require.Len(t, client.Subscriptions, 2)
	for _, sub := range client.Subscriptions {
		assert.Equal(t, client.ID, sub.ClientID)
		assert.True(t, date(2026, 1, 31).Equal(sub.DueDate))
	}
}

func TestClientService_CreateRollsBackOnFullPanel(t *testing.T) {
	env := newTestEnv(t, date(2026, 1, 1))
	service := testutils.CreateTestService(t, env.db, "ChatGPT Plus", "10")
	owner := testutils.CreateTestClient(t, env.db, "Ana", "MX")
	panel := testutils.CreateTestPanel(t, env.db, service.ID, 1, "10")
	testutils.CreateTestSubscription(t, env.db, owner.ID, service.ID, &panel.ID, models.SubscriptionActive, date(2025, 12, 20))

	_, err := env.clients.CreateClient(CreateClientRequest{
		Client: models.Client{Name: "Pedro", Country: "PE"},
		Subscriptions: []SubscriptionInput{
			{ServiceID: service.ID},
			{ServiceID: service.ID, PanelID: &panel.ID},
		},
	})
	assert.ErrorIs(t, err, ErrPanelFull)

	var clients, subs int64
	require.NoError(t, env.db.Model(&models.Client{}).Count(&clients).Error)
	require.NoError(t, env.db.Model(&models.Subscription{}).Count(&subs).Error)
	assert.Equal(t, int64(1), clients, "клиент не создан")
	assert.Equal(t, int64(1), subs, "первая подписка откачена")
}

func TestClientService_Validation(t *testing.T) {
	env := newTestEnv(t, date(2026, 1, 1))
	missing := uint(42)

	tests := []struct {
		name    string
		client  models.Client
		checkFn func(t *testing.T, err error)
	}{
		{"пустое имя", models.Client{Name: "  "}, func(t *testing.T, err error) { assert.True(t, IsValidationError(err)) }},
		{"неверная страна", models.Client{Name: "Ana", Country: "MEX"}, func(t *testing.T, err error) { assert.True(t, IsValidationError(err)) }},
		{"несуществующий проект", models.Client{Name: "Ana", ProjectID: &missing}, func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNotFound) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.clients.CreateClient(CreateClientRequest{Client: tt.client})
			require.Error(t, err)
			tt.checkFn(t, err)
		})
	}
}

func TestClientService_ListFilters(t *testing.T) {
	env := newTestEnv(t, date(2026, 1, 1))
	project := &models.Project{Name: "Reventa Juan", CommissionPercent: dec("30")}
	require.NoError(t, env.projects.CreateProject(project))

	_, err := env.clients.CreateClient(CreateClientRequest{Client: models.Client{Name: "Ana López", Country: "MX", ProjectID: &project.ID}})
	require.NoError(t, err)
	_, err = env.clients.CreateClient(CreateClientRequest{Client: models.Client{Name: "Luis", Country: "CO"}})
	require.NoError(t, err)

	byProject, err := env.clients.ListClients(ClientFilter{ProjectID: project.ID})
	require.NoError(t, err)
	require.Len(t, byProject, 1)
	assert.Equal(t, "Ana López", byProject[0].Name)

	byCountry, err := env.clients.ListClients(ClientFilter{Country: "co"})
	require.NoError(t, err)
	require.Len(t, byCountry, 1)
	assert.Equal(t, "COP", byCountry[0].DefaultCurrency)

	bySearch, err := env.clients.ListClients(ClientFilter{Search: "lópez"})
	require.NoError(t, err)
	assert.Len(t, bySearch, 1)
}

func TestClientService_Update(t *testing.T) {
	env := newTestEnv(t, date(2026, 1, 1))
	client := testutils.CreateTestClient(t, env.db, "Ana", "MX")

	updated, err := env.clients.UpdateClient(client.ID, &models.Client{Name: "Ana María", Country: "AR", Notes: "pago puntual"})
	require.NoError(t, err)
	assert.Equal(t, "Ana María", updated.Name)
	assert.Equal(t, "ARS", updated.DefaultCurrency)
	assert.Empty(t, updated.WhatsApp, "поля заменяются целиком")

	_, err = env.clients.UpdateClient(999, &models.Client{Name: "X"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientService_DeleteCascades(t *testing.T) {
	env := newTestEnv(t, date(2026, 1, 1))
	service := testutils.CreateTestService(t, env.db, "ChatGPT Plus", "10")
	client := testutils.CreateTestClient(t, env.db, "Ana", "MX")
	other := testutils.CreateTestClient(t, env.db, "Luis", "CO")
	testutils.CreateTestSubscription(t, env.db, client.ID, service.ID, nil, models.SubscriptionActive, date(2025, 12, 20))
	testutils.CreateTestSubscription(t, env.db, other.ID, service.ID, nil, models.SubscriptionActive, date(2025, 12, 20))
	testutils.CreateTestPayment(t, env.db, client.ID, "10", date(2025, 12, 20))

	require.NoError(t, env.clients.DeleteClient(client.ID))

	var subs, payments int64
	require.NoError(t, env.db.Model(&models.Subscription{}).Count(&subs).Error)
	require.NoError(t, env.db.Model(&models.Payment{}).Count(&payments).Error)
	assert.Equal(t, int64(1), subs)
	assert.Equal(t, int64(0), payments)

	_, err := env.clients.GetClient(client.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientService_DeleteRefusedWithCutPayments(t *testing.T) {
	env := newTestEnv(t, date(2026, 3, 5))
	service := testutils.CreateTestService(t, env.db, "ChatGPT Plus", "10")
	client := testutils.CreateTestClient(t, env.db, "Ana", "MX")
	testutils.CreateTestSubscription(t, env.db, client.ID, service.ID, nil, models.SubscriptionActive, date(2026, 3, 1))
	payment := testutils.CreateTestPayment(t, env.db, client.ID, "10", date(2026, 3, 2))
	testutils.CreateTestPayment(t, env.db, client.ID, "5", date(2026, 3, 3))

	cut := &models.Cut{Reference: "cut-1", Country: "MX", Currency: "MXN", WeekStart: date(2026, 3, 2)}
	require.NoError(t, env.db.Create(cut).Error)
	require.NoError(t, env.db.Model(payment).Update("cut_id", cut.ID).Error)

	err := env.clients.DeleteClient(client.ID)
	assert.True(t, IsValidationError(err), "got %v", err)

	// Ничего не удалено, транзакция откатилась
	var subs, payments int64
	require.NoError(t, env.db.Model(&models.Subscription{}).Where("client_id = ?", client.ID).Count(&subs).Error)
	require.NoError(t, env.db.Model(&models.Payment{}).Where("client_id = ?", client.ID).Count(&payments).Error)
	assert.Equal(t, int64(1), subs)
	assert.Equal(t, int64(2), payments)

	_, err = env.clients.GetClient(client.ID)
	require.NoError(t, err)

	// После удаления корте клиента можно удалить
	require.NoError(t, env.cuts.Delete(cut.ID))
	require.NoError(t, env.clients.DeleteClient(client.ID))
}

func TestClientService_History(t *testing.T) {
	env := newTestEnv(t, date(2026, 3, 1))
	service := testutils.CreateTestService(t, env.db, "ChatGPT Plus", "10")
	client := testutils.CreateTestClient(t, env.db, "Ana", "MX")

	first := testutils.CreateTestSubscription(t, env.db, client.ID, service.ID, nil, models.SubscriptionCancelled, date(2026, 1, 1))
	testutils.CreateTestPayment(t, env.db, client.ID, "10", date(2026, 1, 2))
	testutils.CreateTestSubscription(t, env.db, client.ID, service.ID, nil, models.SubscriptionActive, date(2026, 2, 15))

	events, err := env.clients.History(client.ID)
	require.NoError(t, err)

	kinds := make([]string, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []string{
		ClientEventSubscriptionStarted,
		ClientEventPayment,
		ClientEventSubscriptionCancelled,
		ClientEventSubscriptionStarted,
	}, kinds)

	// без cancelled_at отмена датируется окончанием подписки
	assert.True(t, first.DueDate.Equal(events[2].Date))
	assert.Equal(t, "ChatGPT Plus", events[0].ServiceName)
}

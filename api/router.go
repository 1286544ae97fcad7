package api

import (
	"time"

	"backend_panelhub/services"

	"github.com/gin-gonic/gin"
)

// Services набор сервисов, обслуживаемых API
type Services struct {
	Catalog       *services.CatalogService
	Panels        *services.PanelService
	Subscriptions *services.SubscriptionService
	Clients       *services.ClientService
	Projects      *services.ProjectService
	Payments      *services.PaymentService
	Cuts          *services.CutService
	Reports       *services.ReportService
}

// RouterOptions параметры маршрутов
type RouterOptions struct {
	Cache          *services.CacheService // кэш отчетов, может быть nil
	Location       *time.Location         // часовой пояс дат в параметрах запроса
	WarningDays    int                    // горизонт "скоро заканчиваются" для подписок
	PanelAlertDays int                    // горизонт оплаты панелей
}

// RegisterRoutes регистрирует все маршруты API в группе router
func RegisterRoutes(router *gin.RouterGroup, s Services, opts RouterOptions) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	NewCatalogAPI(s.Catalog).RegisterRoutes(router)
	NewPanelsAPI(s.Panels, opts.PanelAlertDays).RegisterRoutes(router)
	NewSubscriptionsAPI(s.Subscriptions, opts.WarningDays).RegisterRoutes(router)
	NewClientsAPI(s.Clients).RegisterRoutes(router)
	NewProjectsAPI(s.Projects).RegisterRoutes(router)
	NewPaymentsAPI(s.Payments, loc).RegisterRoutes(router)
	NewCutsAPI(s.Cuts, loc).RegisterRoutes(router)
	NewReportsAPI(s.Reports, opts.Cache, loc).RegisterRoutes(router)
}

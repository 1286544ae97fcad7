package services

import "backend_panelhub/models"

// AvailableSlots свободные места панели. Значение не ограничивается снизу:
// отрицательный результат означает переполнение, которое должен был
// отсечь вызывающий код
func AvailableSlots(capacity, activeCount int) int {
	return capacity - activeCount
}

// CountActiveForPanel считает активные подписки на панели, не учитывая excludeID.
// excludeID = 0 означает, что исключать нечего
func CountActiveForPanel(subs []models.Subscription, panelID, excludeID uint) int {
	count := 0
	for _, sub := range subs {
		if excludeID != 0 && sub.ID == excludeID {
			continue
		}
		if sub.PanelID != nil && *sub.PanelID == panelID && sub.State == models.SubscriptionActive {
			count++
		}
	}
	return count
}

// SlotUsage число занятых мест по каждой панели
func SlotUsage(subs []models.Subscription) map[uint]int {
	usage := make(map[uint]int)
	for _, sub := range subs {
		if sub.OccupiesSlot() {
			usage[*sub.PanelID]++
		}
	}
	return usage
}

// AnnotateSlots заполняет UsedSlots и AvailableSlots у панелей
func AnnotateSlots(panels []models.Panel, usage map[uint]int) {
	for i := range panels {
		panels[i].UsedSlots = usage[panels[i].ID]
		panels[i].AvailableSlots = AvailableSlots(panels[i].Capacity, panels[i].UsedSlots)
	}
}

// PanelOccupancy сводка по заполненности панели
type PanelOccupancy struct {
	PanelID   uint              `json:"panel_id"`
	Name      string            `json:"name"`
	ServiceID uint              `json:"service_id"`
	State     models.PanelState `json:"state"`
	Capacity  int               `json:"capacity"`
	Used      int               `json:"used"`
	Available int               `json:"available"`
	Full      bool              `json:"full"`
	// Assignable сколько мест можно выдать сейчас; у неработающей панели 0
	Assignable int `json:"assignable"`
}

// Occupancy строит сводку заполненности по уже размеченным панелям
func Occupancy(panels []models.Panel) []PanelOccupancy {
	result := make([]PanelOccupancy, 0, len(panels))
	for _, p := range panels {
		o := PanelOccupancy{
			PanelID:   p.ID,
			Name:      p.Name,
			ServiceID: p.ServiceID,
			State:     p.State,
			Capacity:  p.Capacity,
			Used:      p.UsedSlots,
			Available: p.AvailableSlots,
			Full:      p.AvailableSlots <= 0,
		}
		if p.IsActive() && p.AvailableSlots > 0 {
			o.Assignable = p.AvailableSlots
		}
		result = append(result, o)
	}
	return result
}

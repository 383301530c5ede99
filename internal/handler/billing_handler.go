package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service"
)

// BillingHandler принимает события биллинга об изменении подписки.
// Диспетчеризация по типам событий живет в биллинг-сервисе; сюда
// приходит уже нормализованное изменение план/статус.
type BillingHandler struct {
	planService *service.PlanService
}

func NewBillingHandler(planService *service.PlanService) *BillingHandler {
	return &BillingHandler{planService: planService}
}

type planChangeEvent struct {
	UserID string `json:"user_id"`
	Plan   string `json:"plan"`
	Status string `json:"status"`
}

func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var event planChangeEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if event.UserID == "" || event.Plan == "" || event.Status == "" {
		http.Error(w, "user_id, plan and status are required", http.StatusBadRequest)
		return
	}

	err := h.planService.ApplyPlanChange(r.Context(), event.UserID, domain.PlanName(event.Plan), event.Status)
	if err != nil {
		log.Printf("[BillingHandler] failed to apply plan change: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service"
)

type StorageQuotaHandler struct {
	quotaService *service.StorageQuotaService
	planService  *service.PlanService
}

// QuotaResponse объединяет действующие лимиты плана и текущий учет
type QuotaResponse struct {
	Limits domain.Limits     `json:"limits"`
	Usage  *domain.QuotaInfo `json:"usage"`
}

func NewStorageQuotaHandler(
	quotaService *service.StorageQuotaService,
	planService *service.PlanService,
) *StorageQuotaHandler {
	return &StorageQuotaHandler{
		quotaService: quotaService,
		planService:  planService,
	}
}

// GetQuotaInfo возвращает лимиты плана и текущее использование
func (h *StorageQuotaHandler) GetQuotaInfo(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limits, err := h.planService.ResolveLimits(r.Context(), userID)
	if err != nil {
		log.Printf("[QuotaHandler] failed to resolve limits: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	quotaInfo, err := h.quotaService.GetQuotaInfo(r.Context(), userID)
	if err != nil {
		log.Printf("[QuotaHandler] failed to get quota info: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(QuotaResponse{
		Limits: limits,
		Usage:  quotaInfo,
	})
}

// Эндпоинт для обслуживания: пересчет счетчика по фактическим данным
func (h *StorageQuotaHandler) ReconcileUsage(w http.ResponseWriter, r *http.Request) {
	// В реальном приложении здесь должна быть проверка прав администратора
	var req struct {
		UserID string `json:"user_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.quotaService.Reconcile(r.Context(), req.UserID)
	if err != nil {
		log.Printf("[QuotaHandler] reconcile failed: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

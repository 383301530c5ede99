package domain

// PlanName определяет название тарифного плана
type PlanName string

const (
	PlanFree     PlanName = "FREE"
	PlanPro      PlanName = "PRO"
	PlanBusiness PlanName = "BUSINESS"
)

// Plan описывает лимиты тарифного плана. Справочные данные,
// не принадлежат пользователю и не изменяются в рантайме.
type Plan struct {
	Name              PlanName `json:"name"`
	TotalStorageBytes int64    `json:"total_storage_bytes"`
	MaxUploadBytes    int64    `json:"max_upload_bytes"`
}

// PlanTable задает соответствие план -> лимиты
type PlanTable map[PlanName]Plan

const (
	mib = int64(1024 * 1024)
	gib = 1024 * mib
)

// DefaultPlanTable возвращает таблицу лимитов по умолчанию.
// Точные значения - вопрос политики и переопределяются конфигурацией,
// порядок FREE < PRO < BUSINESS должен сохраняться.
func DefaultPlanTable() PlanTable {
	return PlanTable{
		PlanFree: {
			Name:              PlanFree,
			TotalStorageBytes: 5 * gib,
			MaxUploadBytes:    100 * mib,
		},
		PlanPro: {
			Name:              PlanPro,
			TotalStorageBytes: 100 * gib,
			MaxUploadBytes:    2 * gib,
		},
		PlanBusiness: {
			Name:              PlanBusiness,
			TotalStorageBytes: 1024 * gib,
			MaxUploadBytes:    10 * gib,
		},
	}
}

// Resolve возвращает план по имени. Неизвестный или пустой код плана
// всегда приводит к лимитам FREE, никогда к безлимиту.
func (t PlanTable) Resolve(name PlanName) Plan {
	if plan, ok := t[name]; ok {
		return plan
	}
	return t[PlanFree]
}

// Limits представляет действующие лимиты пользователя
type Limits struct {
	StorageLimitBytes int64    `json:"storage_limit_bytes"`
	MaxUploadBytes    int64    `json:"max_upload_bytes"`
	PlanName          PlanName `json:"plan_name"`
}

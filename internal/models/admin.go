package models

// AdminAction тип административного изменения баланса.
type AdminAction string

const (
	// AdminAdd прибавляет amount к остатку.
	AdminAdd AdminAction = "add"
	// AdminDeduct вычитает amount, не опуская остаток ниже нуля.
	AdminDeduct AdminAction = "deduct"
	// AdminSet устанавливает остаток равным amount.
	AdminSet AdminAction = "set"
	// AdminSetPlan меняет план и выдаёт его полный объём кредитов.
	AdminSetPlan AdminAction = "set_plan"
)

// ParseAdminAction нормализует название действия, принимая устаревшие
// имена add_credits и set_credits.
func ParseAdminAction(s string) (AdminAction, bool) {
	switch s {
	case "add", "add_credits":
		return AdminAdd, true
	case "deduct":
		return AdminDeduct, true
	case "set", "set_credits":
		return AdminSet, true
	case "set_plan":
		return AdminSetPlan, true
	}
	return "", false
}

// AdminMutation описывает одно административное изменение строки баланса.
type AdminMutation struct {
	Action AdminAction
	Amount int64
	// PlanID опционален для add/deduct/set и обязателен для set_plan.
	PlanID *PlanID
}

// AdminResult состояние до и после изменения.
type AdminResult struct {
	AccountID string  `json:"userId"`
	Previous  Balance `json:"previous"`
	Next      Balance `json:"next"`
}

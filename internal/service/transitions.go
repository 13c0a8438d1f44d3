package service

import "github.com/mmeshcher/food-ordering-system/internal/model"

// allowedTransitions задаёт допустимые переходы статуса при включённой строгой проверке.
// Completed и Cancelled конечные.
var allowedTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:    {model.OrderStatusProcessing, model.OrderStatusCompleted, model.OrderStatusCancelled},
	model.OrderStatusProcessing: {model.OrderStatusCompleted, model.OrderStatusCancelled, model.OrderStatusPending},
}

// CanTransition сообщает, можно ли перевести заказ из статуса from в статус to.
// Повторная установка того же статуса разрешена.
func CanTransition(from, to model.OrderStatus) bool {
	if from == to {
		return true
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

package models

// All returns every persisted model, in migration order.
func All() []any {
	return []any{
		&Payment{},
		&PaymentLog{},
		&SubscriptionPeriod{},
		&SubscriptionLog{},
		&UserProfile{},
		&Notification{},
		&PaymentNotificationLog{},
	}
}

package worker

import (
	"github.com/spec-kit/medical-scheduling/internal/events"
	"github.com/spec-kit/medical-scheduling/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartEventRelay forwards every appointment event through relay.
func StartEventRelay(dispatcher events.Dispatcher, relay *events.RedisRelay) {
	if relay == nil {
		return
	}
	relay.Register(dispatcher)
}

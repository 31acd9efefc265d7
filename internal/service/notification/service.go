package notification

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/sentinelops/anomaly-sentinel/internal/domain/anomaly"
	"github.com/sentinelops/anomaly-sentinel/internal/domain/errors"
)

// Service maps each cycle's events to messages and dispatches them. Every
// event gets an administrative alert; delivery and price events additionally
// get a customer-facing message.
type Service struct {
	transport Transport
	config    Config
	limiter   *rate.Limiter
	logger    *slog.Logger
}

func NewService(transport Transport, config Config, logger *slog.Logger) (*Service, error) {
	if transport == nil {
		return nil, errors.NewInternalError("mail transport is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if config.SendsPerSecond > 0 {
		burst := config.SendBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.SendsPerSecond), burst)
	}
	return &Service{
		transport: transport,
		config:    config,
		limiter:   limiter,
		logger:    logger,
	}, nil
}

// DispatchCycle sends alerts for every event in the cycle. The weather join
// is computed once up front so delivery attribution stays linear in the event
// count. Send failures are recorded on the receipt and never stop the loop.
func (s *Service) DispatchCycle(ctx context.Context, events []*anomaly.Event) []Receipt {
	weatherByID := make(map[string]*anomaly.Event)
	for _, event := range events {
		if event.Type == anomaly.EventWeatherRisk {
			weatherByID[event.SubjectIDs["weather_id"]] = event
		}
	}

	receipts := make([]Receipt, 0, len(events))
	for _, event := range events {
		receipts = append(receipts, s.dispatch(ctx, event, weatherByID))
	}
	return receipts
}

func (s *Service) dispatch(ctx context.Context, event *anomaly.Event, weatherByID map[string]*anomaly.Event) Receipt {
	receipt := Receipt{EventID: event.ID, EventType: event.Type}

	msg, err := adminMessage(event, s.config.AdminRecipients)
	if err == nil {
		err = s.send(ctx, msg)
	}
	if err != nil {
		appErr := errors.NewNotificationError(string(event.Type), err)
		receipt.Error = appErr.Error()
		s.logger.ErrorContext(ctx, "admin alert failed",
			"event_id", event.ID.String(), "event_type", string(event.Type), "error", err)
	} else {
		receipt.AdminSent = true
	}

	customer, ok := s.customerMessage(event, weatherByID)
	if !ok {
		return receipt
	}
	if err := s.send(ctx, customer); err != nil {
		appErr := errors.NewNotificationError(string(event.Type), err)
		receipt.Error = appErr.Error()
		s.logger.ErrorContext(ctx, "customer alert failed",
			"event_id", event.ID.String(), "event_type", string(event.Type), "error", err)
		return receipt
	}
	receipt.CustomerSent = true
	return receipt
}

func (s *Service) customerMessage(event *anomaly.Event, weatherByID map[string]*anomaly.Event) (Message, bool) {
	switch event.Type {
	case anomaly.EventDeliveryDelay:
		var weather *anomaly.Event
		if weatherID, ok := event.Labels["weather_id"]; ok {
			weather = weatherByID[weatherID]
		}
		msg, err := customerDeliveryMessage(event, weather, s.config.CustomerRecipients)
		return msg, err == nil
	case anomaly.EventPriceChange:
		msg, err := customerPriceMessage(event, s.config.CustomerRecipients)
		return msg, err == nil
	}
	return Message{}, false
}

func (s *Service) send(ctx context.Context, msg Message) error {
	if len(msg.Recipients) == 0 {
		return errors.NewValidationError("NO_RECIPIENTS", "message has no recipients")
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if s.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.SendTimeout)
		defer cancel()
	}
	return s.transport.Send(ctx, msg)
}

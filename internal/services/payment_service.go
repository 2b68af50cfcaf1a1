package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gatepass/internal/services/bank"
	"gatepass/internal/status"
	"gatepass/internal/store"
	"gatepass/models"
	"gatepass/monitoring"
	"gatepass/utils"

	pubnub "github.com/pubnub/go"
)

// PaymentService opens gateway orders for priced registrations and
// turns settlement callbacks into confirmed registrations and tickets.
// The gateway's CheckTransaction is the only thing trusted to verify
// payment; callbacks and client claims alone never flip an order.
type PaymentService struct {
	Store   store.Store
	Gateway bank.Gateway
	Tickets *TicketService
	PubNub  *pubnub.PubNub
	Monitor *monitoring.Monitor

	breaker *utils.CircuitBreaker
	tranCh  chan *status.Transaction
}

func NewPaymentService(st store.Store, gateway bank.Gateway, tickets *TicketService, pn *pubnub.PubNub, monitor *monitoring.Monitor) *PaymentService {
	s := &PaymentService{
		Store:   st,
		Gateway: gateway,
		Tickets: tickets,
		PubNub:  pn,
		Monitor: monitor,

		breaker: utils.NewCircuitBreaker("payment-gateway"),
		tranCh:  make(chan *status.Transaction, 64),
	}

	if gateway != nil {
		gateway.SetTransactionChannel(s.tranCh)
	}

	return s
}

// OpenOrder opens a gateway order for the registration and returns it
// with the QR payload the attendee pays against.
func (s *PaymentService) OpenOrder(ctx context.Context, reg *models.Registration, pass *models.Pass) (*models.PaymentOrder, string, error) {
	if s.Gateway == nil {
		return nil, "", errors.New("no payment gateway configured")
	}

	suffix, err := utils.GenerateCode(8)
	if err != nil {
		return nil, "", fmt.Errorf("open order: reference: %w", err)
	}
	gatewayRef := fmt.Sprintf("GP%s", suffix)

	form := &status.OrderForm{
		UUID:           gatewayRef,
		ReferenceLabel: reg.ID,
		TerminalLabel:  "gatepass",
		Amount:         pass.Price,
		Currency:       pass.Currency,
	}

	result, err := s.breaker.Execute(ctx, func() (interface{}, error) {
		return s.Gateway.CreateOrder(ctx, form)
	})
	if err != nil {
		return nil, "", fmt.Errorf("open order: gateway: %w", err)
	}
	paymentQR, _ := result.(string)

	order := &models.PaymentOrder{
		RegistrationID: reg.ID,
		Amount:         pass.Price,
		Currency:       pass.Currency,
		GatewayRef:     gatewayRef,
		Status:         models.OrderCreated,
	}
	if err := s.Store.CreateOrder(ctx, order); err != nil {
		return nil, "", err
	}

	return order, paymentQR, nil
}

// HandleVerification settles the order behind gatewayRef. It is safe to
// call any number of times for the same order: re-delivered callbacks
// find the order already verified and get the one existing ticket back.
func (s *PaymentService) HandleVerification(ctx context.Context, gatewayRef string) (*models.Ticket, error) {
	order, err := s.Store.GetOrderByRef(ctx, gatewayRef)
	if err != nil {
		return nil, err
	}

	if order.Status == models.OrderVerified {
		ticket, err := s.Store.GetTicketByRegistration(ctx, order.RegistrationID)
		if err != nil && !errors.Is(err, status.ErrTicketNotFound) {
			return nil, err
		}
		return ticket, nil
	}

	result, err := s.breaker.Execute(ctx, func() (interface{}, error) {
		return s.Gateway.CheckTransaction(ctx, order.GatewayRef)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrPaymentUnverified, err)
	}

	tran, ok := result.(*status.Transaction)
	if !ok || tran == nil {
		return nil, status.ErrPaymentUnverified
	}
	if !tran.Amount.Equal(order.Amount) {
		log.Printf("order %s amount mismatch: gateway %s, order %s", order.ID, tran.Amount, order.Amount)
		return nil, status.ErrPaymentUnverified
	}

	if err := s.Store.MarkOrderVerified(ctx, order.ID); err != nil {
		return nil, err
	}
	if err := s.Store.SetRegistrationStatus(ctx, order.RegistrationID, models.RegistrationConfirmed); err != nil {
		return nil, err
	}

	if s.Monitor != nil {
		s.Monitor.RecordRegistration(models.RegistrationConfirmed)
	}

	ticket, rawCode, err := s.Tickets.Issue(ctx, order.RegistrationID)
	if err != nil {
		return nil, err
	}

	s.notifyAttendee(ticket, rawCode)

	return ticket, nil
}

// OrderStatus returns the current order for a registration.
func (s *PaymentService) OrderStatus(ctx context.Context, registrationID string) (*models.PaymentOrder, error) {
	return s.Store.GetOrderByRegistration(ctx, registrationID)
}

// ListenGatewayCallbacks drains settled transactions pushed by the
// gateway's callback subscription. Each callback goes through the same
// verification path as the webhook, so a spoofed or duplicated message
// cannot mint anything.
func (s *PaymentService) ListenGatewayCallbacks(ctx context.Context) {
	for {
		select {
		case tran := <-s.tranCh:
			go func(tran *status.Transaction) {
				if _, err := s.HandleVerification(ctx, tran.UUID); err != nil {
					log.Printf("gateway callback for %s: %v", tran.UUID, err)
				}
			}(tran)

		case <-ctx.Done():
			log.Println("stopping gateway callback listener")
			return
		}
	}
}

func (s *PaymentService) notifyAttendee(ticket *models.Ticket, rawCode string) {
	if s.PubNub == nil || ticket == nil {
		return
	}

	message := map[string]any{
		"type":      "payment_verified",
		"ticket_id": ticket.ID,
		"number":    ticket.Number,
	}
	// the raw code exists only in the issuing call; pass it on or lose it
	if rawCode != "" {
		message["scan_code"] = rawCode
	}

	s.PubNub.Publish().
		Channel(fmt.Sprintf("user-%s", ticket.AttendeeID)).
		Message(message).
		Execute()
}

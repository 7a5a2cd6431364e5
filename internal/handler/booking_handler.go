package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/eventspark/backend-booking/internal/domain"
	"github.com/eventspark/backend-booking/internal/dto"
	"github.com/eventspark/backend-booking/internal/repository"
	"github.com/eventspark/backend-booking/internal/service"
	"github.com/eventspark/backend-booking/pkg/response"
	"github.com/eventspark/backend-booking/pkg/telemetry"
)

// BookingHandler handles booking lifecycle HTTP requests
type BookingHandler struct {
	checkoutService     service.CheckoutService
	reconcilerService   service.ReconcilerService
	cancellationService service.CancellationService
	bookingRepo         repository.BookingRepository
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(
	checkoutService service.CheckoutService,
	reconcilerService service.ReconcilerService,
	cancellationService service.CancellationService,
	bookingRepo repository.BookingRepository,
) *BookingHandler {
	return &BookingHandler{
		checkoutService:     checkoutService,
		reconcilerService:   reconcilerService,
		cancellationService: cancellationService,
		bookingRepo:         bookingRepo,
	}
}

// StartCheckout handles POST /api/v1/checkout
func (h *BookingHandler) StartCheckout(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.checkout")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.BadRequest(c, err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("event_id", req.EventID),
		attribute.Int("quantity", req.Quantity),
	)

	result, err := h.checkoutService.StartCheckout(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("booking_id", result.BookingID))
	span.SetStatus(codes.Ok, "")
	response.Created(c, result)
}

// RetryCheckout handles POST /api/v1/checkout/:id/retry
func (h *BookingHandler) RetryCheckout(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.checkout_retry")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	bookingID := c.Param("id")
	if bookingID == "" {
		span.SetStatus(codes.Error, "booking id required")
		response.BadRequest(c, "booking id required")
		return
	}
	span.SetAttributes(attribute.String("booking_id", bookingID))

	result, err := h.checkoutService.RetryCheckout(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// ConfirmBooking handles POST /api/v1/bookings/:id/confirm.
// This is the success-page landing path; it races the processor webhook
// and both resolve through the same replay-safe reconciler.
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.confirm")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	bookingID := c.Param("id")
	if bookingID == "" {
		span.SetStatus(codes.Error, "booking id required")
		response.BadRequest(c, "booking id required")
		return
	}
	span.SetAttributes(attribute.String("booking_id", bookingID))

	var req dto.ConfirmRequest
	_ = c.ShouldBindJSON(&req)

	booking, err := h.reconcilerService.Confirm(ctx, bookingID, req.PaymentReference)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, dto.FromDomain(booking))
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.cancel")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	bookingID := c.Param("id")
	if bookingID == "" {
		span.SetStatus(codes.Error, "booking id required")
		response.BadRequest(c, "booking id required")
		return
	}

	// Body is optional; defaults to a user-initiated cancellation
	var req dto.CancelRequest
	_ = c.ShouldBindJSON(&req)

	initiator := domain.CancelInitiator(req.Initiator)
	switch initiator {
	case domain.InitiatorUser, domain.InitiatorHost, domain.InitiatorAdmin:
	case "":
		initiator = domain.InitiatorUser
	default:
		span.SetStatus(codes.Error, "invalid initiator")
		response.BadRequest(c, "initiator must be user, host or admin")
		return
	}

	span.SetAttributes(
		attribute.String("booking_id", bookingID),
		attribute.String("initiator", string(initiator)),
	)

	result, err := h.cancellationService.Cancel(ctx, bookingID, initiator, req.Reason)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, &dto.CancelResponse{
		BookingID:    result.Booking.ID,
		Status:       result.Booking.Status.String(),
		RefundStatus: string(result.Refund),
		Message:      "booking cancelled",
	})
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	bookingID := c.Param("id")
	if bookingID == "" {
		response.BadRequest(c, "booking id required")
		return
	}
	span.SetAttributes(attribute.String("booking_id", bookingID))

	booking, err := h.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	response.Success(c, dto.FromDomain(booking))
}

// GetBookingByReference handles GET /api/v1/bookings/reference/:ref
func (h *BookingHandler) GetBookingByReference(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.get_by_reference")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	reference := c.Param("ref")
	if reference == "" {
		response.BadRequest(c, "booking reference required")
		return
	}
	span.SetAttributes(attribute.String("booking_reference", reference))

	booking, err := h.bookingRepo.GetByReference(ctx, reference)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	response.Success(c, dto.FromDomain(booking))
}

// handleError maps domain errors to HTTP responses
func (h *BookingHandler) handleError(c *gin.Context, err error) {
	switch {
	case domain.IsValidationError(err):
		response.BadRequest(c, err.Error())
	case domain.IsNotFoundError(err):
		response.NotFound(c, err.Error())
	case domain.IsConflictError(err):
		response.Conflict(c, "CONFLICT", err.Error())
	case errors.Is(err, domain.ErrCheckoutInitiationFailed):
		response.Error(c, http.StatusBadGateway, "CHECKOUT_FAILED", "checkout session could not be created", err.Error())
	default:
		response.InternalError(c, err)
	}
}

package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/entrenaapp/entrena-backend/api/middleware"
	"github.com/entrenaapp/entrena-backend/api/responses"
	"github.com/entrenaapp/entrena-backend/api/validators"
	"github.com/entrenaapp/entrena-backend/internal/payments"
	pkgerrors "github.com/entrenaapp/entrena-backend/pkg/errors"
	"github.com/entrenaapp/entrena-backend/pkg/logger"
)

type checkoutPreferenceRequest struct {
	ActivityID uuid.UUID `json:"activity_id" validate:"required,uuid4"`
}

// CreateCheckoutPreference starts a purchase for the authenticated client
// and returns the gateway redirect data.
func CreateCheckoutPreference(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		clientID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing authenticated user"))
			return
		}

		var payload checkoutPreferenceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateCheckout(r.Context(), payments.CreateCheckoutInput{
			ActivityID: payload.ActivityID,
			ClientID:   clientID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

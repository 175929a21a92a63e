package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/entrenaapp/entrena-backend/api/responses"
	mpwebhook "github.com/entrenaapp/entrena-backend/internal/webhooks/mercadopago"
	pkgerrors "github.com/entrenaapp/entrena-backend/pkg/errors"
	"github.com/entrenaapp/entrena-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

type MercadoPagoWebhookService interface {
	HandleEvent(ctx context.Context, event *mpwebhook.WebhookEvent, raw json.RawMessage) (mpwebhook.Outcome, error)
}

// MercadoPagoWebhook ingests payment notifications. Once the payload
// parses and names a payment, the endpoint acknowledges with 200 no
// matter how reconciliation went: the gateway retries on non-2xx, and
// retrying a processing failure is the service's job, not the
// transport's.
func MercadoPagoWebhook(svc MercadoPagoWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		var event mpwebhook.WebhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}
		if strings.EqualFold(event.Type, "payment") && strings.TrimSpace(event.Data.ID) == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment id missing from event data"))
			return
		}

		outcome, err := svc.HandleEvent(ctx, &event, payload)
		if err != nil {
			if logg != nil {
				logg.Error(logg.WithField(ctx, "outcome", string(outcome)), "webhook reconciliation failed", err)
			}
		}

		responses.WriteSuccess(w, map[string]any{"received": true})
	}
}

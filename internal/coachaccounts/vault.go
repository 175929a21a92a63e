package coachaccounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entrenaapp/entrena-backend/pkg/db/models"
	pkgerrors "github.com/entrenaapp/entrena-backend/pkg/errors"
	"github.com/entrenaapp/entrena-backend/pkg/security"
)

// Credential is a coach's gateway identity plus the decrypted access
// token. The token must stay process-local and must never be logged.
type Credential struct {
	Account     *models.CoachGatewayAccount
	AccessToken string
}

// Vault resolves the gateway credential for a coach. It is the only
// component allowed to open sealed tokens.
type Vault interface {
	Resolve(ctx context.Context, coachID uuid.UUID) (*Credential, error)
	OpenSealed(sealed string) (string, error)
	Store(ctx context.Context, account *models.CoachGatewayAccount, plaintextToken string) error
}

type vault struct {
	repo   Repository
	sealer *security.TokenSealer
}

// NewVault wires the credential vault with its repository and sealer.
func NewVault(repo Repository, sealer *security.TokenSealer) (Vault, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "coach account repository required")
	}
	if sealer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "token sealer required")
	}
	return &vault{repo: repo, sealer: sealer}, nil
}

func (v *vault) Resolve(ctx context.Context, coachID uuid.UUID) (*Credential, error) {
	if coachID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coach id is required")
	}

	account, err := v.repo.FindByCoachID(ctx, coachID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeCoachNotConfigured, "coach has no gateway account")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading coach gateway account")
	}
	if !account.Authorized {
		return nil, pkgerrors.New(pkgerrors.CodeCoachNotConfigured, "coach gateway account is not authorized")
	}

	token, err := v.sealer.Open(account.EncryptedToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "opening sealed coach token")
	}

	return &Credential{Account: account, AccessToken: token}, nil
}

// OpenSealed decrypts a sealed token snapshot, such as the one carried
// on a ledger record.
func (v *vault) OpenSealed(sealed string) (string, error) {
	token, err := v.sealer.Open(sealed)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "opening sealed token")
	}
	return token, nil
}

func (v *vault) Store(ctx context.Context, account *models.CoachGatewayAccount, plaintextToken string) error {
	if account == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "account is required")
	}
	sealed, err := v.sealer.Seal(plaintextToken)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sealing coach token")
	}
	account.EncryptedToken = sealed
	if err := v.repo.Upsert(ctx, account); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing coach gateway account")
	}
	return nil
}

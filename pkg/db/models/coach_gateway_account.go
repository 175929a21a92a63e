package models

import (
	"time"

	"github.com/google/uuid"
)

// CoachGatewayAccount stores a coach's MercadoPago marketplace
// authorization. The access token is sealed at rest; decryption happens
// per request inside the credential vault and the plaintext never leaves
// the process.
type CoachGatewayAccount struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CoachID        uuid.UUID  `gorm:"column:coach_id;type:uuid;not null;uniqueIndex"`
	GatewayUserID  string     `gorm:"column:gateway_user_id;not null"`
	EncryptedToken string     `gorm:"column:encrypted_token;not null"`
	Authorized     bool       `gorm:"column:authorized;not null;default:false"`
	AuthorizedAt   *time.Time `gorm:"column:authorized_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

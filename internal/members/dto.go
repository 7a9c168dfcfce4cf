package members

import (
	"time"

	"github.com/dmarrero/shelfstack-backend/pkg/db/models"
)

// RegisterMemberInput carries the fields for a new member registration.
type RegisterMemberInput struct {
	Name  string
	Email string
}

// UpdateMemberInput carries the full-replace payload for an existing member.
type UpdateMemberInput struct {
	Name  string
	Email string
}

// MemberDTO is the member shape returned to the gateway.
type MemberDTO struct {
	ID        int64     `json:"member_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toDTO(member *models.Member) *MemberDTO {
	return &MemberDTO{
		ID:        member.ID,
		Name:      member.Name,
		Email:     member.Email,
		CreatedAt: member.CreatedAt,
		UpdatedAt: member.UpdatedAt,
	}
}

// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの役割を表す。
type Role string

const (
	RoleClient         Role = "client"
	RoleConsultant     Role = "consultant"
	RoleMediator       Role = "mediator"
	RoleArbitrator     Role = "arbitrator"
	RoleNotary         Role = "notary"
	RoleDocumentWriter Role = "document_writer"
	RoleAdmin          Role = "admin"
)

// ProviderRoles はプロバイダープロフィールを持つ役割の一覧。
var ProviderRoles = []Role{
	RoleConsultant,
	RoleMediator,
	RoleArbitrator,
	RoleNotary,
	RoleDocumentWriter,
}

// IsProviderRole はプロバイダープロフィールを持つ役割かどうかを返す。
func (r Role) IsProviderRole() bool {
	for _, pr := range ProviderRoles {
		if r == pr {
			return true
		}
	}
	return false
}

// IsValidRegistrationRole は自己登録可能な役割かどうかを返す。
// adminは自己登録できない。
func (r Role) IsValidRegistrationRole() bool {
	return r == RoleClient || r.IsProviderRole()
}

// User はサービス利用ユーザーを表す。
// PasswordHashはJSONに含めず、リポジトリの更新操作経由でのみ変更する。
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	FullName     string    `json:"full_name"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	City         string    `json:"city,omitempty"`
	State        string    `json:"state,omitempty"`
	Pincode      string    `json:"pincode,omitempty"`
	IsVerified   bool      `json:"is_verified"`
	IsActive     bool      `json:"is_active"`
	GoogleID     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

package model

import "time"

// UserRole 用户角色
type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleVendor   UserRole = "vendor"
	UserRoleCustomer UserRole = "customer"
)

// Valid 是否为已知角色
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleVendor, UserRoleCustomer:
		return true
	}
	return false
}

// UserStatus 用户状态
type UserStatus string

const (
	UserStatusActive  UserStatus = "active"
	UserStatusBlocked UserStatus = "blocked"
)

// User 用户（供应商也是用户，role = vendor）
type User struct {
	ID           int64      `json:"id" bson:"_id" db:"id"`
	Email        string     `json:"email" bson:"email" db:"email"`
	Name         string     `json:"name" bson:"name" db:"name"`
	PasswordHash string     `json:"-" bson:"password_hash" db:"password_hash"` // never expose in JSON
	Role         UserRole   `json:"role" bson:"role" db:"role"`
	Status       UserStatus `json:"status" bson:"status" db:"status"`
	StoreName    *string    `json:"store_name,omitempty" bson:"store_name,omitempty" db:"store_name"`
	CreatedAt    time.Time  `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// UserFilter 用户列表过滤条件
type UserFilter struct {
	Role   UserRole
	Status UserStatus
}

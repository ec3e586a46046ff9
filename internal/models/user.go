package models

import (
	"time"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleLabStaff Role = "lab_staff"
	RoleProduct  Role = "product"
	RoleAccount  Role = "account"
	RoleAllUsers Role = "all_users"
)

type User struct {
	ID          string    `json:"id" dynamodbav:"id"`
	PhoneNumber string    `json:"phone_number" dynamodbav:"phone_number"`
	Email       string    `json:"email,omitempty" dynamodbav:"email,omitempty"`
	FirstName   string    `json:"first_name,omitempty" dynamodbav:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty" dynamodbav:"last_name,omitempty"`
	Role        Role      `json:"role" dynamodbav:"role"`
	Approved    bool      `json:"is_approved" dynamodbav:"is_approved"`
	CreatedAt   time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

func (u *User) GetPK() string {
	return "USER!" + u.PhoneNumber
}

func (u *User) GetSK() string {
	return "METADATA"
}

package model

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

type Purity string

const (
	Purity24K   Purity = "24k"
	Purity22K   Purity = "22k"
	Purity18K   Purity = "18k"
	PurityMixed Purity = "mixed"
)

// Purities lists every accepted purity grade in display order.
var Purities = []Purity{Purity24K, Purity22K, Purity18K, PurityMixed}

func (p Purity) Valid() bool {
	switch p {
	case Purity24K, Purity22K, Purity18K, PurityMixed:
		return true
	}
	return false
}

// Label is the customer facing name of the grade.
func (p Purity) Label() string {
	switch p {
	case Purity24K:
		return "24K (99.9% Pure)"
	case Purity22K:
		return "22K (91.6% Pure)"
	case Purity18K:
		return "18K (75% Pure)"
	case PurityMixed:
		return "Mixed"
	}
	return string(p)
}

type InterestScheme struct {
	ID    int     `json:"id"`
	Rate  float64 `json:"rate"`
	Label string  `json:"label"`
}

// GoldRate is the price per gram for one purity under one interest scheme.
type GoldRate struct {
	ID               int       `json:"id"`
	Purity           Purity    `json:"purity"`
	InterestSchemeID int       `json:"interestSchemeId"`
	RatePerGram      float64   `json:"ratePerGram"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}
